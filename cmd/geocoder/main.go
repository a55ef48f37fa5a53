package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/address-geocoder/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/address-geocoder/internal/adapter/kafka"
	"github.com/couchcryptid/address-geocoder/internal/app"
	"github.com/couchcryptid/address-geocoder/internal/config"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/observability"
	"github.com/couchcryptid/address-geocoder/internal/pipeline"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeCountries, err := app.Countries(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open country reference", "error", err)
		os.Exit(1)
	}
	defer closeCountries()

	// Keep geocoder a nil interface when no backend is enabled.
	var geocoder domain.Geocoder
	checkers := []httpadapter.ReadinessChecker{}
	if chain := app.NewChain(app.NewBackends(cfg, repo, metrics, logger), metrics, logger); chain != nil {
		geocoder = chain
		checkers = append(checkers, chain)
	}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		limiter := pipeline.NewLimiter(cfg.GeocodeRateLimit, cfg.BatchSize)
		transformer := pipeline.NewTransformer(geocoder, limiter, nil, logger)
		p = pipeline.New(reader, transformer, writer, logger, metrics, pipeline.Options{BatchSize: cfg.BatchSize})
		checkers = append(checkers, p)
		logger.Info("pipeline enabled",
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
			"rate_limit", cfg.GeocodeRateLimit,
		)
	} else {
		logger.Info("pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(checkers...), geocoder, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start geocoding pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
