// Package app assembles the geocoding stack from configuration. It is
// shared by the service binary and the lookup CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/address-geocoder/internal/adapter/google"
	"github.com/couchcryptid/address-geocoder/internal/adapter/mapbox"
	"github.com/couchcryptid/address-geocoder/internal/adapter/postgres"
	"github.com/couchcryptid/address-geocoder/internal/addrfmt"
	"github.com/couchcryptid/address-geocoder/internal/config"
	"github.com/couchcryptid/address-geocoder/internal/country"
	"github.com/couchcryptid/address-geocoder/internal/countryref"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/geocode"
	"github.com/couchcryptid/address-geocoder/internal/observability"
)

// Countries opens the configured country reference source. The repository
// is nil for CountrySourceNone. The returned close func is never nil.
func Countries(ctx context.Context, cfg *config.Config, logger *slog.Logger) (countryref.Repository, func(), error) {
	noop := func() {}
	switch cfg.CountrySource {
	case config.CountrySourceNone:
		logger.Info("country reference disabled")
		return nil, noop, nil
	case config.CountrySourcePostgres:
		db, err := postgres.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := db.CheckReadiness(ctx); err != nil {
			// Lookups still run with unresolved countries until the
			// database comes back.
			logger.Warn("country reference database unavailable", "error", err)
		}
		logger.Info("country reference from postgres")
		return postgres.NewCountryRepository(db), db.Close, nil
	default:
		repo, err := countryref.NewBuiltinRepository()
		if err != nil {
			return nil, noop, fmt.Errorf("load builtin countries: %w", err)
		}
		logger.Info("country reference from builtin dataset", "countries", len(repo.Records()))
		return repo, noop, nil
	}
}

// NewBackends builds the enabled backends in priority order, Google first.
// Each backend is wrapped in a result cache.
func NewBackends(cfg *config.Config, repo countryref.Repository, metrics *observability.Metrics, logger *slog.Logger) []domain.Backend {
	var backends []domain.Backend

	if cfg.GoogleEnabled {
		opts := google.Options{
			BaseURL:   cfg.GoogleBaseURL,
			Timeout:   cfg.GoogleTimeout,
			Decorator: googleDecorator(cfg),
			Formatter: addrfmt.New(repo),
			Retry:     google.RetryPolicy{MaxAttempts: cfg.GeocodeMaxAttempts, Delay: cfg.GeocodeRetryDelay},
		}
		if repo != nil {
			opts.Countries = country.NewResolver(repo, metrics, logger)
		}
		client := google.NewClient(opts, metrics, logger)
		backends = append(backends, geocode.NewCachedBackend(client, cfg.GeocodeCacheSize, metrics))
		logger.Info("google geocoding enabled",
			"signing", cfg.UsesSigning(),
			"timeout", cfg.GoogleTimeout,
			"max_attempts", cfg.GeocodeMaxAttempts,
		)
	}

	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		backends = append(backends, geocode.NewCachedBackend(client, cfg.GeocodeCacheSize, metrics))
		logger.Info("mapbox geocoding enabled", "timeout", cfg.MapboxTimeout)
	}

	return backends
}

// NewChain returns nil when no backend is enabled.
func NewChain(backends []domain.Backend, metrics *observability.Metrics, logger *slog.Logger) *geocode.Chain {
	if len(backends) == 0 {
		logger.Warn("no geocoding backend enabled")
		return nil
	}
	return geocode.NewChain(backends, metrics, logger)
}

func googleDecorator(cfg *config.Config) google.URLDecorator {
	if cfg.UsesSigning() {
		return google.SigningDecorator{ClientID: cfg.GoogleClientID, Secret: cfg.GoogleSigningSecret}
	}
	return google.KeyDecorator{Key: cfg.GoogleAPIKey}
}
