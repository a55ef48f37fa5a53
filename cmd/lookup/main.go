// Command lookup geocodes addresses with the same backend chain as the
// service and prints one JSON result per line.
//
// Usage:
//
//	go run ./cmd/lookup -street "Unter den Linden 77" -city Berlin -zip 10117 -country DE
//	go run ./cmd/lookup -file records.jsonl
//
// Backends are configured from the environment (GOOGLE_API_KEY,
// MAPBOX_TOKEN, ...). With -file, each line is an address record as
// published to the source topic.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/address-geocoder/internal/app"
	"github.com/couchcryptid/address-geocoder/internal/config"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/observability"
)

type output struct {
	ID      string         `json:"id,omitempty"`
	Address domain.Address `json:"address"`
	domain.GeocodeResult
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lookup:", err)
		os.Exit(1)
	}
}

func run() error {
	var addr domain.Address
	flag.StringVar(&addr.Street, "street", "", "street and house number")
	flag.StringVar(&addr.City, "city", "", "city")
	flag.StringVar(&addr.State, "state", "", "state or subdivision")
	flag.StringVar(&addr.Zip, "zip", "", "postal code")
	flag.StringVar(&addr.Country, "country", "", "country name or ISO code")
	file := flag.String("file", "", "JSON lines file of address records, - for stdin")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if *file == "" && addr == (domain.Address{}) {
		flag.Usage()
		return errors.New("give address flags or -file")
	}

	if err := config.LoadDotenv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewCLILogger(*level)
	metrics := observability.NewMetricsForTesting()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeCountries, err := app.Countries(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCountries()

	chain := app.NewChain(app.NewBackends(cfg, repo, metrics, logger), metrics, logger)
	if chain == nil {
		return errors.New("no geocoding backend enabled; set GOOGLE_API_KEY or MAPBOX_TOKEN")
	}

	enc := json.NewEncoder(os.Stdout)
	if *file == "" {
		result := chain.Lookup(ctx, addr)
		if err := enc.Encode(output{Address: addr, GeocodeResult: result}); err != nil {
			return err
		}
		if !result.OK() {
			return fmt.Errorf("geocode %s: %s", result.Outcome, result.Status)
		}
		return nil
	}

	in, err := openInput(*file)
	if err != nil {
		return err
	}
	defer in.Close()
	return lookupAll(ctx, in, enc, chain, logger)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// lookupAll geocodes every record line. Malformed lines are logged and
// skipped.
func lookupAll(ctx context.Context, r io.Reader, enc *json.Encoder, geocoder domain.Geocoder, logger *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		rec, err := domain.ParseRawEvent(domain.RawEvent{Value: scanner.Bytes()})
		if err != nil {
			logger.Warn("skipping invalid record", "line", line, "error", err)
			continue
		}
		result := geocoder.Lookup(ctx, rec.Address())
		if err := enc.Encode(output{ID: rec.ID, Address: rec.Address(), GeocodeResult: result}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
