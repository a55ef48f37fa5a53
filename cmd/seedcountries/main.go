// Command seedcountries applies the database migrations and loads the
// bundled ISO 3166 country dataset into the static_countries table.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/seedcountries
//	go run ./cmd/seedcountries -file countries.json
//
// With -file, records are read from a JSON array in the countryref.Record
// format instead of the bundled dataset.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/address-geocoder/internal/adapter/postgres"
	"github.com/couchcryptid/address-geocoder/internal/config"
	"github.com/couchcryptid/address-geocoder/internal/countryref"
	"github.com/couchcryptid/address-geocoder/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seedcountries:", err)
		os.Exit(1)
	}
}

func run() error {
	file := flag.String("file", "", "JSON file of country records (default: bundled dataset)")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	if err := config.LoadDotenv(); err != nil {
		return err
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return errors.New("DATABASE_URL is required")
	}
	logger := observability.NewCLILogger("info")

	records, err := loadRecords(*file)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.NewDB(ctx, url)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, logger); err != nil {
		return err
	}
	n, err := db.SeedCountries(ctx, records)
	if err != nil {
		return err
	}
	logger.Info("countries seeded", "count", n)
	return nil
}

func loadRecords(path string) ([]countryref.Record, error) {
	if path == "" {
		return countryref.BuiltinRecords()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []countryref.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	for i, r := range records {
		if len(r.Alpha2) != 2 || len(r.Alpha3) != 3 || r.Numeric <= 0 {
			return nil, fmt.Errorf("record %d: alpha2, alpha3 and numeric are required", i)
		}
	}
	return records, nil
}
