package postgres

import (
	"context"
	"fmt"

	"github.com/couchcryptid/address-geocoder/internal/countryref"
	"github.com/jackc/pgx/v5"
)

const upsertCountry = `INSERT INTO static_countries (numeric, alpha2, alpha3, official_name_local,
	official_name_en, short_name_local, short_name_en, tldomain, address_layout)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (numeric) DO UPDATE SET
	alpha2 = EXCLUDED.alpha2,
	alpha3 = EXCLUDED.alpha3,
	official_name_local = EXCLUDED.official_name_local,
	official_name_en = EXCLUDED.official_name_en,
	short_name_local = EXCLUDED.short_name_local,
	short_name_en = EXCLUDED.short_name_en,
	tldomain = EXCLUDED.tldomain,
	address_layout = EXCLUDED.address_layout`

// SeedCountries upserts records inside one transaction and returns the
// number of rows written.
func (db *DB) SeedCountries(ctx context.Context, records []countryref.Record) (int, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot begin seed transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertCountry,
			r.Numeric, r.Alpha2, r.Alpha3,
			r.OfficialNameLocal, r.OfficialNameEN,
			r.ShortNameLocal, r.ShortNameEN,
			r.TLDomain, r.AddressLayout,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("cannot upsert countries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("cannot commit seed transaction: %w", err)
	}
	return len(records), nil
}
