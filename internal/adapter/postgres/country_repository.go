package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/couchcryptid/address-geocoder/internal/countryref"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const selectCountries = `SELECT numeric, alpha2, alpha3, official_name_local, official_name_en,
	short_name_local, short_name_en, tldomain, address_layout FROM static_countries`

// CountryRepository implements countryref.Repository over the
// static_countries table.
type CountryRepository struct {
	db *DB
}

func NewCountryRepository(db *DB) *CountryRepository {
	return &CountryRepository{db: db}
}

// Query runs the single predicate selected by f. Rows are ordered by alpha-2.
func (r *CountryRepository) Query(ctx context.Context, f countryref.Filter) ([]countryref.Record, error) {
	where, arg, ok := whereClause(f)
	if !ok {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, selectCountries+" WHERE "+where+" ORDER BY alpha2", arg)
	if err != nil {
		return nil, convertPgError(fmt.Errorf("query countries by %s: %w", f.Kind(), err))
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, convertPgError(fmt.Errorf("scan countries: %w", err))
	}
	return records, nil
}

// whereClause maps a filter to SQL. A numeric filter that is not an
// integer matches nothing, same as the in-memory repository.
func whereClause(f countryref.Filter) (string, any, bool) {
	v := f.Value()
	switch f.Kind() {
	case countryref.FilterAlpha3:
		return "upper(alpha3) = upper($1)", v, true
	case countryref.FilterAlpha2:
		return "upper(alpha2) = upper($1)", v, true
	case countryref.FilterNumeric:
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", nil, false
		}
		return "numeric = $1", n, true
	case countryref.FilterExactName:
		return `(lower(official_name_local) = lower($1) OR lower(official_name_en) = lower($1)
			OR lower(short_name_local) = lower($1) OR lower(short_name_en) = lower($1))`, v, true
	case countryref.FilterNameContains:
		return `(official_name_local ILIKE $1 OR official_name_en ILIKE $1 OR short_name_local ILIKE $1)`,
			"%" + escapeLike(v) + "%", true
	default:
		return "", nil, false
	}
}

func scanRecord(row pgx.CollectableRow) (countryref.Record, error) {
	var rec countryref.Record
	err := row.Scan(
		&rec.Numeric,
		&rec.Alpha2,
		&rec.Alpha3,
		&rec.OfficialNameLocal,
		&rec.OfficialNameEN,
		&rec.ShortNameLocal,
		&rec.ShortNameEN,
		&rec.TLDomain,
		&rec.AddressLayout,
	)
	return rec, err
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// convertPgError marks errors that mean the dataset cannot be served at
// all (missing table, lost connection) with countryref.ErrUnavailable.
func convertPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable, pgerrcode.InvalidCatalogName:
			return errors.Join(countryref.ErrUnavailable, err)
		}
		if pgerrcode.IsConnectionException(pgErr.Code) {
			return errors.Join(countryref.ErrUnavailable, err)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return errors.Join(countryref.ErrUnavailable, err)
	}
	return err
}
