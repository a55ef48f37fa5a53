// Package country resolves free-form country tokens against the reference
// dataset to the canonical local name and region code used for geocoding.
package country

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/couchcryptid/address-geocoder/internal/countryref"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/observability"
)

// Resolution is the outcome of resolving a country token. When Resolved is
// false, Name is the input token unchanged and Region is empty.
// Unavailable is set when every query failed with countryref.ErrUnavailable,
// in which case callers treat the reference service as absent.
type Resolution struct {
	Name        string
	Region      string
	Resolved    bool
	Unavailable bool
	CodeType    domain.CountryCodeType
	Candidates  int
}

// filterFunc builds the reference query for one step of the lookup plan.
type filterFunc func(token string) countryref.Filter

// lookupPlan lists, per code type, the queries tried in order. The first
// query returning at least one row decides the resolution.
var lookupPlan = map[domain.CountryCodeType][]filterFunc{
	domain.CountryCodeNumeric: {
		func(t string) countryref.Filter { return countryref.Filter{Numeric: t} },
	},
	domain.CountryCodeAlpha2: {
		func(t string) countryref.Filter { return countryref.Filter{Alpha2: t} },
	},
	domain.CountryCodeAlpha3: {
		func(t string) countryref.Filter { return countryref.Filter{Alpha3: t} },
	},
	domain.CountryCodeName: {
		func(t string) countryref.Filter { return countryref.Filter{ExactName: t} },
		func(t string) countryref.Filter { return countryref.Filter{NameContains: t} },
	},
}

// Plan returns the filters tried for token, in order. Blank tokens yield
// no filters.
func Plan(token string) []countryref.Filter {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	steps := lookupPlan[domain.ClassifyCountryCode(token)]
	filters := make([]countryref.Filter, 0, len(steps))
	for _, step := range steps {
		filters = append(filters, step(token))
	}
	return filters
}

// Decide maps the candidate rows of the deciding query to a Resolution.
// Only an unambiguous single row resolves.
func Decide(token string, rows []countryref.Record) Resolution {
	res := Resolution{
		Name:       token,
		CodeType:   domain.ClassifyCountryCode(token),
		Candidates: len(rows),
	}
	if len(rows) != 1 {
		return res
	}
	r := rows[0]
	if r.ShortNameLocal == "" {
		return res
	}
	res.Name = r.ShortNameLocal
	res.Region = r.TLDomain
	res.Resolved = true
	return res
}

// Resolver resolves country tokens through a reference Repository.
type Resolver struct {
	repo    countryref.Repository
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewResolver creates a Resolver over repo.
func NewResolver(repo countryref.Repository, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, metrics: metrics, logger: logger}
}

// Resolve never fails. Inconclusive lookups and repository errors return
// the token unchanged with an empty region.
func (r *Resolver) Resolve(ctx context.Context, token string) Resolution {
	var rows []countryref.Record
	plan := Plan(token)
	down := 0
	for _, f := range plan {
		found, err := r.repo.Query(ctx, f)
		if err != nil {
			if errors.Is(err, countryref.ErrUnavailable) {
				down++
			}
			r.logger.Warn("country reference query failed",
				"country", token,
				"filter", f.Kind(),
				"error", err,
			)
			continue
		}
		if len(found) > 0 {
			rows = found
			break
		}
	}

	res := Decide(token, rows)
	res.Unavailable = len(plan) > 0 && down == len(plan)
	r.logger.Debug("country resolution",
		"country", token,
		"code_type", res.CodeType,
		"candidates", res.Candidates,
		"resolved_name", res.Name,
		"region", res.Region,
	)
	r.metrics.CountryResolutions.WithLabelValues(res.CodeType.String(), resolutionLabel(res)).Inc()
	return res
}

func resolutionLabel(res Resolution) string {
	switch {
	case res.Resolved:
		return "resolved"
	case res.Unavailable:
		return "unavailable"
	case res.Candidates > 1:
		return "ambiguous"
	default:
		return "unmatched"
	}
}
