// Package countryref is the read-only country reference dataset: ISO
// codes, English and local names, the country's top-level domain and the
// postal address layout used in that country.
package countryref

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrUnavailable is returned by repositories that cannot serve queries.
var ErrUnavailable = errors.New("country reference unavailable")

// Record is one country row.
type Record struct {
	Numeric           int    `json:"numeric"`
	Alpha2            string `json:"alpha2"`
	Alpha3            string `json:"alpha3"`
	OfficialNameLocal string `json:"official_name_local,omitempty"`
	OfficialNameEN    string `json:"official_name_en,omitempty"`
	ShortNameLocal    string `json:"short_local,omitempty"`
	ShortNameEN       string `json:"short_en,omitempty"`
	TLDomain          string `json:"tldomain,omitempty"`
	AddressLayout     int    `json:"address_layout,omitempty"`
}

// Repository answers filtered queries over the dataset.
type Repository interface {
	Query(ctx context.Context, f Filter) ([]Record, error)
}

// FilterKind names the single predicate a Filter applies.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterNameContains
	FilterExactName
	FilterNumeric
	FilterAlpha2
	FilterAlpha3
)

// Filter selects rows by exactly one predicate. When several fields are
// set, the precedence is Alpha3, Alpha2, Numeric, ExactName, NameContains.
type Filter struct {
	NameContains string
	ExactName    string
	Numeric      string
	Alpha2       string
	Alpha3       string
}

// Kind reports which predicate the filter applies.
func (f Filter) Kind() FilterKind {
	switch {
	case strings.TrimSpace(f.Alpha3) != "":
		return FilterAlpha3
	case strings.TrimSpace(f.Alpha2) != "":
		return FilterAlpha2
	case strings.TrimSpace(f.Numeric) != "":
		return FilterNumeric
	case strings.TrimSpace(f.ExactName) != "":
		return FilterExactName
	case strings.TrimSpace(f.NameContains) != "":
		return FilterNameContains
	default:
		return FilterNone
	}
}

// Value returns the trimmed operand of the effective predicate.
func (f Filter) Value() string {
	switch f.Kind() {
	case FilterAlpha3:
		return strings.TrimSpace(f.Alpha3)
	case FilterAlpha2:
		return strings.TrimSpace(f.Alpha2)
	case FilterNumeric:
		return strings.TrimSpace(f.Numeric)
	case FilterExactName:
		return strings.TrimSpace(f.ExactName)
	case FilterNameContains:
		return strings.TrimSpace(f.NameContains)
	default:
		return ""
	}
}

// Match reports whether r satisfies the filter. Name comparisons are
// case-insensitive; a FilterNone filter matches nothing.
func (f Filter) Match(r Record) bool {
	v := f.Value()
	switch f.Kind() {
	case FilterAlpha3:
		return strings.EqualFold(r.Alpha3, v)
	case FilterAlpha2:
		return strings.EqualFold(r.Alpha2, v)
	case FilterNumeric:
		n, err := strconv.Atoi(v)
		return err == nil && n == r.Numeric
	case FilterExactName:
		return strings.EqualFold(r.OfficialNameLocal, v) ||
			strings.EqualFold(r.OfficialNameEN, v) ||
			strings.EqualFold(r.ShortNameLocal, v) ||
			strings.EqualFold(r.ShortNameEN, v)
	case FilterNameContains:
		needle := strings.ToLower(v)
		return containsFold(r.OfficialNameLocal, needle) ||
			containsFold(r.OfficialNameEN, needle) ||
			containsFold(r.ShortNameLocal, needle)
	default:
		return false
	}
}

func containsFold(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}

func (k FilterKind) String() string {
	switch k {
	case FilterNameContains:
		return "name_contains"
	case FilterExactName:
		return "exact_name"
	case FilterNumeric:
		return "numeric"
	case FilterAlpha2:
		return "alpha2"
	case FilterAlpha3:
		return "alpha3"
	default:
		return "none"
	}
}
