// Package addrfmt formats postal addresses in the field order customary in
// the destination country.
package addrfmt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/address-geocoder/internal/country"
	"github.com/couchcryptid/address-geocoder/internal/countryref"
	"github.com/valyala/fasttemplate"
)

// ErrEmptyAddress is returned when every address field is blank.
var ErrEmptyAddress = errors.New("address has no fields")

// Layout identifies a field ordering. The numeric values are the
// address_layout column of the country reference dataset.
type Layout int

const (
	LayoutDefault     Layout = 0
	LayoutUS          Layout = 1 // street / city / state zip / country
	LayoutContinental Layout = 2 // street / zip city / country
	LayoutBritish     Layout = 3 // street / city / zip / country
	LayoutEastAsian   Layout = 4 // zip / state city / street / country
)

// DefaultLayouts are the line templates for every known layout. Tags are
// {street}, {city}, {state}, {zip} and {country}.
var DefaultLayouts = map[Layout][]string{
	LayoutUS:          {"{street}", "{city}", "{state} {zip}", "{country}"},
	LayoutContinental: {"{street}", "{zip} {city}", "{country}"},
	LayoutBritish:     {"{street}", "{city}", "{zip}", "{country}"},
	LayoutEastAsian:   {"{zip}", "{state} {city}", "{street}", "{country}"},
}

// Formatter renders addresses using the layout recorded for the country in
// the reference dataset. Templates are compiled on first use.
type Formatter struct {
	repo   countryref.Repository
	layout map[Layout][]string

	once      sync.Once
	done      atomic.Bool
	initErr   error
	templates map[Layout][]*fasttemplate.Template
}

// New creates a Formatter with DefaultLayouts. A nil repo formats every
// address with LayoutUS.
func New(repo countryref.Repository) *Formatter {
	return NewWithLayouts(repo, DefaultLayouts)
}

// NewWithLayouts creates a Formatter with custom line templates.
func NewWithLayouts(repo countryref.Repository, layouts map[Layout][]string) *Formatter {
	return &Formatter{repo: repo, layout: layouts}
}

// NeedsInit reports whether the templates have not been compiled yet.
func (f *Formatter) NeedsInit() bool {
	return !f.done.Load()
}

// Init compiles the layout templates. It runs once; later calls return the
// first result.
func (f *Formatter) Init() error {
	f.once.Do(func() {
		defer f.done.Store(true)
		compiled := make(map[Layout][]*fasttemplate.Template, len(f.layout))
		for layout, lines := range f.layout {
			for _, line := range lines {
				t, err := fasttemplate.NewTemplate(line, "{", "}")
				if err != nil {
					f.initErr = fmt.Errorf("compile layout %d line %q: %w", layout, line, err)
					return
				}
				compiled[layout] = append(compiled[layout], t)
			}
		}
		if _, ok := compiled[LayoutUS]; !ok {
			f.initErr = errors.New("layout set has no US layout")
			return
		}
		f.templates = compiled
	})
	return f.initErr
}

// Format renders the address joined by delim. countryName selects the
// layout and is printed as the last line for layouts that include it.
func (f *Formatter) Format(ctx context.Context, delim, street, city, zip, subdivision, countryName string) (string, error) {
	if err := f.Init(); err != nil {
		return "", err
	}

	values := map[string]interface{}{
		"street":  street,
		"city":    city,
		"state":   subdivision,
		"zip":     zip,
		"country": countryName,
	}

	lines := f.templates[f.layoutFor(ctx, countryName)]
	parts := make([]string, 0, len(lines))
	for _, t := range lines {
		line := strings.Join(strings.Fields(t.ExecuteString(values)), " ")
		if line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyAddress
	}
	return strings.Join(parts, delim), nil
}

// LayoutFor reports the layout chosen for countryName.
func (f *Formatter) LayoutFor(ctx context.Context, countryName string) Layout {
	if err := f.Init(); err != nil {
		return LayoutDefault
	}
	return f.layoutFor(ctx, countryName)
}

func (f *Formatter) layoutFor(ctx context.Context, countryName string) Layout {
	if f.repo == nil {
		return LayoutUS
	}
	plan := country.Plan(countryName)
	if len(plan) == 0 {
		return LayoutUS
	}
	rows, err := f.repo.Query(ctx, plan[0])
	if err != nil || len(rows) != 1 {
		return LayoutUS
	}
	layout := Layout(rows[0].AddressLayout)
	if _, ok := f.templates[layout]; !ok {
		return LayoutUS
	}
	return layout
}
