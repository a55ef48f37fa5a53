package countryref

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/biter777/countries"
)

//go:embed data/local_names.json
var localNamesJSON []byte

type localNames struct {
	ShortLocal    string `json:"short_local"`
	OfficialLocal string `json:"official_local"`
	OfficialEN    string `json:"official_en"`
	TLDomain      string `json:"tldomain"`
	AddressLayout int    `json:"address_layout"`
}

// MemoryRepository is an in-process Repository over a fixed slice of records.
type MemoryRepository struct {
	records []Record
}

// NewMemoryRepository serves the given records. The slice is copied.
func NewMemoryRepository(records []Record) *MemoryRepository {
	rs := make([]Record, len(records))
	copy(rs, records)
	return &MemoryRepository{records: rs}
}

// NewBuiltinRepository serves the ISO 3166 dataset bundled with the binary.
func NewBuiltinRepository() (*MemoryRepository, error) {
	records, err := BuiltinRecords()
	if err != nil {
		return nil, err
	}
	return &MemoryRepository{records: records}, nil
}

// Query implements Repository.
func (m *MemoryRepository) Query(ctx context.Context, f Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Kind() == FilterNone {
		return nil, nil
	}
	var out []Record
	for _, r := range m.records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Records returns a copy of every record, ordered by alpha-2 code.
func (m *MemoryRepository) Records() []Record {
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// BuiltinRecords builds the dataset from the ISO 3166 tables of
// github.com/biter777/countries, overlaid with local names and address
// layouts for the countries listed in data/local_names.json. Countries
// without an overlay use their English name as the local name.
func BuiltinRecords() ([]Record, error) {
	overlay := map[string]localNames{}
	if err := json.Unmarshal(localNamesJSON, &overlay); err != nil {
		return nil, fmt.Errorf("decode local country names: %w", err)
	}

	all := countries.All()
	records := make([]Record, 0, len(all))
	for _, c := range all {
		if !c.IsValid() {
			continue
		}
		alpha2 := strings.ToUpper(c.Alpha2())
		name := c.String()
		r := Record{
			Numeric:           int(c),
			Alpha2:            alpha2,
			Alpha3:            strings.ToUpper(c.Alpha3()),
			OfficialNameLocal: name,
			OfficialNameEN:    name,
			ShortNameLocal:    name,
			ShortNameEN:       name,
			TLDomain:          topLevelDomain(c),
		}
		if o, ok := overlay[alpha2]; ok {
			applyOverlay(&r, o)
		}
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Alpha2 < records[j].Alpha2 })
	return records, nil
}

func applyOverlay(r *Record, o localNames) {
	if o.ShortLocal != "" {
		r.ShortNameLocal = o.ShortLocal
	}
	if o.OfficialLocal != "" {
		r.OfficialNameLocal = o.OfficialLocal
	}
	if o.OfficialEN != "" {
		r.OfficialNameEN = o.OfficialEN
	}
	if o.TLDomain != "" {
		r.TLDomain = o.TLDomain
	}
	r.AddressLayout = o.AddressLayout
}

// topLevelDomain strips the leading dot from the ccTLD. Countries without a
// known domain fall back to the lower-cased alpha-2 code.
func topLevelDomain(c countries.CountryCode) string {
	d := strings.ToLower(strings.TrimPrefix(c.Domain().String(), "."))
	if len(d) != 2 {
		return strings.ToLower(c.Alpha2())
	}
	return d
}
