// Command genrecords generates fake address records for load and end-to-end
// tests. Country tokens are drawn from the reference dataset in every
// supported form (alpha-2, alpha-3, numeric, local name) so the country
// resolver is exercised as well.
//
// Usage:
//
//	go run ./cmd/genrecords -n 500 -out data/mock/records.jsonl
//	go run ./cmd/genrecords -n 500 -publish
//
// With -publish, records are written to KAFKA_SOURCE_TOPIC on
// KAFKA_BROKERS instead of a file.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/couchcryptid/address-geocoder/internal/config"
	"github.com/couchcryptid/address-geocoder/internal/countryref"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	n := flag.Int("n", 100, "number of records")
	seed := flag.Uint64("seed", 42, "random seed")
	out := flag.String("out", "-", "output path for JSON lines, - for stdout")
	only := flag.String("countries", "US,DE,FR,GB,NL,AT,CH,JP", "comma-separated alpha-2 codes to draw from")
	publish := flag.Bool("publish", false, "publish to Kafka instead of writing a file")
	flag.Parse()

	if *n <= 0 {
		flag.Usage()
		return fmt.Errorf("-n must be positive")
	}

	pool, err := countryPool(*only)
	if err != nil {
		return err
	}
	records := generate(gofakeit.New(*seed), pool, *n)

	if *publish {
		if err := publishRecords(records); err != nil {
			return err
		}
	} else if err := writeLines(*out, records); err != nil {
		return err
	}

	printStats(records)
	return nil
}

// countryPool returns the reference records for the given alpha-2 codes.
func countryPool(codes string) ([]countryref.Record, error) {
	all, err := countryref.BuiltinRecords()
	if err != nil {
		return nil, err
	}
	byAlpha2 := make(map[string]countryref.Record, len(all))
	for _, r := range all {
		byAlpha2[r.Alpha2] = r
	}

	var pool []countryref.Record
	for _, c := range strings.Split(codes, ",") {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		r, ok := byAlpha2[c]
		if !ok {
			return nil, fmt.Errorf("unknown country code %q", c)
		}
		pool = append(pool, r)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("no countries selected")
	}
	return pool, nil
}

func generate(f *gofakeit.Faker, pool []countryref.Record, n int) []domain.AddressRecord {
	records := make([]domain.AddressRecord, n)
	for i := range records {
		c := pool[f.Number(0, len(pool)-1)]
		rec := domain.AddressRecord{
			ID:      f.UUID(),
			Title:   f.Name(),
			Street:  f.Street(),
			City:    f.City(),
			Zip:     f.Zip(),
			Country: countryToken(f, c),
		}
		if c.Alpha2 == "US" {
			rec.State = f.StateAbr()
		}
		records[i] = rec
	}
	return records
}

func countryToken(f *gofakeit.Faker, c countryref.Record) string {
	switch f.Number(0, 3) {
	case 0:
		return c.Alpha2
	case 1:
		return c.Alpha3
	case 2:
		return strconv.Itoa(c.Numeric)
	default:
		return c.ShortNameLocal
	}
}

func writeLines(path string, records []domain.AddressRecord) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func publishRecords(records []domain.AddressRecord) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSourceTopic,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()

	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		data, err := json.Marshal(records[i])
		if err != nil {
			return err
		}
		msgs[i] = kafkago.Message{Key: []byte(records[i].ID), Value: data}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish records: %w", err)
	}
	log.Printf("published %d records to %s", len(msgs), cfg.KafkaSourceTopic)
	return nil
}

type tokenCount struct {
	token string
	count int
}

func printStats(records []domain.AddressRecord) {
	byType := map[domain.CountryCodeType]int{}
	byToken := map[string]int{}
	for _, r := range records {
		byType[domain.ClassifyCountryCode(r.Country)]++
		byToken[r.Country]++
	}

	tc := make([]tokenCount, 0, len(byToken))
	for t, c := range byToken {
		tc = append(tc, tokenCount{t, c})
	}
	sort.Slice(tc, func(i, j int) bool {
		if tc[i].count != tc[j].count {
			return tc[i].count > tc[j].count
		}
		return tc[i].token < tc[j].token
	})

	fmt.Fprintf(os.Stderr, "\n=== %d records ===\n", len(records))
	fmt.Fprintf(os.Stderr, "By code type: alpha2=%d, alpha3=%d, numeric=%d, name=%d\n",
		byType[domain.CountryCodeAlpha2], byType[domain.CountryCodeAlpha3],
		byType[domain.CountryCodeNumeric], byType[domain.CountryCodeName])
	fmt.Fprintf(os.Stderr, "Country tokens (%d): ", len(tc))
	for i, t := range tc {
		if i > 0 {
			fmt.Fprint(os.Stderr, ", ")
		}
		fmt.Fprintf(os.Stderr, "%s=%d", t.token, t.count)
	}
	fmt.Fprintln(os.Stderr)
}
