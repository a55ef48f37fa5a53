package domain

import (
	"context"
	"time"
)

// AddressRecord is the JSON payload published to the source topic, one per
// record that needs a map marker (a frontend user, an address book entry).
type AddressRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// Address extracts the postal address of the record.
func (r AddressRecord) Address() Address {
	return Address{
		Street:  r.Street,
		City:    r.City,
		State:   r.State,
		Zip:     r.Zip,
		Country: r.Country,
	}
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MarkerEvent is the geocoded record published to the sink topic.
// Geo is nil unless Outcome is OutcomeSuccess.
type MarkerEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Address     Address   `json:"address"`
	Geo         *Geo      `json:"geo,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	Status      string    `json:"status,omitempty"`
	Backend     string    `json:"backend,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}
