package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrMissingID is returned for records that cannot be keyed downstream.
var ErrMissingID = errors.New("address record has no id")

// ParseRawEvent deserializes a RawEvent's value into an AddressRecord.
// A record without an id is rejected; the message key is used when the
// payload omits it.
func ParseRawEvent(raw RawEvent) (AddressRecord, error) {
	var rec AddressRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return AddressRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		rec.ID = strings.TrimSpace(string(raw.Key))
	}
	if rec.ID == "" {
		return AddressRecord{}, ErrMissingID
	}
	return rec, nil
}

// GeocodeRecord resolves the record's address and builds the marker event.
// A nil geocoder yields a failure marker; geocoding problems never turn into
// errors so one bad address cannot stop a batch.
func GeocodeRecord(ctx context.Context, rec AddressRecord, geocoder Geocoder, now time.Time, logger *slog.Logger) MarkerEvent {
	event := MarkerEvent{
		ID:          rec.ID,
		Title:       rec.Title,
		Address:     rec.Address(),
		ProcessedAt: now.UTC(),
	}

	if geocoder == nil {
		event.Outcome = OutcomeFailure
		event.Status = "DISABLED"
		return event
	}

	result := geocoder.Lookup(ctx, event.Address)
	event.Outcome = result.Outcome
	event.Status = result.Status
	event.Backend = result.Backend

	if result.OK() {
		event.Geo = &Geo{Lat: result.Lat, Lon: result.Lon}
		return event
	}

	logger.Warn("geocoding failed",
		"record_id", rec.ID,
		"outcome", result.Outcome,
		"status", result.Status,
		"reason", result.Reason,
		"city", rec.City,
		"country", rec.Country,
	)
	return event
}
