package domain

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodeResult
	calls  int
	last   Address
}

func (m *mockGeocoder) Lookup(_ context.Context, addr Address) GeocodeResult {
	m.calls++
	m.last = addr
	return m.result
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var processedAt = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

// --- tests ---

func TestParseRawEvent(t *testing.T) {
	raw := RawEvent{Value: []byte(`{"id":"fe-1","street":"1 Main St","city":"Springfield","state":"IL","zip":"62701","country":"US"}`)}

	rec, err := ParseRawEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "fe-1", rec.ID)
	assert.Equal(t, Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Country: "US"}, rec.Address())
}

func TestParseRawEvent_IDFromKey(t *testing.T) {
	raw := RawEvent{Key: []byte("fe-2"), Value: []byte(`{"city":"Berlin"}`)}

	rec, err := ParseRawEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "fe-2", rec.ID)
}

func TestParseRawEvent_MissingID(t *testing.T) {
	_, err := ParseRawEvent(RawEvent{Value: []byte(`{"city":"Berlin"}`)})
	require.ErrorIs(t, err, ErrMissingID)
}

func TestParseRawEvent_Invalid(t *testing.T) {
	_, err := ParseRawEvent(RawEvent{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestGeocodeRecord_Success(t *testing.T) {
	geo := &mockGeocoder{result: GeocodeResult{Outcome: OutcomeSuccess, Lat: 39.78, Lon: -89.65, Status: "OK", Backend: "google"}}
	rec := AddressRecord{ID: "fe-1", Title: "Jane", City: "Springfield", State: "IL", Country: "US"}

	event := GeocodeRecord(context.Background(), rec, geo, processedAt, discardLogger())

	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, rec.Address(), geo.last)
	require.NotNil(t, event.Geo)
	assert.Equal(t, 39.78, event.Geo.Lat)
	assert.Equal(t, -89.65, event.Geo.Lon)
	assert.Equal(t, OutcomeSuccess, event.Outcome)
	assert.Equal(t, "google", event.Backend)
	assert.Equal(t, "Jane", event.Title)
	assert.Equal(t, processedAt, event.ProcessedAt)
}

func TestGeocodeRecord_FailureKeepsRecord(t *testing.T) {
	geo := &mockGeocoder{result: Failure("ZERO_RESULTS", "no match")}
	rec := AddressRecord{ID: "fe-3", City: "Nowhere"}

	event := GeocodeRecord(context.Background(), rec, geo, processedAt, discardLogger())

	assert.Nil(t, event.Geo)
	assert.Equal(t, OutcomeFailure, event.Outcome)
	assert.Equal(t, "ZERO_RESULTS", event.Status)
	assert.Equal(t, "fe-3", event.ID)
}

func TestGeocodeRecord_NilGeocoder(t *testing.T) {
	event := GeocodeRecord(context.Background(), AddressRecord{ID: "fe-4"}, nil, processedAt, discardLogger())

	assert.Nil(t, event.Geo)
	assert.Equal(t, OutcomeFailure, event.Outcome)
	assert.Equal(t, "DISABLED", event.Status)
}

func TestGeocodeResult_Predicates(t *testing.T) {
	assert.True(t, Success(1, 2).OK())
	assert.False(t, Success(1, 2).Deactivate())
	assert.True(t, ServiceUnavailable("REQUEST_DENIED", "").Deactivate())
	assert.False(t, RateLimited("OVER_QUERY_LIMIT", "").Deactivate())
	assert.False(t, Failure("ZERO_RESULTS", "").OK())
}
