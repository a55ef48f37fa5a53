package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// GeocodeTransformer implements Transformer by parsing the address record
// and geocoding it, throttled by an optional rate limiter.
type GeocodeTransformer struct {
	geocoder domain.Geocoder
	limiter  *rate.Limiter
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewTransformer creates a GeocodeTransformer. A nil geocoder emits failure
// markers for every record; a nil limiter disables throttling.
func NewTransformer(geocoder domain.Geocoder, limiter *rate.Limiter, clock clockwork.Clock, logger *slog.Logger) *GeocodeTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GeocodeTransformer{
		geocoder: geocoder,
		limiter:  limiter,
		clock:    clock,
		logger:   logger,
	}
}

// NewLimiter returns a limiter allowing perSecond lookups with the given
// burst, or nil when perSecond is zero.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (t *GeocodeTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.MarkerEvent, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.MarkerEvent{}, err
	}

	if t.limiter != nil && t.geocoder != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return domain.MarkerEvent{}, fmt.Errorf("wait for geocode rate limit: %w", err)
		}
	}

	return domain.GeocodeRecord(ctx, rec, t.geocoder, t.clock.Now(), t.logger), nil
}
