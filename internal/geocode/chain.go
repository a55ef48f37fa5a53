// Package geocode combines geocoding backends into a single Geocoder that
// falls through to the next backend when one cannot answer.
package geocode

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/observability"
)

// ErrNoActiveBackend is returned by CheckReadiness once every backend has
// been deactivated.
var ErrNoActiveBackend = errors.New("no active geocoding backend")

type slot struct {
	backend  domain.Backend
	disabled atomic.Bool
}

// Chain tries backends in order. A backend that reports ServiceUnavailable
// is deactivated for the lifetime of the Chain.
type Chain struct {
	slots   []*slot
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewChain creates a chain over backends in priority order.
func NewChain(backends []domain.Backend, metrics *observability.Metrics, logger *slog.Logger) *Chain {
	c := &Chain{metrics: metrics, logger: logger}
	for _, b := range backends {
		c.slots = append(c.slots, &slot{backend: b})
		metrics.BackendActive.WithLabelValues(b.Name()).Set(1)
	}
	return c
}

// Lookup returns the first successful result. Otherwise it returns the
// most specific failure seen: an address failure or throttling wins over
// a deactivation.
func (c *Chain) Lookup(ctx context.Context, addr domain.Address) domain.GeocodeResult {
	var (
		best  domain.GeocodeResult
		tried bool
	)
	for _, s := range c.slots {
		if s.disabled.Load() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return domain.Failure("", err.Error())
		}

		name := s.backend.Name()
		r := s.backend.Lookup(ctx, addr)
		if r.Backend == "" {
			r.Backend = name
		}
		c.metrics.GeocodeRequests.WithLabelValues(name, string(r.Outcome)).Inc()

		if r.OK() {
			return r
		}
		if r.Deactivate() {
			c.deactivate(s, r)
		}
		if !tried || best.Deactivate() {
			best = r
		}
		tried = true
		c.logger.Debug("geocode backend did not resolve address",
			"backend", name,
			"outcome", r.Outcome,
			"status", r.Status,
		)
	}

	if !tried {
		return domain.ServiceUnavailable("", ErrNoActiveBackend.Error())
	}
	return best
}

func (c *Chain) deactivate(s *slot, r domain.GeocodeResult) {
	if !s.disabled.CompareAndSwap(false, true) {
		return
	}
	name := s.backend.Name()
	c.metrics.BackendActive.WithLabelValues(name).Set(0)
	c.logger.Error("geocoding backend deactivated",
		"backend", name,
		"status", r.Status,
		"reason", r.Reason,
	)
}

// Active returns the names of backends still in use.
func (c *Chain) Active() []string {
	var names []string
	for _, s := range c.slots {
		if !s.disabled.Load() {
			names = append(names, s.backend.Name())
		}
	}
	return names
}

// CheckReadiness fails once no backend is left.
func (c *Chain) CheckReadiness(_ context.Context) error {
	if len(c.Active()) == 0 {
		return ErrNoActiveBackend
	}
	return nil
}
