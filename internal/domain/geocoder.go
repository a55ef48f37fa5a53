package domain

import "context"

// Geocoder resolves postal addresses to coordinates.
type Geocoder interface {
	// Lookup never returns an error; every condition maps to an Outcome.
	Lookup(ctx context.Context, addr Address) GeocodeResult
}

// Backend is a named Geocoder, e.g. "google" or "mapbox".
type Backend interface {
	Geocoder
	Name() string
}
