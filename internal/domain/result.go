package domain

// Outcome classifies how a geocode lookup ended.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeFailure            Outcome = "failure"
	OutcomeRateLimited        Outcome = "rate_limited"
	OutcomeServiceUnavailable Outcome = "service_unavailable"
)

// GeocodeResult is the tagged result of one lookup. Lat and Lon are only
// meaningful when Outcome is OutcomeSuccess.
type GeocodeResult struct {
	Outcome Outcome `json:"outcome"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Status  string  `json:"status,omitempty"` // provider status, e.g. "ZERO_RESULTS"
	Reason  string  `json:"reason,omitempty"`
	Backend string  `json:"backend,omitempty"`
}

// Success builds a successful result.
func Success(lat, lon float64) GeocodeResult {
	return GeocodeResult{Outcome: OutcomeSuccess, Lat: lat, Lon: lon}
}

// Failure builds an address-specific failure.
func Failure(status, reason string) GeocodeResult {
	return GeocodeResult{Outcome: OutcomeFailure, Status: status, Reason: reason}
}

// RateLimited builds a result for a backend that kept throttling.
func RateLimited(status, reason string) GeocodeResult {
	return GeocodeResult{Outcome: OutcomeRateLimited, Status: status, Reason: reason}
}

// ServiceUnavailable builds the deactivation signal.
func ServiceUnavailable(status, reason string) GeocodeResult {
	return GeocodeResult{Outcome: OutcomeServiceUnavailable, Status: status, Reason: reason}
}

// OK reports whether the result carries coordinates.
func (r GeocodeResult) OK() bool { return r.Outcome == OutcomeSuccess }

// Deactivate reports whether the caller should stop using the backend.
func (r GeocodeResult) Deactivate() bool { return r.Outcome == OutcomeServiceUnavailable }
