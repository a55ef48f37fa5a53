package google

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/couchcryptid/address-geocoder/internal/domain"
)

// Geocoding API status codes.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
	StatusRequestDenied  = "REQUEST_DENIED"
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusUnknownError   = "UNKNOWN_ERROR"
)

// Google Geocoding API response types.

type response struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Results      []result `json:"results"`
}

type result struct {
	FormattedAddress string   `json:"formatted_address,omitempty"`
	Geometry         geometry `json:"geometry"`
}

type geometry struct {
	Location location `json:"location"`
}

type location struct {
	Lat coordinate `json:"lat"`
	Lng coordinate `json:"lng"`
}

// coordinate decodes a JSON number or a numeric string.
type coordinate float64

func (c *coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", b, err)
	}
	*c = coordinate(v)
	return nil
}

// classify maps the final API response to a result.
func classify(resp response) domain.GeocodeResult {
	switch resp.Status {
	case StatusOK:
		if len(resp.Results) == 0 {
			return domain.Failure(resp.Status, "response has no results")
		}
		loc := resp.Results[0].Geometry.Location
		r := domain.Success(float64(loc.Lat), float64(loc.Lng))
		r.Status = resp.Status
		return r
	case StatusRequestDenied, StatusInvalidRequest:
		return domain.ServiceUnavailable(resp.Status, resp.ErrorMessage)
	case StatusOverQueryLimit:
		return domain.RateLimited(resp.Status, "still over query limit after retries")
	default:
		return domain.Failure(resp.Status, resp.ErrorMessage)
	}
}
