// Package mapbox implements domain.Backend on the Mapbox forward geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/observability"
)

// Name is the backend name used in metrics and results.
const Name = "mapbox"

// StatusNoFeatures is reported when the API answers without any match.
const StatusNoFeatures = "NO_FEATURES"

// Client implements domain.Backend using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// Name returns the backend name.
func (c *Client) Name() string { return Name }

// Lookup forward-geocodes a postal address. A two-letter country token is
// sent as the country filter instead of being part of the query text.
func (c *Client) Lookup(ctx context.Context, addr domain.Address) domain.GeocodeResult {
	query, countryFilter := buildQuery(addr)
	if query == "" {
		return c.finish(domain.Failure("", "address is empty"))
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"address,postcode,place"},
	}
	if countryFilter != "" {
		params.Set("country", countryFilter)
	}

	result := c.doRequest(ctx, u+"?"+params.Encode())
	if !result.OK() {
		c.logger.Debug("mapbox geocode not successful",
			"status", result.Status,
			"reason", result.Reason,
			"address", query,
		)
	}
	return c.finish(result)
}

func buildQuery(addr domain.Address) (query, countryFilter string) {
	var parts []string
	for _, p := range []string{addr.Street, addr.City, strings.TrimSpace(addr.State + " " + addr.Zip)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	token := strings.TrimSpace(addr.Country)
	switch {
	case token == "":
	case domain.ClassifyCountryCode(token) == domain.CountryCodeAlpha2:
		countryFilter = strings.ToLower(token)
	default:
		parts = append(parts, token)
	}
	return strings.Join(parts, ", "), countryFilter
}

func (c *Client) doRequest(ctx context.Context, fullURL string) domain.GeocodeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Failure("", fmt.Sprintf("create request: %v", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Failure("", fmt.Sprintf("forward geocode request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		status := "HTTP_" + strconv.Itoa(resp.StatusCode)
		reason := fmt.Sprintf("mapbox API error: status %d: %s", resp.StatusCode, body)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.ServiceUnavailable(status, reason)
		case http.StatusTooManyRequests:
			return domain.RateLimited(status, reason)
		default:
			return domain.Failure(status, reason)
		}
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Failure("", fmt.Sprintf("decode response: %v", err))
	}

	if len(mapboxResp.Features) == 0 {
		return domain.Failure(StatusNoFeatures, "no matching features")
	}

	f := mapboxResp.Features[0]
	if len(f.Center) != 2 {
		return domain.Failure("", "feature has no center")
	}
	result := domain.Success(f.Center[1], f.Center[0])
	result.Status = "OK"
	return result
}

func (c *Client) finish(r domain.GeocodeResult) domain.GeocodeResult {
	r.Backend = Name
	return r
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Relevance float64   `json:"relevance"`
}
