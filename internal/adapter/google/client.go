// Package google implements domain.Backend on the Google Geocoding API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/address-geocoder/internal/country"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Name is the backend name used in metrics and results.
const Name = "google"

// DefaultBaseURL is the Maps API root. The geocode endpoint lives at
// {base}/geocode/json.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api"

// addressDelimiter joins formatted address lines into the query string.
const addressDelimiter = ", "

const maxBodyBytes = 1 << 20

// CountryResolver maps a country token to its canonical name and region.
type CountryResolver interface {
	Resolve(ctx context.Context, token string) country.Resolution
}

// AddressFormatter renders an address in a country-specific layout.
type AddressFormatter interface {
	Format(ctx context.Context, delim, street, city, zip, subdivision, countryName string) (string, error)
}

// Options configures a Client. Zero values select defaults, except that a
// zero Retry.Delay retries without pausing.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Decorator  URLDecorator
	Countries  CountryResolver // nil when the reference data is unavailable
	Formatter  AddressFormatter
	Retry      RetryPolicy
	Clock      clockwork.Clock
	HTTPClient *http.Client
}

// Client implements domain.Backend using the Google Geocoding API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	decorator  URLDecorator
	countries  CountryResolver
	formatter  AddressFormatter
	retry      RetryPolicy
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Google geocoding client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		decorator:  opts.Decorator,
		countries:  opts.Countries,
		formatter:  opts.Formatter,
		retry:      opts.Retry.withDefaults(),
		clock:      opts.Clock,
		metrics:    metrics,
		logger:     logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	return c
}

// Name returns the backend name.
func (c *Client) Name() string { return Name }

// Request is the prepared query for one address.
type Request struct {
	Address string
	Region  string
}

// Lookup geocodes addr. Throttled requests are retried according to the
// retry policy; every other status is returned after one attempt.
func (c *Client) Lookup(ctx context.Context, addr domain.Address) domain.GeocodeResult {
	req := c.BuildRequest(ctx, addr)

	u, err := c.requestURL(req)
	if err != nil {
		return c.finish(domain.ServiceUnavailable("", err.Error()))
	}

	var (
		resp    response
		lastErr error
	)
	for attempt := 1; ; attempt++ {
		resp, lastErr = c.fetch(ctx, u)
		if lastErr != nil {
			break
		}
		if !c.retry.ShouldRetry(attempt, resp.Status) {
			break
		}
		c.metrics.GeocodeRetries.WithLabelValues(Name).Inc()
		c.logger.Warn("geocode rate limited, retrying",
			"attempt", attempt,
			"delay", c.retry.Delay,
			"url", redactURL(u),
		)
		if err := c.sleep(ctx, c.retry.Delay); err != nil {
			return c.finish(domain.Failure(resp.Status, err.Error()))
		}
	}

	if lastErr != nil {
		c.logger.Warn("geocode request failed", "url", redactURL(u), "error", lastErr)
		return c.finish(domain.Failure("", lastErr.Error()))
	}

	result := classify(resp)
	if !result.OK() {
		c.logger.Debug("geocode not successful",
			"status", resp.Status,
			"error_message", resp.ErrorMessage,
			"url", redactURL(u),
		)
	}
	return c.finish(result)
}

// BuildRequest resolves the country and formats the address query. When the
// country cannot be resolved or the address cannot be formatted, the fixed
// default layout is used and no region is sent. An unavailable reference
// store skips the formatter entirely.
func (c *Client) BuildRequest(ctx context.Context, addr domain.Address) Request {
	countryName := addr.Country
	var region, formatted string

	if c.countries != nil {
		res := c.countries.Resolve(ctx, addr.Country)
		countryName = res.Name
		region = res.Region
		if c.formatter != nil && res.Name != "" && !res.Unavailable {
			s, err := c.formatter.Format(ctx, addressDelimiter, addr.Street, addr.City, addr.Zip, addr.State, res.Name)
			if err != nil {
				c.logger.Debug("address format failed, using default layout", "error", err)
			} else {
				formatted = s
			}
		}
	}

	if formatted == "" {
		formatted = domain.DefaultAddressString(addr.Street, addr.City, addr.State, addr.Zip, countryName)
	}
	return Request{Address: strings.TrimSpace(formatted), Region: region}
}

func (c *Client) requestURL(req Request) (string, error) {
	u := c.baseURL + "/geocode/json?address=" + url.QueryEscape(req.Address)
	if req.Region != "" {
		u += "&region=" + url.QueryEscape(req.Region)
	}
	if c.decorator == nil {
		return u, nil
	}
	decorated, err := c.decorator.Decorate(u)
	if err != nil {
		return "", fmt.Errorf("decorate url: %w", err)
	}
	return decorated, nil
}

func (c *Client) fetch(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return response{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	var googleResp response
	if err := json.Unmarshal(body, &googleResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return response{}, fmt.Errorf("google API error: status %d: %s", resp.StatusCode, truncate(body, 256))
		}
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	if googleResp.Status == "" {
		return response{}, fmt.Errorf("google API error: status %d: response has no status", resp.StatusCode)
	}
	return googleResp, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

func (c *Client) finish(r domain.GeocodeResult) domain.GeocodeResult {
	r.Backend = Name
	return r
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
