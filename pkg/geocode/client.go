// Package geocode provides a free-text geocoding client backed by the
// OpenStreetMap Nominatim API, used to resolve facility addresses to
// coordinates when adding a facility by hand.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "BasisTracker/1.0"
)

// Client resolves free-text location queries to coordinates.
type Client interface {
	// Search geocodes a free-text query. An unmatched query returns
	// Matched=false, not an error.
	Search(ctx context.Context, query string) (*Result, error)
}

// Result is a geocoding outcome. Coordinates are rounded to six decimal
// places (roughly 10 cm).
type Result struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"display_name,omitempty"`
	Matched     bool    `json:"matched"`
}

type client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes the client.
type Option func(*client)

// WithBaseURL overrides the Nominatim endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps requests per second. Nominatim's public instance
// allows at most one request per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient builds a Nominatim client with the public-instance defaults.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nominatimResult is one entry of the Nominatim search response.
// Coordinates come back as strings.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *client) Search(ctx context.Context, query string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(results) == 0 {
		zap.L().Debug("geocode: no match", zap.String("query", query))
		return &Result{Matched: false}, nil
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lat %q", first.Lat)
	}
	lng, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lon %q", first.Lon)
	}

	return &Result{
		Lat:         round6(lat),
		Lng:         round6(lng),
		DisplayName: first.DisplayName,
		Matched:     true,
	}, nil
}

// round6 rounds to six decimal places.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
