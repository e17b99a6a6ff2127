// Package weather fetches environmental conditions for an athlete's
// coordinates. The provider is optional and best-effort: callers treat
// any failure as "no data", never as a fatal error.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/briangreenhill/runcoach/cache"
)

// Conditions is the subset of forecast data the engine cares about.
type Conditions struct {
	TempC         float64 `json:"temp_c"`
	WindKph       float64 `json:"wind_kph"`
	PrecipProbPct float64 `json:"precip_prob_pct"`
}

type Client struct {
	http    *http.Client
	baseURL *url.URL

	cache cache.Cache // optional; nil means no cache
	ttl   time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithCache(rc cache.Cache, ttl time.Duration) Option {
	return func(c *Client) { c.cache, c.ttl = rc, ttl }
}

// New creates a client for an open-meteo compatible forecast endpoint.
func New(rawURL string, opts ...Option) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("weather URL required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse weather URL: %w", err)
	}
	c := &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: u,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type forecastResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		PrecipProbPct float64 `json:"precipitation_probability"`
	} `json:"current"`
}

// Current returns conditions at the given coordinates. Coordinates are
// rounded to two decimals for cache locality.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	params := map[string]string{
		"latitude":  strconv.FormatFloat(lat, 'f', 2, 64),
		"longitude": strconv.FormatFloat(lon, 'f', 2, 64),
		"current":   "temperature_2m,wind_speed_10m,precipitation_probability",
	}

	var cacheKey string
	var stale *cache.Entry
	if c.cache != nil {
		cacheKey = c.cache.KeyFor("forecast", params)
		if entry, ok := c.cache.Read(cacheKey, c.ttl); ok {
			var fr forecastResponse
			if err := json.Unmarshal(entry.Body, &fr); err == nil {
				return conditionsFrom(fr), nil
			}
		} else if entry != nil && entry.ETag != "" {
			// expired but revalidatable
			stale = entry
		}
	}

	u := *c.baseURL
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if stale != nil {
		req.Header.Set("If-None-Match", stale.ETag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotModified && stale != nil {
		// freshen the entry so the next read hits within TTL again
		_ = c.cache.Write(cacheKey, &cache.Entry{ETag: stale.ETag, Body: stale.Body})
		var fr forecastResponse
		if err := json.Unmarshal(stale.Body, &fr); err != nil {
			return nil, fmt.Errorf("unmarshal cached weather: %w", err)
		}
		return conditionsFrom(fr), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather body: %w", err)
	}

	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("unmarshal weather: %w", err)
	}

	if c.cache != nil {
		_ = c.cache.Write(cacheKey, &cache.Entry{ETag: resp.Header.Get("ETag"), Body: body})
	}
	return conditionsFrom(fr), nil
}

func conditionsFrom(fr forecastResponse) *Conditions {
	return &Conditions{
		TempC:         fr.Current.Temperature,
		WindKph:       fr.Current.WindSpeed,
		PrecipProbPct: fr.Current.PrecipProbPct,
	}
}
