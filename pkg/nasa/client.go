// Package nasa provides a thin client for the NASA Earth assets and
// imagery APIs used for satellite context on farm locations.
package nasa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the satellite metadata operations.
type Client interface {
	// AssetInfo returns metadata for the most recent Landsat capture at a
	// location, optionally pinned to a date (YYYY-MM-DD).
	AssetInfo(ctx context.Context, lat, lon float64, date string) (*Asset, error)
	// ImageryURL builds the direct imagery URL for a location.
	ImageryURL(lat, lon float64, date string) string
}

// Asset is the parsed assets API response.
type Asset struct {
	ID       string          `json:"id"`
	Date     string          `json:"date"`
	URL      string          `json:"url"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API root (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a NASA Earth API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.nasa.gov/planetary/earth",
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) AssetInfo(ctx context.Context, lat, lon float64, date string) (*Asset, error) {
	params := url.Values{
		"lat":     {fmt.Sprintf("%g", lat)},
		"lon":     {fmt.Sprintf("%g", lon)},
		"dim":     {"0.1"},
		"api_key": {c.apiKey},
	}
	if date != "" {
		params.Set("date", date)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/assets?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nasa: build request")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nasa: request")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nasa: read response")
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nasa: status %d: %s", res.StatusCode, string(body))
	}

	var asset Asset
	if err := json.Unmarshal(body, &asset); err != nil {
		return nil, eris.Wrap(err, "nasa: decode response")
	}
	return &asset, nil
}

func (c *httpClient) ImageryURL(lat, lon float64, date string) string {
	params := url.Values{
		"lat":     {fmt.Sprintf("%g", lat)},
		"lon":     {fmt.Sprintf("%g", lon)},
		"dim":     {"0.15"},
		"api_key": {c.apiKey},
	}
	if date != "" {
		params.Set("date", date)
	}
	return c.baseURL + "/imagery?" + params.Encode()
}
