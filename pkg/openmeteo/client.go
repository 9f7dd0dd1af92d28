// Package openmeteo provides a client for the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/agrisense/maizeguard/internal/resilience"
)

// Client defines the weather operations consumed by the service layer.
type Client interface {
	// Current fetches the current conditions at a location.
	Current(ctx context.Context, latitude, longitude float64) (*Current, error)
	// Forecast fetches a daily forecast, 1-16 days ahead.
	Forecast(ctx context.Context, latitude, longitude float64, days int) ([]Day, error)
}

// Current holds current conditions. Open-Meteo may omit any variable, so
// every field is optional.
type Current struct {
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity"`
	Precipitation *float64 `json:"precipitation"`
	WindSpeed     *float64 `json:"wind_speed"`
}

// Day holds one day of forecast aggregates.
type Day struct {
	Date          string   `json:"date"`
	TempMax       *float64 `json:"temp_max"`
	TempMin       *float64 `json:"temp_min"`
	Precipitation *float64 `json:"precipitation"`
	Humidity      *float64 `json:"humidity"`
	WindSpeed     *float64 `json:"wind_speed"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an Open-Meteo client. The API needs no key; a modest
// rate limit keeps us inside the free tier.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type currentResponse struct {
	Current struct {
		Temperature   *float64 `json:"temperature_2m"`
		Humidity      *float64 `json:"relative_humidity_2m"`
		Precipitation *float64 `json:"precipitation"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

func (c *httpClient) Current(ctx context.Context, latitude, longitude float64) (*Current, error) {
	params := url.Values{
		"latitude":  {fmt.Sprintf("%g", latitude)},
		"longitude": {fmt.Sprintf("%g", longitude)},
		"current":   {"temperature_2m,relative_humidity_2m,precipitation,weather_code,wind_speed_10m"},
		"timezone":  {"auto"},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "openmeteo: decode current response")
	}

	return &Current{
		Temperature:   resp.Current.Temperature,
		Humidity:      resp.Current.Humidity,
		Precipitation: resp.Current.Precipitation,
		WindSpeed:     resp.Current.WindSpeed,
	}, nil
}

type forecastResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		TempMax       []*float64 `json:"temperature_2m_max"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		Precipitation []*float64 `json:"precipitation_sum"`
		Humidity      []*float64 `json:"relative_humidity_2m_max"`
		WindSpeed     []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

func (c *httpClient) Forecast(ctx context.Context, latitude, longitude float64, days int) ([]Day, error) {
	if days < 1 || days > 16 {
		return nil, eris.Errorf("openmeteo: forecast days %d outside 1-16", days)
	}

	params := url.Values{
		"latitude":      {fmt.Sprintf("%g", latitude)},
		"longitude":     {fmt.Sprintf("%g", longitude)},
		"daily":         {"temperature_2m_max,temperature_2m_min,precipitation_sum,relative_humidity_2m_max,wind_speed_10m_max"},
		"forecast_days": {fmt.Sprintf("%d", days)},
		"timezone":      {"auto"},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "openmeteo: decode forecast response")
	}

	daily := resp.Daily
	out := make([]Day, 0, len(daily.Time))
	for i, date := range daily.Time {
		d := Day{Date: date}
		d.TempMax = at(daily.TempMax, i)
		d.TempMin = at(daily.TempMin, i)
		d.Precipitation = at(daily.Precipitation, i)
		d.Humidity = at(daily.Humidity, i)
		d.WindSpeed = at(daily.WindSpeed, i)
		out = append(out, d)
	}
	return out, nil
}

// get performs a rate-limited GET with transient-error retry.
func (c *httpClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "openmeteo: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "openmeteo: build request")
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "openmeteo: request")
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, eris.Wrap(err, "openmeteo: read response")
		}

		if res.StatusCode != http.StatusOK {
			err := eris.Errorf("openmeteo: status %d: %s", res.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(res.StatusCode) {
				return nil, &resilience.TransientError{Err: err, StatusCode: res.StatusCode}
			}
			return nil, err
		}
		return body, nil
	})
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}
