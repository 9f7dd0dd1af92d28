// Package customvision provides a client for the Azure Custom Vision
// prediction API, the image classifier behind disease scans.
package customvision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrisense/maizeguard/internal/resilience"
)

// Client defines the prediction operations.
type Client interface {
	// Classify sends image bytes to the published iteration and returns
	// the normalized prediction result.
	Classify(ctx context.Context, image []byte) (*Result, error)
}

// Result is the normalized classifier output: the top label plus the full
// label-probability map, probabilities rounded to four decimals.
type Result struct {
	Label         string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"all_predictions"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the prediction endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.endpoint = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	endpoint  string
	key       string
	projectID string
	iteration string
	http      *http.Client
	retry     resilience.RetryConfig
}

// NewClient creates a Custom Vision prediction client for one published
// iteration of a project.
func NewClient(endpoint, key, projectID, iteration string, opts ...Option) Client {
	c := &httpClient{
		endpoint:  endpoint,
		key:       key,
		projectID: projectID,
		iteration: iteration,
		http:      &http.Client{Timeout: 30 * time.Second},
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type predictionResponse struct {
	Predictions []struct {
		TagName     string  `json:"tagName"`
		Probability float64 `json:"probability"`
	} `json:"predictions"`
}

func (c *httpClient) Classify(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, eris.New("customvision: empty image")
	}

	// classify/iterations uses the no-store variant so uploads are not
	// retained by the service.
	u := fmt.Sprintf("%s/customvision/v3.0/Prediction/%s/classify/iterations/%s/image/nostore",
		c.endpoint, c.projectID, c.iteration)

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(image))
		if err != nil {
			return nil, eris.Wrap(err, "customvision: build request")
		}
		req.Header.Set("Prediction-Key", c.key)
		req.Header.Set("Content-Type", "application/octet-stream")

		res, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "customvision: request")
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, eris.Wrap(err, "customvision: read response")
		}

		if res.StatusCode != http.StatusOK {
			err := eris.Errorf("customvision: status %d: %s", res.StatusCode, string(data))
			if resilience.IsTransientHTTPStatus(res.StatusCode) {
				return nil, &resilience.TransientError{Err: err, StatusCode: res.StatusCode}
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var resp predictionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "customvision: decode response")
	}
	if len(resp.Predictions) == 0 {
		return nil, eris.New("customvision: no predictions returned")
	}

	result := &Result{Probabilities: make(map[string]float64, len(resp.Predictions))}
	for _, p := range resp.Predictions {
		prob := round4(p.Probability)
		result.Probabilities[p.TagName] = prob
		if prob > result.Confidence || result.Label == "" {
			result.Label = p.TagName
			result.Confidence = prob
		}
	}
	return result, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
