// Package probe is an HTTP client for the external visibility probe that
// scores a geography. The geo pool uses Client.Acquire as its acquisition
// function.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Dealer-Trust-Engine/1.0"
	apiKeyHeader   = "X-API-Key"
)

// HealthResponse is the probe service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ErrorResponse is the probe service error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is returned for any non-2xx answer from the probe service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("probe service error (%d): %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// GeoScoreResponse is one probe run for a geography. Score is on the 0-100 scale.
type GeoScoreResponse struct {
	City       string    `json:"city"`
	State      string    `json:"state"`
	Score      float64   `json:"score"`
	Engines    []string  `json:"engines,omitempty"`
	ProbedAt   time.Time `json:"probed_at"`
	QueryCount int       `json:"query_count,omitempty"`
}

// Client talks to the probe service.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	apiKey     string
	logger     *logrus.Logger
}

// NewClient creates a client from the probe configuration. A zero timeout
// uses 30 seconds.
func NewClient(cfg *config.ProbeConfig, logger *logrus.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimSuffix(cfg.ServiceURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

// HealthCheck checks if the probe service is reachable.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var response HealthResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/health", &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetGeoScore runs the probe for one geography.
func (c *Client) GetGeoScore(ctx context.Context, city, state string) (*GeoScoreResponse, error) {
	path := fmt.Sprintf("/api/visibility/%s/%s", url.PathEscape(state), url.PathEscape(city))
	var response GeoScoreResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Acquire matches the geo pool's acquisition signature and returns the base
// score for (city, state).
func (c *Client) Acquire(ctx context.Context, city, state string) (float64, error) {
	resp, err := c.GetGeoScore(ctx, city, state)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(resp.Score) || math.IsInf(resp.Score, 0) {
		return 0, fmt.Errorf("probe returned non-finite score for %s, %s", city, state)
	}
	return resp.Score, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("Error closing probe response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: errorResp.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
