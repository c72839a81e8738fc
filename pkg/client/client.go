// Package client provides the public Go SDK for the Argo engine API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oceanlens/argo-engine/internal/engine"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// Client is the public SDK client for the Argo engine.
type Client struct {
	baseURL string
	http    *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New creates a new Argo engine client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8086"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// QueryRequest represents a query request. Either a natural-language
// question or explicit criteria must be set.
type QueryRequest struct {
	Question string          `json:"question,omitempty"`
	Criteria *query.Criteria `json:"criteria,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// CompareRequest represents a region comparison request.
type CompareRequest struct {
	Regions   []string           `json:"regions"`
	Variables []storage.Variable `json:"variables,omitempty"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Detail     string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("argo-engine: %s (%s)", e.Message, e.Detail)
	}
	return fmt.Sprintf("argo-engine: %s", e.Message)
}

// Query answers a question or runs explicit criteria against the
// engine.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*engine.Response, error) {
	var resp engine.Response
	if err := c.post(ctx, "/api/v1/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compare compares measurement statistics across regions.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (*engine.ComparisonResponse, error) {
	var resp engine.ComparisonResponse
	if err := c.post(ctx, "/api/v1/compare", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFloat retrieves one float by WMO identifier.
func (c *Client) GetFloat(ctx context.Context, wmoID string) (*storage.Float, error) {
	var float storage.Float
	if err := c.get(ctx, "/api/v1/floats/"+wmoID, &float); err != nil {
		return nil, err
	}
	return &float, nil
}

// Region describes one named ocean region.
type Region struct {
	Name string              `json:"name"`
	BBox storage.BoundingBox `json:"bbox"`
}

// Regions lists the regions the engine knows by name.
func (c *Client) Regions(ctx context.Context) ([]Region, error) {
	var regions []Region
	if err := c.get(ctx, "/api/v1/regions", &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// Metrics retrieves engine activity counters.
func (c *Client) Metrics(ctx context.Context) (*engine.Metrics, error) {
	var metrics engine.Metrics
	if err := c.get(ctx, "/api/v1/metrics", &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Health checks the service health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.get(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
