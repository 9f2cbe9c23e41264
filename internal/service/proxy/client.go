// Package proxy forwards prediction requests to a remote inference endpoint.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"objectsguesser/internal/config"
	"objectsguesser/internal/logger"
)

// DefaultThreshold is used when a request omits the threshold.
const DefaultThreshold = 0.9

var (
	// ErrNotConfigured is returned when no inference URL is set.
	ErrNotConfigured = errors.New("INFERENCE_URL is not configured")
	// ErrUpstream wraps transport failures and non-2xx answers from the remote endpoint.
	ErrUpstream = errors.New("inference endpoint failed")
)

// Request is the body forwarded to the remote endpoint.
type Request struct {
	ImageURL  string  `json:"image_url"`
	Threshold float64 `json:"threshold"`
}

// Response is the remote answer, passed back to the caller unchanged.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client posts JSON to the configured endpoint.
type Client struct {
	url    string
	http   *http.Client
	logger *logger.Logger
}

// NewClient creates a proxy client bounded by cfg.ProxyTimeout.
func NewClient(cfg *config.Config, logger *logger.Logger) *Client {
	return &Client{
		url:    cfg.InferenceURL,
		http:   &http.Client{Timeout: cfg.ProxyTimeout},
		logger: logger,
	}
}

// Configured reports whether an endpoint URL is set.
func (c *Client) Configured() bool {
	return c.url != ""
}

// Forward sends req to the remote endpoint once. There are no retries.
func (c *Client) Forward(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("Inference request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warning("Inference endpoint returned %d", resp.StatusCode)
		return nil, fmt.Errorf("%w: remote returned status %d", ErrUpstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}
