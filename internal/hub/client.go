// Package hub talks to the Hugging Face Hub API and the hosted Inference API.
//
// Every call returns the raw response whatever its status; interpreting the
// status is left to the caller. Only transport failures, timeouts and a
// refused local request budget are returned as errors.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/hftoken/internal/ratelimit"
)

const (
	DefaultLookupTimeout    = 10 * time.Second
	DefaultInferenceTimeout = 30 * time.Second

	maxBodyBytes = 1 << 20
	userAgent    = "hftoken/1.0"
)

// Response is a received HTTP answer.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports a 200 status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// InferenceRequest is the JSON body sent to the Inference API.
type InferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters InferenceParameters `json:"parameters"`
}

type InferenceParameters struct {
	MaxNewTokens int `json:"max_new_tokens"`
}

// Client issues authenticated requests. Zero timeouts fall back to the defaults.
type Client struct {
	BaseURL          string
	InferenceURL     string
	LookupTimeout    time.Duration
	InferenceTimeout time.Duration
	HTTPClient       *http.Client
	Budget           *ratelimit.Budget
	Logger           *slog.Logger
}

// NewClient creates a client for the given Hub and Inference base URLs.
func NewClient(baseURL, inferenceURL string) *Client {
	return &Client{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		InferenceURL:     strings.TrimRight(inferenceURL, "/"),
		LookupTimeout:    DefaultLookupTimeout,
		InferenceTimeout: DefaultInferenceTimeout,
		HTTPClient:       &http.Client{},
		Logger:           slog.Default(),
	}
}

// WhoAmI looks up the principal the token belongs to.
func (c *Client) WhoAmI(ctx context.Context, token string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.hubURL("/api/whoami"), token, nil, c.lookupTimeout())
}

// ModelInfo fetches model metadata. Model ids keep their namespace separator.
func (c *Client) ModelInfo(ctx context.Context, token, modelID string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.hubURL("/api/models/"+EscapeModelID(modelID)), token, nil, c.lookupTimeout())
}

// Usage fetches billing and usage metadata.
func (c *Client) Usage(ctx context.Context, token string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.hubURL("/api/billing/usage"), token, nil, c.lookupTimeout())
}

// Infer runs one inference request against modelID.
func (c *Client) Infer(ctx context.Context, token, modelID string, req InferenceRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}
	endpoint := strings.TrimRight(c.InferenceURL, "/") + "/models/" + EscapeModelID(modelID)
	return c.do(ctx, http.MethodPost, endpoint, token, body, c.inferenceTimeout())
}

// EscapeModelID escapes each path segment of a model id.
func EscapeModelID(id string) string {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body []byte, timeout time.Duration) (*Response, error) {
	if c.Budget != nil {
		if err := c.Budget.Take(); err != nil {
			return nil, RateLimited(err, endpoint)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, NetworkFailure(err, endpoint)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger().Warn("failed to close response body", "endpoint", endpoint, "error", err)
		}
	}(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, NetworkFailure(err, endpoint)
	}

	if resp.StatusCode == http.StatusTooManyRequests && c.Budget != nil {
		c.Budget.RecordThrottled()
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Duration:   time.Since(start),
	}
	c.logger().Debug("hub request",
		"method", method,
		"endpoint", endpoint,
		"status", out.StatusCode,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (c *Client) hubURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c *Client) lookupTimeout() time.Duration {
	if c.LookupTimeout > 0 {
		return c.LookupTimeout
	}
	return DefaultLookupTimeout
}

func (c *Client) inferenceTimeout() time.Duration {
	if c.InferenceTimeout > 0 {
		return c.InferenceTimeout
	}
	return DefaultInferenceTimeout
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
