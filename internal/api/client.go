// Package api provides the JSON REST client for the task backend.
//
// The backend exposes tasks, tags, and projects under /api/v1 with standard
// CRUD verbs, plus a health probe at /api/health. The backend transmits
// enum values in a different casing convention than internal state; all
// ingress paths normalize to the canonical lowercase form before a value
// reaches a store.
//
// Every call takes a context for cancellation. In-flight requests abandoned
// by a store (teardown, superseded operation) are cancelled through the
// context rather than left to complete against stale state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend origin, e.g. "http://localhost:3001".
	// The /api/v1 prefix is appended per resource.
	BaseURL string

	// HealthTimeout bounds the health probe (default: 5s).
	HealthTimeout time.Duration

	// HTTPClient overrides the transport (default: http.Client with a
	// 30s overall timeout).
	HTTPClient *http.Client

	// Logger for request diagnostics.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://localhost:3001",
		HealthTimeout: 5 * time.Second,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		Logger:        log.New(os.Stderr, "[api] ", log.LstdFlags),
	}
}

// Client talks to the REST backend.
type Client struct {
	base          string
	healthTimeout time.Duration
	hc            *http.Client
	logger        *log.Logger
}

// New creates a client from the given config. A nil config uses defaults;
// zero-value fields fall back individually.
func New(config *Config) *Client {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	base := config.BaseURL
	if base == "" {
		base = defaults.BaseURL
	}
	healthTimeout := config.HealthTimeout
	if healthTimeout == 0 {
		healthTimeout = defaults.HealthTimeout
	}
	hc := config.HTTPClient
	if hc == nil {
		hc = defaults.HTTPClient
	}
	logger := config.Logger
	if logger == nil {
		logger = defaults.Logger
	}
	return &Client{
		base:          strings.TrimRight(base, "/"),
		healthTimeout: healthTimeout,
		hc:            hc,
		logger:        logger,
	}
}

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("api: request failed with status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// do performs one JSON round trip. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// readErrorMessage extracts a message from an error response body. The
// backend replies with {"error": "..."} or {"message": "..."}; plain-text
// bodies are passed through truncated.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// Health probes GET /api/health. The probe has its own timeout, independent
// of the caller's context, so a hung backend is reported within
// HealthTimeout rather than the transport's limit.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	var status struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &status); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if status.Status != "ok" {
		return fmt.Errorf("backend unhealthy: status %q", status.Status)
	}
	return nil
}
