// Package transport posts GraphQL requests to the query service over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"dune-client/internal/domain"
)

// Default endpoints of the hosted service.
const (
	DefaultBaseURL  = "https://dune.xyz"
	DefaultGraphURL = "https://core-hsr.dune.xyz/v1/graphql"
)

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// maxResponseBody caps how much of a response body is read.
const maxResponseBody = 64 << 20

var _ domain.GraphQLPoster = (*Client)(nil)

// Config configures a Client.
type Config struct {
	// GraphURL is the GraphQL endpoint (default DefaultGraphURL).
	GraphURL string
	// Origin is sent as the origin header (default DefaultBaseURL).
	Origin string
	// Timeout for a single request (default 30s).
	Timeout time.Duration
	// RateLimit in requests per second (default 5). Burst defaults to 5.
	RateLimit float64
	RateBurst int
	// HTTPClient overrides the underlying client (for tests).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client sends GraphQL-over-HTTP POST requests.
type Client struct {
	graphURL    string
	origin      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a Client, filling unset Config fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		graphURL:    cfg.GraphURL,
		origin:      cfg.Origin,
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:      cfg.Logger,
	}
}

// BrowserHeaders returns the headers the service expects from its web UI.
func BrowserHeaders(origin string) http.Header {
	h := http.Header{}
	h.Set("origin", origin)
	h.Set("sec-ch-ua", "empty")
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-site")
	h.Set("dnt", "1")
	return h
}

// Post marshals payload and sends it with the bearer token. Any HTTP status
// is returned as a RawResponse; only failures to get a response at all are
// errors.
func (c *Client) Post(ctx context.Context, token string, payload any) (*domain.RawResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	requestID := domain.NewRequestID()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = BrowserHeaders(c.origin)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ConnectionError{Op: "post " + c.graphURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &domain.ConnectionError{Op: "read response", Err: err}
	}

	c.logger.Debug("graphql request",
		"request_id", requestID,
		"status", resp.StatusCode,
		"bytes", len(respBody),
		"duration", time.Since(start))

	return &domain.RawResponse{StatusCode: resp.StatusCode, Body: respBody, RequestID: requestID}, nil
}
