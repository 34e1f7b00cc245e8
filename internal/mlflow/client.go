// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
client.go - MLflow REST Client

HTTPClient talks to a single MLflow tracking server. It owns:
  - Bearer authentication from MLFLOW_TRACKING_TOKEN
  - A client-side rate limiter shared by all goroutines of a cycle
  - Retries with exponential backoff for 429, 5xx and transport errors
  - Error classification into ErrUpstreamUnavailable / ErrUpstreamRejected
  - OpenTelemetry client spans through otelhttp

Endpoint methods live in endpoints.go; cursor following lives in pagination.go.
*/

//nolint:staticcheck // File documentation, not package doc
package mlflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/config"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/metrics"
)

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 64 * 1024 // 64KB

const apiPrefix = "/api/2.0/mlflow/"

// userAgent identifies the sync service in MLflow access logs.
const userAgent = "mlflow-sync/1.0"

// Record is one loosely typed upstream object. Numbers are json.Number.
type Record map[string]any

// Page is one page of a cursor-paginated listing.
type Page struct {
	Items []Record

	// NextPageToken is empty on the last page.
	NextPageToken string
}

// Client is the page-level contract of the tracking API. HTTPClient
// implements it against a real server and CircuitBreakerClient decorates it.
type Client interface {
	// Ping checks that the server answers authenticated requests.
	Ping(ctx context.Context) error

	// ListExperiments returns one page of experiments.
	ListExperiments(ctx context.Context, pageToken string) (Page, error)

	// ListRuns returns one page of runs of an experiment.
	ListRuns(ctx context.Context, experimentID, pageToken string) (Page, error)

	// GetRun returns a run including its params and latest metrics.
	GetRun(ctx context.Context, runID string) (Record, error)

	// GetMetricHistory returns one page of the recorded points of a metric.
	GetMetricHistory(ctx context.Context, runID, key, pageToken string) (Page, error)
}

// HTTPClient is the Client implementation backed by net/http.
type HTTPClient struct {
	baseURL        string
	token          string
	pageSize       int
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.client = hc }
}

// WithRetryBaseDelay overrides the first backoff delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *HTTPClient) { c.retryBaseDelay = d }
}

// NewHTTPClient creates a client for the server at cfg.URI.
//
//	client := mlflow.NewHTTPClient(&cfg.Tracking)
//	for exp, err := range mlflow.Experiments(ctx, client) { ... }
func NewHTTPClient(cfg *config.TrackingConfig, opts ...Option) *HTTPClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	c := &HTTPClient{
		baseURL:  strings.TrimRight(cfg.URI, "/"),
		token:    cfg.Token,
		pageSize: cfg.PageSize,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryDelay,
	}
	if c.pageSize <= 0 {
		c.pageSize = 100
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// readBodyForError reads at most 64KB of a response body for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// errorBody is MLflow's JSON error shape.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func parseErrorBody(body []byte) (code, message string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && (eb.ErrorCode != "" || eb.Message != "") {
		return eb.ErrorCode, eb.Message
	}
	return "", strings.TrimSpace(string(body))
}

// retryDelay returns the wait before the given retry attempt (0-based),
// honoring a Retry-After header in seconds.
func (c *HTTPClient) retryDelay(attempt int, resp *http.Response) time.Duration {
	delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(strings.TrimSpace(ra)); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}
	}
	return delay
}

// do sends one logical request, retrying transient failures, and decodes a
// successful JSON body into out.
func (c *HTTPClient) do(ctx context.Context, op, method string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + apiPrefix + op
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("mlflow %s: encode request: %w", op, err)
		}
	}

	var lastErr *APIError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		resp, err := c.send(ctx, method, endpoint, payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RecordUpstreamRequest(op, "transport_error", time.Since(start))
			lastErr = unavailable(op, 0, "", err)
		} else {
			apiErr := handleResponse(op, resp, out)
			metrics.RecordUpstreamRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start))
			if apiErr == nil {
				return nil
			}
			if !apiErr.Retryable() || apiErr.StatusCode == 0 {
				return apiErr
			}
			lastErr = apiErr
		}

		if attempt == c.maxRetries {
			break
		}

		delay := c.retryDelay(attempt, resp)
		logging.Ctx(ctx).Debug().
			Str("endpoint", op).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Retrying MLflow request")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if lastErr == nil {
		return unavailable(op, 0, "no attempt made", nil)
	}
	return lastErr
}

// send performs a single HTTP round trip.
func (c *HTTPClient) send(ctx context.Context, method, endpoint string, payload []byte) (*http.Response, error) {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.client.Do(req)
}

// handleResponse classifies the response and decodes it on success. A
// decode failure is returned with StatusCode 0 so it is not retried.
func handleResponse(op string, resp *http.Response, out any) *APIError {
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return unavailable(op, 0, "", fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	code, message := parseErrorBody(readBodyForError(resp.Body))
	if isRetryableStatus(resp.StatusCode) {
		apiErr := unavailable(op, resp.StatusCode, message, nil)
		apiErr.Code = code
		return apiErr
	}
	return rejected(op, resp.StatusCode, code, message)
}

// IsAPIError extracts the *APIError from err.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
