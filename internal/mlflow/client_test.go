// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/config"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/mlflow/mlflowtest"
)

func testTrackingConfig(uri, token string) *config.TrackingConfig {
	return &config.TrackingConfig{
		URI:        uri,
		Token:      token,
		Timeout:    5 * time.Second,
		PageSize:   2,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

func newTestClient(t *testing.T, srv *mlflowtest.Server) *HTTPClient {
	t.Helper()
	return NewHTTPClient(testTrackingConfig(srv.URL, "secret"), WithRetryBaseDelay(time.Millisecond))
}

func collect(t *testing.T, seq func(func(Record, error) bool)) ([]Record, error) {
	t.Helper()
	var out []Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func TestHTTPClient_SendsBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth, gotAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotAgent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"experiments": []}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(testTrackingConfig(srv.URL, "abc123"))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if got := gotAuth.Load(); got != "Bearer abc123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc123")
	}
	if got := gotAgent.Load(); got != userAgent {
		t.Errorf("User-Agent = %q, want %q", got, userAgent)
	}
}

func TestHTTPClient_OmitsAuthorizationWithoutToken(t *testing.T) {
	t.Parallel()

	var hadAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadAuth.Store(r.Header.Get("Authorization") != "")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if err := NewHTTPClient(testTrackingConfig(srv.URL, "")).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if hadAuth.Load() {
		t.Error("Authorization header sent without a token")
	}
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("expected")
	defer srv.Close()

	client := NewHTTPClient(testTrackingConfig(srv.URL, "wrong"), WithRetryBaseDelay(time.Millisecond))
	_, err := client.ListExperiments(context.Background(), "")
	if err == nil {
		t.Fatal("ListExperiments() error = nil, want unauthorized")
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("errors.Is(err, ErrUnauthorized) = false, err = %v", err)
	}
	if !errors.Is(err, ErrUpstreamRejected) {
		t.Errorf("errors.Is(err, ErrUpstreamRejected) = false, err = %v", err)
	}
	if IsRetryable(err) {
		t.Error("unauthorized error reported as retryable")
	}
	if n := srv.CountRequests("experiments/search"); n != 1 {
		t.Errorf("requests = %d, want 1 (no retry on 401)", n)
	}

	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("IsAPIError() = false for %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "UNAUTHENTICATED" {
		t.Errorf("APIError = {%d %q}, want {401 UNAUTHENTICATED}", apiErr.StatusCode, apiErr.Code)
	}
}

func TestHTTPClient_NotFoundIsRejected(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("secret")
	defer srv.Close()

	_, err := newTestClient(t, srv).GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrUpstreamRejected) {
		t.Fatalf("GetRun() error = %v, want ErrUpstreamRejected", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("404 classified as unauthorized")
	}
	if n := srv.CountRequests("runs/get"); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		times        int
		wantErr      bool
		wantRequests int
	}{
		{"recovers after one 503", http.StatusServiceUnavailable, 1, false, 2},
		{"recovers after two 500s", http.StatusInternalServerError, 2, false, 3},
		{"gives up after retries", http.StatusBadGateway, -1, true, 3},
		{"429 is retried", http.StatusTooManyRequests, 1, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := mlflowtest.NewServer("secret")
			defer srv.Close()
			srv.AddExperiment("1", "churn")
			srv.Fail("experiments/search", tt.status, tt.times)

			page, err := newTestClient(t, srv).ListExperiments(context.Background(), "")
			if tt.wantErr {
				if !errors.Is(err, ErrUpstreamUnavailable) {
					t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
				}
			} else {
				if err != nil {
					t.Fatalf("error = %v", err)
				}
				if len(page.Items) != 1 {
					t.Errorf("items = %d, want 1", len(page.Items))
				}
			}
			if n := srv.CountRequests("experiments/search"); n != tt.wantRequests {
				t.Errorf("requests = %d, want %d", n, tt.wantRequests)
			}
		})
	}
}

func TestHTTPClient_TransportErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := testTrackingConfig(url, "")
	cfg.MaxRetries = 1
	err := NewHTTPClient(cfg, WithRetryBaseDelay(time.Millisecond)).Ping(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Ping() error = %v, want ErrUpstreamUnavailable", err)
	}
	apiErr, ok := IsAPIError(err)
	if !ok || apiErr.StatusCode != 0 {
		t.Errorf("APIError = %+v, want status 0", apiErr)
	}
}

func TestHTTPClient_MalformedBodyNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"experiments": [`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(testTrackingConfig(srv.URL, "")).ListExperiments(context.Background(), "")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("secret")
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv).ListExperiments(ctx, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	c := &HTTPClient{retryBaseDelay: 100 * time.Millisecond}

	tests := []struct {
		name       string
		attempt    int
		retryAfter string
		want       time.Duration
	}{
		{"first attempt", 0, "", 100 * time.Millisecond},
		{"doubles", 2, "", 400 * time.Millisecond},
		{"retry-after seconds", 0, "3", 3 * time.Second},
		{"retry-after zero", 1, "0", 0},
		{"retry-after date ignored", 1, "Wed, 21 Oct 2015 07:28:00 GMT", 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{Header: http.Header{}}
			if tt.retryAfter != "" {
				resp.Header.Set("Retry-After", tt.retryAfter)
			}
			if got := c.retryDelay(tt.attempt, resp); got != tt.want {
				t.Errorf("retryDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseErrorBody(t *testing.T) {
	t.Parallel()

	code, msg := parseErrorBody([]byte(`{"error_code":"INVALID_PARAMETER_VALUE","message":"bad id"}`))
	if code != "INVALID_PARAMETER_VALUE" || msg != "bad id" {
		t.Errorf("parseErrorBody(json) = %q, %q", code, msg)
	}

	code, msg = parseErrorBody([]byte("  gateway timeout \n"))
	if code != "" || msg != "gateway timeout" {
		t.Errorf("parseErrorBody(text) = %q, %q", code, msg)
	}
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "status and code",
			err:  rejected("runs/get", 404, "RESOURCE_DOES_NOT_EXIST", "run r1 not found"),
			want: "mlflow runs/get: upstream rejected: status 404 RESOURCE_DOES_NOT_EXIST: run r1 not found",
		},
		{
			name: "status only",
			err:  unavailable("runs/search", 503, "busy", nil),
			want: "mlflow runs/search: upstream unavailable: status 503: busy",
		},
		{
			name: "cause",
			err:  unavailable("experiments/search", 0, "", errors.New("connection refused")),
			want: "mlflow experiments/search: upstream unavailable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
