// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstreamUnavailable marks transient failures that the next attempt or
	// cycle may not see again.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected marks requests the server refused. Retrying the same
	// request will not help.
	ErrUpstreamRejected = errors.New("upstream rejected")

	// ErrUnauthorized is the subset of rejections caused by the credential
	// (HTTP 401/403). It always matches ErrUpstreamRejected too.
	ErrUnauthorized = errors.New("upstream unauthorized")
)

// APIError describes a failed MLflow request.
type APIError struct {
	// Op is the endpoint, e.g. "runs/search".
	Op string

	// StatusCode is 0 for transport failures.
	StatusCode int

	// Code is MLflow's error_code when the body carried one.
	Code string

	Message string

	kinds []error
	cause error
}

func (e *APIError) Error() string {
	kind := "request failed"
	if len(e.kinds) > 0 {
		kind = e.kinds[0].Error()
	}
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("mlflow %s: %s: status %d %s: %s", e.Op, kind, e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("mlflow %s: %s: status %d: %s", e.Op, kind, e.StatusCode, e.Message)
	case e.cause != nil:
		return fmt.Sprintf("mlflow %s: %s: %v", e.Op, kind, e.cause)
	default:
		return fmt.Sprintf("mlflow %s: %s: %s", e.Op, kind, e.Message)
	}
}

// Unwrap exposes the classification sentinels and the underlying cause.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, len(e.kinds)+1)
	errs = append(errs, e.kinds...)
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return errors.Is(e, ErrUpstreamUnavailable)
}

func unavailable(op string, statusCode int, message string, cause error) *APIError {
	return &APIError{
		Op:         op,
		StatusCode: statusCode,
		Message:    message,
		kinds:      []error{ErrUpstreamUnavailable},
		cause:      cause,
	}
}

func rejected(op string, statusCode int, code, message string) *APIError {
	kinds := []error{ErrUpstreamRejected}
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		kinds = append(kinds, ErrUnauthorized)
	}
	return &APIError{
		Op:         op,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		kinds:      kinds,
	}
}

// IsRetryable reports whether err is a transient upstream failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// isRetryableStatus reports whether an HTTP status should be retried.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
