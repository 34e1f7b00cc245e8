// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
)

type contextKey string

// RequestIDKey is the context key of the request ID.
const RequestIDKey contextKey = "request_id"

// maxRequestIDLength caps IDs accepted from upstream proxies.
const maxRequestIDLength = 128

// RequestID assigns every request an ID and a correlation ID.
//
// X-Request-ID and X-Correlation-ID headers from an upstream proxy are
// kept; otherwise fresh IDs are generated. Both are echoed in the response
// and attached to the context logger, so logging.Ctx(r.Context()) carries
// request_id and correlation_id.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		if cid := r.Header.Get("X-Correlation-ID"); cid != "" && len(cid) <= maxRequestIDLength {
			ctx = logging.ContextWithCorrelationID(ctx, cid)
		} else {
			ctx = logging.ContextWithNewCorrelationID(ctx)
		}
		w.Header().Set("X-Correlation-ID", logging.CorrelationIDFromContext(ctx))
		ctx = logging.ContextWithLogger(ctx,
			logging.LoggerFromContext(ctx).With().Str("request_id", requestID).Logger())

		next(w, r.WithContext(ctx))
	}
}

// GetRequestID returns the request ID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
