// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

// Package mlflowtest provides an in-memory MLflow tracking server for tests.
//
//	srv := mlflowtest.NewServer("token")
//	defer srv.Close()
//	srv.AddExperiment("1", "churn")
//	srv.AddRun("1", mlflowtest.Run{ID: "r1", StartTime: 1700000000000})
//
// The server implements the four endpoints used by the sync client, paginates
// with opaque tokens, checks the bearer token, and can inject failures per
// endpoint and experiment.
package mlflowtest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Run describes a seeded run.
type Run struct {
	ID        string
	Name      string
	Status    string
	StartTime any // epoch ms number, string, or nil
	EndTime   any

	// Params are raw param objects, e.g. {"key": "lr", "value": "0.1"}.
	Params []map[string]any

	// Metrics are the latest values, e.g. {"key": "loss", "value": 0.2, "timestamp": 1, "step": 3}.
	Metrics []map[string]any

	// History maps a metric key to its full series.
	History map[string][]map[string]any
}

// Server is a fake MLflow tracking server.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	token       string
	pageSize    int
	experiments []map[string]any
	runs        map[string][]*Run
	runsByID    map[string]*Run
	runExp      map[string]string
	failures    map[string]failure
	requests    []string
}

type failure struct {
	status int
	times  int // <0 means always
}

// NewServer starts a server that requires "Bearer <token>" when token is set.
func NewServer(token string) *Server {
	s := &Server{
		token:    token,
		runs:     make(map[string][]*Run),
		runsByID: make(map[string]*Run),
		runExp:   make(map[string]string),
		failures: make(map[string]failure),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/2.0/mlflow/experiments/search", s.searchExperiments)
	mux.HandleFunc("POST /api/2.0/mlflow/runs/search", s.searchRuns)
	mux.HandleFunc("GET /api/2.0/mlflow/runs/get", s.getRun)
	mux.HandleFunc("GET /api/2.0/mlflow/metrics/get-history", s.getMetricHistory)
	s.Server = httptest.NewServer(s.auth(mux))
	return s
}

// SetPageSize caps every page at n items regardless of max_results.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// AddExperiment seeds an experiment.
func (s *Server) AddExperiment(id, name string) {
	s.AddRawExperiment(map[string]any{"experiment_id": id, "name": name, "lifecycle_stage": "active"})
}

// AddRawExperiment seeds an arbitrary experiment object.
func (s *Server) AddRawExperiment(obj map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiments = append(s.experiments, obj)
}

// AddRun seeds a run under an experiment.
func (s *Server) AddRun(experimentID string, r Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := r
	s.runs[experimentID] = append(s.runs[experimentID], &run)
	s.runsByID[r.ID] = &run
	s.runExp[r.ID] = experimentID
}

// SetRunEnd changes the end time of a seeded run.
func (s *Server) SetRunEnd(runID string, endTime any, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runsByID[runID]; ok {
		run.EndTime = endTime
		run.Status = status
	}
}

// SetParam sets or replaces a param value of a seeded run.
func (s *Server) SetParam(runID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runsByID[runID]
	if !ok {
		return
	}
	for _, p := range run.Params {
		if p["key"] == key {
			p["value"] = value
			return
		}
	}
	run.Params = append(run.Params, map[string]any{"key": key, "value": value})
}

// Fail makes requests matching key answer with status. times < 0 fails
// forever. Keys are "<endpoint>" or "<endpoint>:<id>", where id is the
// experiment ID for runs/search and the run ID for runs/get.
func (s *Server) Fail(key string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = failure{status: status, times: times}
}

// Requests returns the request log as "METHOD path" entries.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts logged requests whose path contains substr.
func (s *Server) CountRequests(substr string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.Contains(r, substr) {
			n++
		}
	}
	return n
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		token := s.token
		s.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// injected returns a status to fail with, consuming one failure.
func (s *Server) injected(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		f, ok := s.failures[k]
		if !ok || f.times == 0 {
			continue
		}
		if f.times > 0 {
			f.times--
			s.failures[k] = f
		}
		return f.status
	}
	return 0
}

func (s *Server) searchExperiments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxResults int    `json:"max_results"`
		PageToken  string `json:"page_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	if status := s.injected("experiments/search"); status != 0 {
		writeError(w, status, "INTERNAL_ERROR", "injected failure")
		return
	}

	s.mu.Lock()
	all := append([]map[string]any(nil), s.experiments...)
	s.mu.Unlock()

	page, next := s.paginate(len(all), req.MaxResults, req.PageToken)
	writeJSON(w, map[string]any{"experiments": all[page[0]:page[1]], "next_page_token": next})
}

func (s *Server) searchRuns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperimentIDs []string `json:"experiment_ids"`
		MaxResults    int      `json:"max_results"`
		PageToken     string   `json:"page_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ExperimentIDs) != 1 {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "exactly one experiment id expected")
		return
	}
	expID := req.ExperimentIDs[0]
	if status := s.injected("runs/search:"+expID, "runs/search"); status != 0 {
		writeError(w, status, "INTERNAL_ERROR", "injected failure")
		return
	}

	s.mu.Lock()
	runs := make([]map[string]any, 0, len(s.runs[expID]))
	for _, run := range s.runs[expID] {
		runs = append(runs, runObject(expID, run))
	}
	s.mu.Unlock()

	page, next := s.paginate(len(runs), req.MaxResults, req.PageToken)
	writeJSON(w, map[string]any{"runs": runs[page[0]:page[1]], "next_page_token": next})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if status := s.injected("runs/get:"+runID, "runs/get"); status != 0 {
		writeError(w, status, "INTERNAL_ERROR", "injected failure")
		return
	}

	s.mu.Lock()
	run, ok := s.runsByID[runID]
	var obj map[string]any
	if ok {
		obj = runObject(s.runExp[runID], run)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "run "+runID+" not found")
		return
	}
	writeJSON(w, map[string]any{"run": obj})
}

func (s *Server) getMetricHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	runID, key := q.Get("run_id"), q.Get("metric_key")
	if status := s.injected("metrics/get-history:"+runID, "metrics/get-history"); status != 0 {
		writeError(w, status, "INTERNAL_ERROR", "injected failure")
		return
	}
	maxResults, _ := strconv.Atoi(q.Get("max_results"))

	s.mu.Lock()
	run, ok := s.runsByID[runID]
	var points []map[string]any
	if ok {
		if hist, found := run.History[key]; found {
			points = append(points, hist...)
		} else {
			for _, m := range run.Metrics {
				if m["key"] == key {
					points = append(points, m)
				}
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "run "+runID+" not found")
		return
	}
	page, next := s.paginate(len(points), maxResults, q.Get("page_token"))
	writeJSON(w, map[string]any{"metrics": points[page[0]:page[1]], "next_page_token": next})
}

// paginate returns the [start,end) window for a token and the next token.
func (s *Server) paginate(total, maxResults int, token string) ([2]int, string) {
	s.mu.Lock()
	size := s.pageSize
	s.mu.Unlock()
	if size <= 0 || (maxResults > 0 && maxResults < size) {
		size = maxResults
	}
	if size <= 0 {
		size = total
	}

	start := 0
	if token != "" {
		start, _ = strconv.Atoi(strings.TrimPrefix(token, "offset-"))
	}
	if start > total {
		start = total
	}
	end := start + size
	if end >= total {
		return [2]int{start, total}, ""
	}
	return [2]int{start, end}, "offset-" + strconv.Itoa(end)
}

func runObject(experimentID string, run *Run) map[string]any {
	info := map[string]any{
		"run_id":          run.ID,
		"run_uuid":        run.ID,
		"experiment_id":   experimentID,
		"run_name":        run.Name,
		"status":          run.Status,
		"lifecycle_stage": "active",
	}
	if run.StartTime != nil {
		info["start_time"] = run.StartTime
	}
	if run.EndTime != nil {
		info["end_time"] = run.EndTime
	}
	params := make([]any, 0, len(run.Params))
	for _, p := range run.Params {
		params = append(params, p)
	}
	latest := make([]any, 0, len(run.Metrics))
	for _, m := range run.Metrics {
		latest = append(latest, m)
	}
	return map[string]any{
		"info": info,
		"data": map[string]any{"params": params, "metrics": latest},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error_code": code, "message": message})
}
