// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/ingestion"
	"github.com/poiesic/ragquota/lifecycle"
	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxBodyBytes caps the size of request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Handler serves the ingestion, query, deletion and quota endpoints.
type Handler struct {
	pipeline *ingestion.Pipeline
	searcher *search.Searcher
	manager  *lifecycle.Manager
	tracker  *quota.Tracker

	gatherer     prometheus.Gatherer
	health       func(context.Context) error
	maxBodyBytes int64
	now          func() time.Time
	logger       *slog.Logger

	mux *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler) error

// WithGatherer exposes the gatherer's metrics on GET /metrics.
// Without it the route is not registered.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(h *Handler) error {
		h.gatherer = gatherer
		return nil
	}
}

// WithHealthCheck sets the probe behind GET /healthz.
func WithHealthCheck(fn func(context.Context) error) Option {
	return func(h *Handler) error {
		h.health = fn
		return nil
	}
}

// WithMaxBodyBytes sets the request body size limit.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) error {
		if n <= 0 {
			return fmt.Errorf("max body bytes must be positive, got %d", n)
		}
		h.maxBodyBytes = n
		return nil
	}
}

// WithClock sets the time source for quota snapshots.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) error {
		if now != nil {
			h.now = now
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) error {
		if logger != nil {
			h.logger = logger
		}
		return nil
	}
}

// NewHandler creates the HTTP surface over the pipelines.
func NewHandler(
	pipeline *ingestion.Pipeline,
	searcher *search.Searcher,
	manager *lifecycle.Manager,
	tracker *quota.Tracker,
	opts ...Option,
) (*Handler, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if manager == nil {
		return nil, ErrManagerRequired
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}

	h := &Handler{
		pipeline:     pipeline,
		searcher:     searcher,
		manager:      manager,
		tracker:      tracker,
		maxBodyBytes: DefaultMaxBodyBytes,
		now:          time.Now,
		logger:       slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /embed", h.Embed)
	mux.HandleFunc("POST /query", h.Query)
	mux.HandleFunc("DELETE /documents", h.DeleteDocument)
	mux.HandleFunc("GET /metrics/quota", h.QuotaMetrics)
	mux.HandleFunc("POST /context", h.Context)
	mux.HandleFunc("GET /healthz", h.Healthz)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	h.mux = mux

	return h, nil
}

// ServeHTTP dispatches to the registered routes and logs each request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	h.logger.Debug("request served",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start))
}

// Embed handles POST /embed.
func (h *Handler) Embed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if !h.decode(w, r, &req) {
		return
	}

	var meta core.DocumentMetadata
	if req.Metadata != nil {
		meta = *req.Metadata
	}

	result := h.pipeline.Ingest(r.Context(), req.Texts, meta)
	writeJSON(w, ingestStatus(result), result)
}

// Query handles POST /query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := core.ValidateQuery(req.Query, req.Limit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.searcher.Query(r.Context(), req.Query, req.Limit)
	if err != nil {
		h.logger.Error("query failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// DeleteDocument handles DELETE /documents.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	result := h.manager.DeleteDocument(r.Context(), req.DocumentID)
	status := http.StatusOK
	switch {
	case result.Success:
	case errors.Is(result.Err, core.ErrValidation):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// QuotaMetrics handles GET /metrics/quota.
func (h *Handler) QuotaMetrics(w http.ResponseWriter, r *http.Request) {
	usage, err := h.tracker.UsageStatus(r.Context())
	if err != nil {
		h.logger.Error("error reading quota usage", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, QuotaResponse{
		Count:       usage.CurrentCount,
		Limit:       usage.MaxCount,
		PercentUsed: usage.PercentageUsed,
		Timestamp:   h.now().UTC().Format(metrics.TimestampFormat),
	})
}

// Context handles POST /context.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := core.ValidateQuery(req.Query, req.TopK); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := h.searcher.BuildContext(r.Context(), req.Query, req.TopK)
	if err != nil {
		h.logger.Error("context assembly failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ContextResponse{Context: text})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "ok")
}

// decode reads a single JSON object into v, rejecting unknown fields.
// It writes the error response and returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = ErrTrailingData
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
	return false
}

// ingestStatus maps an ingest result to its HTTP status.
// A quota denial is reported as 429 with the usual failure body.
func ingestStatus(result *ingestion.Result) int {
	switch {
	case result.Success:
		return http.StatusOK
	case errors.Is(result.Err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(result.Err, quota.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a {success:false,error} response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
