/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package server implements the FlySearch HTTP query server.

Endpoints:
==========

	POST /query        - Execute a JSON-encoded SELECT statement
	GET  /tables       - List the loaded tables and their attributes
	GET  /health[...]  - Health checks (see package health)
	GET  /metrics      - Prometheus metrics, when enabled

Request and Response:
=====================

The body of POST /query is a statement in the JSON format documented in
package sql. The response is

	{"columns": ["name", "age"], "rows": [{"name": "Rex", "age": 5}]}

Errors are returned as

	{"error": "column 'colour' does not exist", "code": 2002}

with status 400 for invalid statements, 404 for unknown tables, 504 when
the configured query timeout expires, and 500 for search failures. Search
failures never expose their cause; it is logged with the query id.
*/
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"flysearch/internal/config"
	ferrors "flysearch/internal/errors"
	"flysearch/internal/health"
	"flysearch/internal/logging"
	"flysearch/internal/metrics"
	"flysearch/internal/search"
	"flysearch/internal/sql"
	"flysearch/internal/storage"
)

// Package-level logger for the server component.
var log = logging.NewLogger("server")

// maxBodyBytes bounds the size of a statement.
const maxBodyBytes = 1 << 20

// Querier executes statements. *search.Executor implements it.
type Querier interface {
	Query(ctx context.Context, stmt *sql.Select) (*sql.Result, error)
}

var _ Querier = (*search.Executor)(nil)

// Option configures a Server.
type Option func(*Server)

// WithHealth mounts the checker's endpoints.
func WithHealth(c *health.Checker) Option {
	return func(s *Server) { s.checker = c }
}

// WithMetrics mounts /metrics. The route is only added when metrics are
// enabled in the configuration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTables sets the source of GET /tables.
func WithTables(fn func() []storage.TableInfo) Option {
	return func(s *Server) { s.tables = fn }
}

// Server serves search queries over HTTP.
type Server struct {
	config  *config.Config
	querier Querier
	checker *health.Checker
	metrics *metrics.Metrics
	tables  func() []storage.TableInfo

	router *mux.Router
	server *http.Server
}

// New creates a Server and registers its routes.
func New(cfg *config.Config, querier Querier, opts ...Option) *Server {
	s := &Server{
		config:  cfg,
		querier: querier,
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	if s.tables != nil {
		s.router.HandleFunc("/tables", s.handleTables).Methods(http.MethodGet)
	}
	if s.checker != nil {
		s.checker.RegisterRoutes(s.router)
	}
	if s.metrics != nil && s.config.MetricsEnabled {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("Query server listening", "address", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Query server error", "error", err)
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info("Stopping query server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, ferrors.InvalidValue("body", err.Error()))
		return
	}
	stmt, err := sql.DecodeSelect(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if timeout := s.config.QueryTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := s.querier.Query(ctx, stmt)
	if err != nil {
		writeError(w, statusOf(ctx, err), err)
		return
	}
	data, err := sql.EncodeResult(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tables())
}

// statusOf maps a query error to an HTTP status.
func statusOf(ctx context.Context, err error) int {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case ferrors.IsValidationError(err):
		return http.StatusBadRequest
	case ferrors.GetCode(err) == ferrors.ErrCodeSchemaMissing:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var fe *ferrors.Error
	if ferrors.As(err, &fe) {
		resp = errorResponse{
			Error:  fe.Message,
			Code:   int(fe.Code),
			Detail: fe.Detail,
			Hint:   fe.Hint,
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	})
}
