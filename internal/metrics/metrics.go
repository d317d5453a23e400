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
Package metrics provides Prometheus metrics for FlySearch.

METRIC CATEGORIES:
==================
- Queries: completed searches by execution path (fast, general, direct)
- Failures: rejected or failed searches by kind (validation, stage)
- Fetches: storage bridge calls by strategy, and the ones that failed
- Narrowing: rows pruned by the narrowing join
- Latency: histogram of search durations by execution path

PROMETHEUS ENDPOINT:
====================
Metrics are exposed at /metrics in Prometheus text format, either on the
query server's router or on a dedicated metrics listener.

EXAMPLE METRICS:
================

	flysearch_queries_total{path="fast"} 120
	flysearch_fetches_total{strategy="value"} 4312
	flysearch_fetch_errors_total{strategy="range"} 2
	flysearch_rows_pruned_total 98311
	flysearch_query_duration_seconds_bucket{path="general",le="0.005"} 17

Every recording method is safe to call on a nil *Metrics, so components
can be built without metrics.
*/
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flysearch/internal/config"
	"flysearch/internal/logging"
)

const namespace = "flysearch"

// Metrics holds the FlySearch collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	queries     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	rowsPruned  prometheus.Counter
	duration    *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Completed searches by execution path.",
		}, []string{"path"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Searches that returned an error, by kind.",
		}, []string{"kind"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Storage bridge calls by fetch strategy.",
		}, []string{"strategy"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Storage bridge calls that failed, by fetch strategy.",
		}, []string{"strategy"}),
		rowsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_pruned_total",
			Help:      "Materialized rows removed by the narrowing join.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Search latency by execution path.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"path"}),
	}
	m.registry.MustRegister(m.queries, m.failures, m.fetches, m.fetchErrors, m.rowsPruned, m.duration)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordQuery records a completed search.
func (m *Metrics) RecordQuery(path string, latency time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(path).Inc()
	m.duration.WithLabelValues(path).Observe(latency.Seconds())
}

// RecordFailure records a failed search.
func (m *Metrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// RecordFetch records one storage bridge call and whether it failed.
func (m *Metrics) RecordFetch(strategy string, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(strategy).Inc()
	if err != nil {
		m.fetchErrors.WithLabelValues(strategy).Inc()
	}
}

// RecordPruned records rows removed by narrowing.
func (m *Metrics) RecordPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsPruned.Add(float64(n))
}

// Handler returns an http.Handler serving the registry in Prometheus text
// format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server provides a dedicated HTTP listener for Prometheus metrics.
type Server struct {
	config  *config.Config
	metrics *Metrics
	server  *http.Server
	logger  *logging.Logger
}

// NewServer creates a new metrics server.
func NewServer(cfg *config.Config, m *Metrics) *Server {
	return &Server{
		config:  cfg,
		metrics: m,
		logger:  logging.NewLogger("metrics"),
	}
}

// Start starts the metrics HTTP server.
func (s *Server) Start() error {
	if !s.config.MetricsEnabled {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	router := mux.NewRouter()
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              s.config.MetricsAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("Starting metrics server", "addr", s.config.MetricsAddr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server error", "error", err)
		}
	}()

	return nil
}

// Stop stops the metrics HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
