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
Package health provides health check endpoints for FlySearch.

ENDPOINTS:
==========

	GET /health       - Overall health check
	GET /health/live  - Liveness check (is the process running?)
	GET /health/ready - Readiness check (is the service ready for traffic?)

STATUS VALUES:
==============
  - healthy: All checks pass
  - degraded: Some non-critical checks fail
  - unhealthy: Critical checks fail

The endpoints are mounted on the query server's router; see
RegisterRoutes.
*/
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"flysearch/internal/logging"
)

// checkTimeout bounds a single check.
const checkTimeout = 2 * time.Second

// Status is the outcome of a check or of a whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// severity orders statuses from best to worst.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

// Result is the outcome of one named check.
type Result struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Report is the body of every health endpoint.
type Report struct {
	Status    Status   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Version   string   `json:"version,omitempty"`
	Checks    []Result `json:"checks,omitempty"`
}

// Check probes one dependency. It should return promptly once ctx is done.
type Check func(ctx context.Context) Result

// Checker holds the registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	version string
	logger  *logging.Logger
}

// NewChecker creates a Checker that reports version.
func NewChecker(version string) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		version: version,
		logger:  logging.NewLogger("health"),
	}
}

// RegisterCheck adds or replaces the check called name.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

func (c *Checker) report(status Status, checks []Result) Report {
	return Report{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
		Checks:    checks,
	}
}

// RunChecks runs every check concurrently and reports them in name order.
// The overall status is the worst individual status.
func (c *Checker) RunChecks(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make([]Check, len(names))
	sort.Strings(names)
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]Result, len(names))
	var g errgroup.Group
	for i := range checks {
		i := i
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			res := checks[i](cctx)
			res.Name = names[i]
			res.LatencyMs = time.Since(start).Milliseconds()
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	status := StatusHealthy
	for _, res := range results {
		if res.Status.severity() > status.severity() {
			status = res.Status
		}
	}
	if status != StatusHealthy {
		c.logger.Warn("Health check failed", "status", status)
	}
	return c.report(status, results)
}

// IsHealthy reports whether every check passes.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	return c.RunChecks(ctx).Status == StatusHealthy
}

// RegisterRoutes mounts the health endpoints on r.
func (c *Checker) RegisterRoutes(r *mux.Router) {
	for path, h := range map[string]http.HandlerFunc{
		"/health":       c.handleHealth,
		"/health/live":  c.handleLiveness,
		"/health/ready": c.handleReadiness,
	} {
		r.HandleFunc(path, h).Methods(http.MethodGet)
	}
}

// handleHealth fails on anything but healthy.
func (c *Checker) handleHealth(w http.ResponseWriter, r *http.Request) {
	c.respond(w, c.RunChecks(r.Context()), StatusHealthy)
}

// handleLiveness only reports that the process is serving requests.
func (c *Checker) handleLiveness(w http.ResponseWriter, r *http.Request) {
	c.respond(w, c.report(StatusHealthy, nil), StatusHealthy)
}

// handleReadiness accepts traffic while degraded.
func (c *Checker) handleReadiness(w http.ResponseWriter, r *http.Request) {
	c.respond(w, c.RunChecks(r.Context()), StatusDegraded)
}

// respond writes rep with 200 when its status is no worse than tolerated.
func (c *Checker) respond(w http.ResponseWriter, rep Report, tolerated Status) {
	code := http.StatusOK
	if rep.Status.severity() > tolerated.severity() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		c.logger.Warn("Failed to write health report", "error", err)
	}
}

// StorageCheck fails the service when ping returns an error.
func StorageCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			return Result{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Result{Status: StatusHealthy}
	}
}

// TablesCheck reports degraded while no table is loaded: the service
// answers queries but every FROM fails.
func TablesCheck(count func() int) Check {
	return func(ctx context.Context) Result {
		n := count()
		if n == 0 {
			return Result{Status: StatusDegraded, Message: "no tables loaded"}
		}
		return Result{Status: StatusHealthy, Message: fmt.Sprintf("%d tables loaded", n)}
	}
}

// CacheCheck reports the catalog cache hit rate. It never fails.
func CacheCheck(hitRate func() float64) Check {
	return func(ctx context.Context) Result {
		return Result{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("catalog cache hit rate %.2f", hitRate()),
		}
	}
}
