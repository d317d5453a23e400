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

package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flysearch/internal/config"
	"flysearch/internal/engine"
	"flysearch/internal/health"
	"flysearch/internal/metrics"
	"flysearch/internal/search"
	"flysearch/internal/sql"
	"flysearch/internal/storage"
)

const fixture = `
tables:
  - schema: dev
    table: dog
    hash_attribute: id
    attributes: [id, name, age]
    records:
      - {id: 1, name: Rex, age: 5}
      - {id: 2, name: Fido, age: 3}
`

type failingEngine struct{}

func (failingEngine) Execute(ctx context.Context, stmt *sql.Select, inputs []*sql.Relation) (*sql.Result, error) {
	return nil, errors.New("engine exploded")
}

func newTestServer(t *testing.T, eng search.Engine) (*Server, *storage.Store) {
	t.Helper()
	store := storage.New()
	require.NoError(t, store.Load(strings.NewReader(fixture)))

	cfg := config.DefaultConfig()
	cfg.MetricsEnabled = true
	m := metrics.New()
	exec := search.NewExecutor(store, store, eng, search.WithMetrics(m))

	checker := health.NewChecker("test")
	checker.RegisterCheck("tables", health.TablesCheck(func() int { return len(store.Tables()) }))

	return New(cfg, exec, WithHealth(checker), WithMetrics(m), WithTables(store.Tables)), store
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))
	return rec
}

const selectRex = `{
  "columns": [{"expr": {"column": {"name": "name"}}}],
  "from": [{"schema": "dev", "table": "dog"}],
  "where": {"binary": {"op": "=", "left": {"column": {"name": "id"}}, "right": {"literal": {"value": 1}}}}
}`

func TestQuery(t *testing.T) {
	s, _ := newTestServer(t, engine.New())

	rec := post(t, s, selectRex)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"columns": ["name"], "rows": [{"name": "Rex"}]}`, rec.Body.String())

	rec = post(t, s, `{
	  "columns": [{"expr": {"column": {"name": "name"}}}],
	  "from": [{"schema": "dev", "table": "dog"}],
	  "where": {"binary": {"op": ">", "left": {"column": {"name": "age"}}, "right": {"literal": {"value": 9}}}}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"columns": ["name"], "rows": []}`, rec.Body.String())
}

func TestQueryErrors(t *testing.T) {
	s, _ := newTestServer(t, engine.New())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"columns": [`, http.StatusBadRequest},
		{"unknown column", `{
		  "columns": [{"expr": {"column": {"name": "colour"}}}],
		  "from": [{"schema": "dev", "table": "dog"}]
		}`, http.StatusBadRequest},
		{"unknown table", `{
		  "columns": [{"expr": {"column": {"name": "name"}}}],
		  "from": [{"schema": "dev", "table": "cat"}]
		}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotZero(t, resp.Code)
		})
	}
}

func TestSearchFailureHidesCause(t *testing.T) {
	s, _ := newTestServer(t, failingEngine{})

	rec := post(t, s, `{
	  "columns": [{"expr": {"column": {"name": "name"}}}],
	  "from": [{"schema": "dev", "table": "dog"}],
	  "order_by": [{"expr": {"column": {"name": "age"}}}]
	}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "exploded")

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "search failed", resp.Error)
}

func TestAuxiliaryRoutes(t *testing.T) {
	s, _ := newTestServer(t, engine.New())
	post(t, s, selectRex)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tables", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var tables []storage.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, "dog", tables[0].Table)
	assert.Equal(t, 2, tables[0].Records)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `flysearch_queries_total{path="fast"} 1`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
