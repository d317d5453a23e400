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

package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChecks(t *testing.T) {
	c := NewChecker("test")
	c.RegisterCheck("storage", StorageCheck(func(context.Context) error { return nil }))
	c.RegisterCheck("tables", TablesCheck(func() int { return 2 }))

	res := c.RunChecks(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	require.Len(t, res.Checks, 2)
	assert.Equal(t, "storage", res.Checks[0].Name)
	assert.Equal(t, "tables", res.Checks[1].Name)
	assert.Equal(t, "2 tables loaded", res.Checks[1].Message)
	assert.True(t, c.IsHealthy(context.Background()))

	c.RegisterCheck("tables", TablesCheck(func() int { return 0 }))
	assert.Equal(t, StatusDegraded, c.RunChecks(context.Background()).Status)

	c.RegisterCheck("storage", StorageCheck(func(context.Context) error { return errors.New("store closed") }))
	res = c.RunChecks(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "store closed", res.Checks[0].Message)
}

func TestHandlers(t *testing.T) {
	c := NewChecker("test")
	c.RegisterCheck("tables", TablesCheck(func() int { return 0 }))
	r := mux.NewRouter()
	c.RegisterRoutes(r)

	tests := []struct {
		path   string
		code   int
		status Status
	}{
		{"/health", http.StatusServiceUnavailable, StatusDegraded},
		{"/health/ready", http.StatusOK, StatusDegraded},
		{"/health/live", http.StatusOK, StatusHealthy},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.code, rec.Code, tt.path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), tt.path)
		assert.Equal(t, tt.status, body.Status, tt.path)
		assert.Equal(t, "test", body.Version)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
