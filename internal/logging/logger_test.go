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

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, jsonMode bool, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(Config{Level: level, Output: &buf, JSONMode: jsonMode})
	t.Cleanup(func() { Configure(DefaultConfig()) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		" error ": ERROR,
		"bogus":   INFO,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLevel(in), in)
	}
}

func TestTextOutputKeepsFieldOrder(t *testing.T) {
	buf := captureOutput(t, false, DEBUG)

	NewLogger("search").With("query_id", "q1").Info("Fetched", "table", "dog", "rows", 3)

	line := buf.String()
	require.Contains(t, line, "[INFO ] [search] Fetched query_id=q1 table=dog rows=3")
	require.NotContains(t, line, "\033[")
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, false, WARN)

	l := NewLogger("x")
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
	require.Contains(t, buf.String(), "shown")
}

func TestJSONOutput(t *testing.T) {
	buf := captureOutput(t, true, INFO)

	NewLogger("search").With("stage", "narrow").Error("Stage failed", "error", errors.New("boom"))

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "ERROR", m["level"])
	require.Equal(t, "search", m["component"])
	require.Equal(t, "narrow", m["stage"])
	require.Equal(t, "boom", m["error"])
}

func TestQueryContext(t *testing.T) {
	buf := captureOutput(t, false, INFO)

	q := NewQueryContext(NewLogger("cli"), "cli")
	require.Len(t, q.ID, 36)
	q.LogComplete("fast", 2)

	require.Contains(t, buf.String(), "query_id="+q.ID)
	require.Contains(t, buf.String(), "path=fast rows=2")
}
