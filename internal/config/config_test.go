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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	ferrors "flysearch/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.FetchConcurrency != 16 {
		t.Errorf("Expected default fetch_concurrency 16, got %d", cfg.FetchConcurrency)
	}
	if !cfg.FastPath {
		t.Errorf("Expected fast_path enabled by default")
	}
	if cfg.QueryTimeout.Duration != 30*time.Second {
		t.Errorf("Expected default query_timeout 30s, got %s", cfg.QueryTimeout)
	}
	require.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unbounded concurrency", mutate: func(c *Config) { c.FetchConcurrency = 0 }},
		{name: "negative concurrency", mutate: func(c *Config) { c.FetchConcurrency = -1 }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "invalid collation", mutate: func(c *Config) { c.Collation = "klingon" }, wantErr: true},
		{name: "unicode collation", mutate: func(c *Config) { c.Collation = "unicode" }},
		{name: "negative cache", mutate: func(c *Config) { c.CatalogCacheSize = -5 }, wantErr: true},
		{
			name: "metrics without addr",
			mutate: func(c *Config) {
				c.MetricsEnabled = true
				c.MetricsAddr = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, ferrors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flysearch.toml")
	content := `
log_level = "debug"
fetch_concurrency = 4
fast_path = false
query_timeout = "2s"
data_file = "dogs.yaml"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m := NewManager()
	require.NoError(t, m.LoadFromFile(path))

	cfg := m.Get()
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 4, cfg.FetchConcurrency)
	require.False(t, cfg.FastPath)
	require.Equal(t, 2*time.Second, cfg.QueryTimeout.Duration)
	require.Equal(t, "dogs.yaml", cfg.DataFile)
	require.Equal(t, "default", cfg.Collation)
	require.Equal(t, path, cfg.ConfigFile)
}

func TestLoadFromFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_key = 1\n"), 0644))

	err := NewManager().LoadFromFile(path)
	require.Error(t, err)
	require.Equal(t, ferrors.ErrCodeInvalidValue, ferrors.GetCode(err))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FLYSEARCH_FETCH_CONCURRENCY", "2")
	t.Setenv("FLYSEARCH_LOG_JSON", "true")
	t.Setenv("FLYSEARCH_COLLATION", "nocase")

	m := NewManager()
	require.NoError(t, m.LoadFromEnv())

	cfg := m.Get()
	require.Equal(t, 2, cfg.FetchConcurrency)
	require.True(t, cfg.LogJSON)
	require.Equal(t, "nocase", cfg.Collation)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("FLYSEARCH_FAST_PATH", "sometimes")

	err := NewManager().LoadFromEnv()
	require.Error(t, err)
	require.True(t, ferrors.IsValidationError(err))
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("FLYSEARCH_LOG_LEVEL", "warn")

	m := NewManager()
	require.NoError(t, m.LoadFromEnv())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	m.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level=error", "--fetch-concurrency=3"}))
	require.NoError(t, m.ApplyFlags(fs))

	cfg := m.Get()
	require.Equal(t, "error", cfg.LogLevel)
	require.Equal(t, 3, cfg.FetchConcurrency)
	require.True(t, cfg.FastPath)
}

func TestReloadNotifiesListeners(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flysearch.toml")
	require.NoError(t, os.WriteFile(path, []byte("fetch_concurrency = 8\n"), 0644))

	m := NewManager()
	require.NoError(t, m.LoadFromFile(path))

	var got int
	m.OnReload(func(c *Config) { got = c.FetchConcurrency })

	require.NoError(t, os.WriteFile(path, []byte("fetch_concurrency = 12\n"), 0644))
	require.NoError(t, m.Reload())
	require.Equal(t, 12, got)
}

func TestReloadKeepsFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flysearch.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"warn\"\nfetch_concurrency = 8\n"), 0644))

	m := NewManager()
	require.NoError(t, m.LoadFromFile(path))
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	m.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--data-file=/srv/dogs.yaml"}))
	require.NoError(t, m.ApplyFlags(fs))

	require.NoError(t, os.WriteFile(path, []byte("log_level = \"debug\"\nfetch_concurrency = 8\n"), 0644))
	require.NoError(t, m.Reload())
	cfg := m.Get()
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "/srv/dogs.yaml", cfg.DataFile)

	// An invalid file keeps the running configuration.
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"loud\"\n"), 0644))
	require.Error(t, m.Reload())
	require.Equal(t, "debug", m.Get().LogLevel)
}

func TestChanged(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	require.Empty(t, a.Changed(b))

	b.LogLevel = "debug"
	b.FastPath = false
	b.QueryTimeout = Duration{time.Second}
	require.Equal(t, []string{"log_level", "fast_path", "query_timeout"}, a.Changed(b))

	require.True(t, Reloadable("log_level"))
	require.True(t, Reloadable("data_file"))
	require.False(t, Reloadable("fast_path"))
	require.False(t, Reloadable("listen_addr"))
}

func TestToTOMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collation = "binary"
	out, err := cfg.ToTOML()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0644))

	m := NewManager()
	require.NoError(t, m.LoadFromFile(path))
	require.Equal(t, "binary", m.Get().Collation)
	require.Equal(t, 30*time.Second, m.Get().QueryTimeout.Duration)
}
