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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flysearch/internal/cache"
	"flysearch/internal/config"
	"flysearch/internal/engine"
	ferrors "flysearch/internal/errors"
	"flysearch/internal/health"
	"flysearch/internal/logging"
	"flysearch/internal/metrics"
	"flysearch/internal/search"
	"flysearch/internal/server"
	"flysearch/internal/sql"
	"flysearch/internal/storage"
)

var log = logging.NewLogger("main")

const shutdownTimeout = 10 * time.Second

// pipeline is everything needed to answer queries.
type pipeline struct {
	store    *storage.Store
	catalog  *search.CachedCatalog
	executor *search.Executor
}

// openStore loads the configured data file. Without one the store starts
// empty.
func openStore(cfg *config.Config) (*storage.Store, error) {
	collator := storage.WithCollator(sql.GetCollator(sql.Collation(cfg.Collation), cfg.Locale))
	if cfg.DataFile == "" {
		log.Warn("No data file configured, starting with an empty store")
		return storage.New(collator), nil
	}
	return storage.LoadFixture(cfg.DataFile, collator)
}

func newPipeline(cfg *config.Config, m *metrics.Metrics) (*pipeline, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	catalog := search.NewCachedCatalog(store, cache.Config{MaxEntries: cfg.CatalogCacheSize})
	store.OnChange(catalog.Invalidate)
	opts := []search.Option{
		search.WithFetchConcurrency(cfg.FetchConcurrency),
		search.WithFastPath(cfg.FastPath),
	}
	if m != nil {
		opts = append(opts, search.WithMetrics(m))
	}
	eng := engine.New(engine.WithCollator(store.Collator()))

	return &pipeline{
		store:    store,
		catalog:  catalog,
		executor: search.NewExecutor(catalog, store, eng, opts...),
	}, nil
}

// ping checks that the catalog the executor reads agrees with the store
// for every loaded table.
func (p *pipeline) ping(ctx context.Context) error {
	for _, t := range p.store.Tables() {
		attr, err := p.catalog.HashAttribute(ctx, t.Schema, t.Table)
		if err != nil {
			return err
		}
		if attr != t.HashAttribute {
			return ferrors.NewStorageError("catalog is out of date").WithDetail(fmt.Sprintf(
				"catalog reports hash attribute %s for %s.%s, store has %s", attr, t.Schema, t.Table, t.HashAttribute))
		}
	}
	return nil
}

// reload applies a reloaded configuration: logging settings and the data
// file take effect at once, other changes are reported as needing a
// restart.
func (p *pipeline) reload(prev, next *config.Config) error {
	configureLogging(next)
	for _, key := range prev.Changed(next) {
		if !config.Reloadable(key) {
			log.Warn("Configuration change requires a restart", "key", key)
		}
	}
	if next.DataFile == "" {
		log.Warn("No data file configured, keeping the loaded tables")
		return nil
	}
	if err := p.store.ReloadFixture(next.DataFile); err != nil {
		return err
	}
	log.Info("Data file reloaded", "data_file", next.DataFile, "tables", len(p.store.Tables()))
	return nil
}

func newServeCommand(mgr *config.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP query server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), mgr)
		},
	}
}

func serve(ctx context.Context, mgr *config.Manager) error {
	cfg := mgr.Get()

	m := metrics.New()
	p, err := newPipeline(cfg, m)
	if err != nil {
		return err
	}

	checker := health.NewChecker(Version)
	checker.RegisterCheck("storage", health.StorageCheck(p.ping))
	checker.RegisterCheck("tables", health.TablesCheck(func() int { return len(p.store.Tables()) }))
	checker.RegisterCheck("catalog_cache", health.CacheCheck(func() float64 { return p.catalog.Stats().HitRate }))

	srv := server.New(cfg, p.executor,
		server.WithHealth(checker),
		server.WithMetrics(m),
		server.WithTables(p.store.Tables),
	)

	// The query server already exposes /metrics; a dedicated listener is
	// only started for a different address.
	var msrv *metrics.Server
	if cfg.MetricsEnabled && cfg.MetricsAddr != cfg.ListenAddr {
		msrv = metrics.NewServer(cfg, m)
		if err := msrv.Start(); err != nil {
			return err
		}
	}

	// Reload runs on this goroutine, so current needs no lock.
	current := cfg
	mgr.OnReload(func(next *config.Config) {
		if err := p.reload(current, next); err != nil {
			log.Error("Reload failed", "error", err)
		}
		current = next
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("flysearch started",
		"version", Version,
		"listen", cfg.ListenAddr,
		"tables", len(p.store.Tables()),
		"fast_path", cfg.FastPath,
	)

	for {
		select {
		case err := <-errCh:
			return err
		case <-hup:
			if err := mgr.Reload(); err != nil {
				log.Error("Configuration reload failed", "error", err)
			}
		case <-ctx.Done():
			log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if msrv != nil {
				if err := msrv.Stop(); err != nil {
					log.Warn("Metrics server shutdown failed", "error", err)
				}
			}
			return srv.Stop(shutdownCtx)
		}
	}
}
