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
Package main is the entry point for the flysearch command.

Architecture Overview:
======================

flysearch answers SELECT statements over tables stored as one value index
per attribute. The layers are:

 1. Storage Layer (internal/storage):
    - Store: per-attribute ordered value indexes keyed by record hash
    - Fixtures: YAML files that create and fill tables

 2. SQL Layer (internal/sql):
    - AST, JSON statement codec, collations and value comparison

 3. Search Layer (internal/search):
    - Executor: narrows candidate rows through the indexes, fetches only
    the attributes a statement needs and hands dense relations to the
    engine

 4. Engine Layer (internal/engine):
    - Evaluates joins, filters, grouping, ordering and pagination over
    in-memory relations

 5. Server Layer (internal/server, internal/health, internal/metrics):
    - HTTP query endpoint, health checks and Prometheus metrics

Startup Flow:
=============

 1. Load configuration: defaults, then config file, then FLYSEARCH_*
    environment variables, then command-line flags
 2. Configure logging
 3. Load the data fixture into the in-memory store
 4. Build the executor with a cached schema catalog
 5. Serve HTTP until SIGINT or SIGTERM; SIGHUP reloads the configuration
    and the data file

Commands:
=========

	flysearch serve                      Run the HTTP query server
	flysearch query <statement.json>     Run one statement and print the result
	flysearch describe                   List the tables of a fixture
	flysearch version                    Print the version

Every configuration key is also a persistent flag, e.g. --log-level,
--fetch-concurrency, --collation or --data-file.

Usage Examples:
===============

	flysearch serve --data-file ./testdata/dogs.yaml --metrics-enabled true
	flysearch query --data-file ./testdata/dogs.yaml --format json stmt.json
	echo '{"columns": ...}' | flysearch query --data-file ./dogs.yaml -
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flysearch/internal/config"
	ferrors "flysearch/internal/errors"
	"flysearch/internal/logging"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ferrors.FormatError(err))
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Every invocation gets a fresh
// configuration manager.
func newRootCommand() *cobra.Command {
	mgr := config.NewManager()
	var configFile string

	root := &cobra.Command{
		Use:           "flysearch",
		Short:         "Attribute-indexed SQL search",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Load(configFile); err != nil {
				return err
			}
			if err := mgr.ApplyFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg := mgr.Get()
			if err := cfg.Validate(); err != nil {
				return err
			}
			configureLogging(cfg)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a TOML configuration file")
	mgr.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCommand(mgr),
		newQueryCommand(mgr),
		newDescribeCommand(mgr),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "flysearch version %s\n", Version)
			},
		},
	)
	return root
}

func configureLogging(cfg *config.Config) {
	logging.Configure(logging.Config{
		Level:    logging.ParseLevel(cfg.LogLevel),
		JSONMode: cfg.LogJSON,
	})
}
