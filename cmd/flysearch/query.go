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
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"flysearch/internal/config"
	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func newQueryCommand(mgr *config.Manager) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "query <statement.json | ->",
		Short: "Run one JSON-encoded statement against the data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatTable && format != formatJSON {
				return ferrors.InvalidValue("format", format).WithHint("use table or json")
			}
			stmt, err := readStatement(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			cfg := mgr.Get()
			p, err := newPipeline(cfg, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout := cfg.QueryTimeout.Duration; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := p.executor.Query(ctx, stmt)
			if err != nil {
				return err
			}
			if format == formatJSON {
				data, err := sql.EncodeResult(res)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatTable, "output format (table, json)")
	return cmd
}

// readStatement reads a statement from path, or from in when path is "-".
func readStatement(in io.Reader, path string) (*sql.Select, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, ferrors.InvalidValue("statement", path).WithCause(err)
	}
	return sql.DecodeSelect(data)
}

func renderResult(w io.Writer, res *sql.Result) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(res.Columns)
	table.AppendBulk(res.Strings())
	table.Render()
	fmt.Fprintf(w, "(%d %s)\n", res.Len(), plural(res.Len(), "row"))
}

func newDescribeCommand(mgr *config.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "List the tables of the data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(mgr.Get())
			if err != nil {
				return err
			}
			tables := store.Tables()

			w := cmd.OutOrStdout()
			table := tablewriter.NewWriter(w)
			table.SetAutoFormatHeaders(false)
			table.SetAutoWrapText(false)
			table.SetHeader([]string{"schema", "table", "hash", "attributes", "records"})
			for _, t := range tables {
				table.Append([]string{
					t.Schema,
					t.Table,
					t.HashAttribute,
					strings.Join(t.Attributes, ", "),
					strconv.Itoa(t.Records),
				})
			}
			table.Render()
			fmt.Fprintf(w, "(%d %s)\n", len(tables), plural(len(tables), "table"))
			return nil
		},
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
