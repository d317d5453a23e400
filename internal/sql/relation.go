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

package sql

// Relation is an in-memory input table for the engine: an ordered list of
// dense positional rows. Columns names the positions; it is used when a
// statement selects * and for labels.
type Relation struct {
	Columns []string
	Rows    [][]interface{}
}

// Row is one result row keyed by output column label.
type Row map[string]interface{}

// Result is the outcome of a SELECT.
type Result struct {
	Columns []string // output labels in select-list order
	Rows    []Row
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Values returns the rows as positional slices in Columns order.
func (r *Result) Values() [][]interface{} {
	out := make([][]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		vals := make([]interface{}, len(r.Columns))
		for j, c := range r.Columns {
			vals[j] = row[c]
		}
		out[i] = vals
	}
	return out
}

// Strings returns the rows rendered with FormatValue, for display.
func (r *Result) Strings() [][]string {
	out := make([][]string, len(r.Rows))
	for i, vals := range r.Values() {
		row := make([]string, len(vals))
		for j, v := range vals {
			row[j] = FormatValue(v)
		}
		out[i] = row
	}
	return out
}
