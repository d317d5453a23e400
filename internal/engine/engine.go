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
Package engine implements FlySearch's embedded SQL evaluation engine.

The engine evaluates a SELECT statement over in-memory input relations.
It knows nothing about storage: every table reference in the statement
must be a ? placeholder (TableRef.Param) bound positionally to one of the
relations passed to Execute.

Evaluation Pipeline:
====================

 1. Bind:    resolve every table reference to its input relation
 2. FROM:    cross product of the FROM list
 3. JOIN:    INNER, LEFT, RIGHT, FULL, and CROSS joins; an equality ON
             between the joined table and the tables before it is
             executed as a hash join, anything else as a nested loop
 4. WHERE:   three-valued filter; only rows evaluating to TRUE survive
 5. GROUP:   GROUP BY keys plus COUNT, SUM, AVG, MIN, MAX, GROUP_CONCAT
 6. HAVING:  filter on groups
 7. SELECT:  projection, * expansion, output labels
 8. DISTINCT
 9. ORDER BY: expressions, output aliases, and ordinals
 10. OFFSET / LIMIT

Values are the normalized kinds of package sql (nil, bool, float64,
string). Strings compare through the engine's Collator, which must be the
same one the storage layer orders its value indexes with.
*/
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/logging"
	"flysearch/internal/sql"
)

// Engine evaluates SELECT statements over in-memory relations. It is safe
// for concurrent use.
type Engine struct {
	collator sql.Collator
	logger   *logging.Logger
	patterns sync.Map // LIKE pattern -> *regexp.Regexp
}

// Option configures an Engine.
type Option func(*Engine)

// WithCollator sets the string collator.
func WithCollator(c sql.Collator) Option {
	return func(e *Engine) {
		e.collator = c
	}
}

// New creates an Engine. The default collator is binary.
func New(opts ...Option) *Engine {
	e := &Engine{
		collator: sql.BinaryCollator{},
		logger:   logging.NewLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Collator returns the engine's collator.
func (e *Engine) Collator() sql.Collator {
	return e.collator
}

// source is one bound table of the statement.
type source struct {
	name    string
	rel     *sql.Relation
	columns map[string]int
}

// scope resolves column references to (source, column) positions.
type scope struct {
	sources []*source
	byName  map[string]int
}

func newScope(stmt *sql.Select, inputs []*sql.Relation) (*scope, error) {
	sc := &scope{byName: make(map[string]int)}
	for _, t := range stmt.Tables() {
		if t.Param < 1 || t.Param > len(inputs) {
			return nil, ferrors.TableNotFound(t.String())
		}
		rel := inputs[t.Param-1]
		if rel == nil {
			rel = &sql.Relation{}
		}
		name := t.Name()
		if _, dup := sc.byName[name]; dup {
			return nil, ferrors.NewExecutionError(fmt.Sprintf("table name '%s' specified more than once", name))
		}
		src := &source{name: name, rel: rel, columns: make(map[string]int, len(rel.Columns))}
		for i, c := range rel.Columns {
			if _, seen := src.columns[c]; !seen {
				src.columns[c] = i
			}
		}
		sc.byName[name] = len(sc.sources)
		sc.sources = append(sc.sources, src)
	}
	return sc, nil
}

// resolve returns the source and column index a column reference names.
func (sc *scope) resolve(ref *sql.ColumnRef) (int, int, error) {
	if ref.Table != "" {
		si, ok := sc.byName[ref.Table]
		if !ok {
			return 0, 0, ferrors.NewExecutionError(fmt.Sprintf("unknown table '%s' in column %s", ref.Table, ref))
		}
		ci, ok := sc.sources[si].columns[ref.Column]
		if !ok {
			return 0, 0, ferrors.NewExecutionError(fmt.Sprintf("column %s does not exist", ref))
		}
		return si, ci, nil
	}
	found, fs, fc := 0, 0, 0
	for si, src := range sc.sources {
		if ci, ok := src.columns[ref.Column]; ok {
			found++
			fs, fc = si, ci
		}
	}
	switch found {
	case 0:
		return 0, 0, ferrors.NewExecutionError(fmt.Sprintf("column %s does not exist", ref))
	case 1:
		return fs, fc, nil
	}
	return 0, 0, ferrors.NewExecutionError(fmt.Sprintf("column %s is ambiguous", ref))
}

// tuple holds one row per source; nil marks a NULL-extended outer join side.
type tuple [][]interface{}

// Execute evaluates stmt against inputs, which are bound positionally to
// the statement's ? table placeholders.
func (e *Engine) Execute(ctx context.Context, stmt *sql.Select, inputs []*sql.Relation) (*sql.Result, error) {
	if stmt == nil {
		return nil, ferrors.MissingRequired("statement")
	}
	if len(stmt.Columns) == 0 {
		return nil, ferrors.MissingRequired("select list")
	}
	e.logger.Debug("Executing statement", "sql", stmt.String(), "inputs", len(inputs))

	sc, err := newScope(stmt, inputs)
	if err != nil {
		return nil, err
	}

	tuples, err := e.from(ctx, sc, stmt)
	if err != nil {
		return nil, err
	}

	if stmt.Where != nil {
		tuples, err = e.filter(sc, tuples, stmt.Where)
		if err != nil {
			return nil, err
		}
	}

	groups, err := e.group(sc, stmt, tuples)
	if err != nil {
		return nil, err
	}

	return e.project(sc, stmt, groups)
}

// from builds the joined tuple stream for FROM and JOIN.
func (e *Engine) from(ctx context.Context, sc *scope, stmt *sql.Select) ([]tuple, error) {
	width := len(sc.sources)
	tuples := []tuple{make(tuple, width)}

	for i := range stmt.From {
		rows := sc.sources[i].rel.Rows
		next := make([]tuple, 0, len(tuples)*len(rows))
		for _, t := range tuples {
			for _, r := range rows {
				nt := make(tuple, width)
				copy(nt, t)
				nt[i] = r
				next = append(next, nt)
			}
		}
		tuples = next
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for ji, j := range stmt.Joins {
		var err error
		tuples, err = e.join(sc, tuples, len(stmt.From)+ji, j)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return tuples, nil
}

func (e *Engine) filter(sc *scope, tuples []tuple, pred sql.Expr) ([]tuple, error) {
	out := tuples[:0:0]
	for _, t := range tuples {
		ok, err := e.test(sc, t, pred)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// test evaluates a predicate; NULL counts as false.
func (e *Engine) test(sc *scope, t tuple, pred sql.Expr) (bool, error) {
	v, err := e.newCtx(sc, t, nil).eval(pred)
	if err != nil {
		return false, err
	}
	b, known := sql.Truth(v)
	return known && b, nil
}

// outputRow is a projected row plus the context needed to evaluate ORDER BY.
type outputRow struct {
	values []interface{}
	group  *group
	keys   []interface{}
}

func (e *Engine) project(sc *scope, stmt *sql.Select, groups []*group) (*sql.Result, error) {
	labels, exprs, err := e.expandColumns(sc, stmt)
	if err != nil {
		return nil, err
	}

	rows := make([]*outputRow, 0, len(groups))
	for _, g := range groups {
		c := e.newCtx(sc, g.first(len(sc.sources)), g.aggs)
		vals := make([]interface{}, len(exprs))
		for i, ex := range exprs {
			v, err := c.eval(ex)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		rows = append(rows, &outputRow{values: vals, group: g})
	}

	if stmt.Distinct {
		rows = e.distinct(rows)
	}

	if len(stmt.OrderBy) > 0 {
		if err := e.sortRows(sc, stmt, labels, rows); err != nil {
			return nil, err
		}
	}

	rows = paginate(rows, stmt.Offset, stmt.Limit)

	result := &sql.Result{Columns: labels, Rows: make([]sql.Row, len(rows))}
	for i, r := range rows {
		row := make(sql.Row, len(labels))
		for j, l := range labels {
			row[l] = r.values[j]
		}
		result.Rows[i] = row
	}
	return result, nil
}

// expandColumns expands * items and assigns unique output labels.
func (e *Engine) expandColumns(sc *scope, stmt *sql.Select) ([]string, []sql.Expr, error) {
	var (
		labels []string
		exprs  []sql.Expr
		seen   = make(map[string]int)
	)
	add := func(label string, ex sql.Expr) {
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s_%d", label, n)
		}
		labels = append(labels, label)
		exprs = append(exprs, ex)
	}

	for _, item := range stmt.Columns {
		star, ok := item.Expr.(*sql.Star)
		if !ok {
			add(item.Label(), item.Expr)
			continue
		}
		matched := false
		for _, src := range sc.sources {
			if star.Table != "" && star.Table != src.name {
				continue
			}
			matched = true
			for ci, col := range src.rel.Columns {
				add(col, &sql.PositionalRef{Table: src.name, Index: ci, Name: col})
			}
		}
		if star.Table != "" && !matched {
			return nil, nil, ferrors.TableNotFound(star.Table)
		}
	}
	return labels, exprs, nil
}

func (e *Engine) distinct(rows []*outputRow) []*outputRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		k := e.rowKey(r.values)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// rowKey builds a hashable key for a list of values under the collator.
func (e *Engine) rowKey(vals []interface{}) string {
	keys := make([]interface{}, len(vals))
	for i, v := range vals {
		keys[i] = sql.HashKey(v, e.collator)
	}
	return fmt.Sprintf("%#v", keys)
}

func (e *Engine) sortRows(sc *scope, stmt *sql.Select, labels []string, rows []*outputRow) error {
	aliases := make(map[string]int)
	for i, item := range stmt.Columns {
		if item.Alias != "" {
			aliases[item.Alias] = i
		}
	}
	// Output positions of select items shift when * expands; aliases and
	// ordinals refer to unexpanded positions, so map them through labels.
	position := func(item int) int {
		label := stmt.Columns[item].Label()
		for i, l := range labels {
			if l == label {
				return i
			}
		}
		return -1
	}

	for _, r := range rows {
		r.keys = make([]interface{}, len(stmt.OrderBy))
		c := e.newCtx(sc, r.group.first(len(sc.sources)), r.group.aggs)
		for k, o := range stmt.OrderBy {
			if n, ok := o.Ordinal(); ok {
				if n > len(stmt.Columns) {
					return ferrors.NewExecutionError(fmt.Sprintf("ORDER BY position %d is not in select list", n))
				}
				if p := position(n - 1); p >= 0 {
					r.keys[k] = r.values[p]
					continue
				}
			}
			if ref, ok := o.Expr.(*sql.ColumnRef); ok && ref.Table == "" {
				if i, ok := aliases[ref.Column]; ok {
					if p := position(i); p >= 0 {
						r.keys[k] = r.values[p]
						continue
					}
				}
			}
			v, err := c.eval(o.Expr)
			if err != nil {
				return err
			}
			r.keys[k] = v
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for k, o := range stmt.OrderBy {
			cmp := sql.Order(rows[i].keys[k], rows[j].keys[k], e.collator)
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}

func paginate(rows []*outputRow, offset, limit *int64) []*outputRow {
	if offset != nil && *offset > 0 {
		if *offset >= int64(len(rows)) {
			return nil
		}
		rows = rows[*offset:]
	}
	if limit != nil && *limit >= 0 && *limit < int64(len(rows)) {
		rows = rows[:*limit]
	}
	return rows
}
