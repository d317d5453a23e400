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

package search

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"flysearch/internal/sql"
	"flysearch/internal/storage"
)

// fastPlan is a single-table statement answered straight from storage.
type fastPlan struct {
	store *tableStore

	// attrs holds the attribute of each output column.
	attrs      []string
	conditions []condition
}

// condition restricts an attribute to a set of literal values.
type condition struct {
	attribute string
	values    []interface{}
}

// planFastPath reports whether the statement can skip narrowing and the
// engine: one table, plain columns or *, and a WHERE that is absent or a
// conjunction of column = literal and column IN (literals).
func planFastPath(q *query) (*fastPlan, bool) {
	stmt := q.stmt
	if len(stmt.From) != 1 || len(stmt.Joins) > 0 || len(stmt.GroupBy) > 0 ||
		stmt.Having != nil || stmt.Distinct || len(stmt.OrderBy) > 0 {
		return nil, false
	}

	plan := &fastPlan{store: q.stores[stmt.From[0].Name()]}
	for _, item := range stmt.Columns {
		switch e := item.Expr.(type) {
		case *sql.Star:
			for _, d := range q.starAttributes(e) {
				plan.attrs = append(plan.attrs, d.Attribute)
			}
		case *sql.ColumnRef:
			d, ok := q.resolver.Resolve(e)
			if !ok {
				return nil, false
			}
			plan.attrs = append(plan.attrs, d.Attribute)
		default:
			return nil, false
		}
	}

	for _, c := range conjuncts(stmt.Where) {
		cond, ok := equality(q, c)
		if !ok {
			return nil, false
		}
		plan.conditions = append(plan.conditions, cond)
	}
	return plan, true
}

func equality(q *query, e sql.Expr) (condition, bool) {
	switch n := e.(type) {
	case *sql.BinaryExpr:
		if n.Op != sql.OpEq {
			return condition{}, false
		}
		ref, lit := n.Left, n.Right
		if _, ok := ref.(*sql.ColumnRef); !ok {
			ref, lit = lit, ref
		}
		col, ok := ref.(*sql.ColumnRef)
		if !ok {
			return condition{}, false
		}
		l, ok := lit.(*sql.Literal)
		if !ok {
			return condition{}, false
		}
		d, ok := q.resolver.Resolve(col)
		if !ok {
			return condition{}, false
		}
		return condition{attribute: d.Attribute, values: []interface{}{sql.Normalize(l.Value)}}, true
	case *sql.InExpr:
		col, ok := n.Expr.(*sql.ColumnRef)
		if !ok || n.Not {
			return condition{}, false
		}
		values, ok := literals(n.List)
		if !ok {
			return condition{}, false
		}
		d, ok := q.resolver.Resolve(col)
		if !ok {
			return condition{}, false
		}
		return condition{attribute: d.Attribute, values: values}, true
	}
	return condition{}, false
}

func (x *Executor) runFastPath(ctx context.Context, q *query, plan *fastPlan) (*sql.Result, error) {
	s := plan.store
	for _, attr := range plan.attrs {
		s.addColumn(attr)
	}

	if len(plan.conditions) > 0 {
		if candidates := x.candidates(ctx, q, plan); len(candidates) > 0 {
			x.fetchRecords(ctx, q, s, candidates)
		}
	} else {
		fetches := []fetch{x.fetchByValue(s, storage.All(s.hashAttribute), strategyWildcard)}
		for _, attr := range s.snapshot()[1:] {
			fetches = append(fetches, x.fetchByValue(s, storage.All(attr), strategyWildcard))
		}
		x.runFetches(ctx, q, stageFastPath, fetches)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel := s.relation()
	rows := paginate(rel.Rows, q.stmt.Limit, q.stmt.Offset)
	labels := outputLabels(q)
	res := &sql.Result{Columns: labels, Rows: make([]sql.Row, 0, len(rows))}
	for _, r := range rows {
		row := make(sql.Row, len(labels))
		for i, attr := range plan.attrs {
			if pos, ok := s.position(attr); ok && pos < len(r) {
				row[labels[i]] = r[pos]
			} else {
				row[labels[i]] = nil
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// candidates returns the hashes satisfying every condition, in value
// order. Conditions on the hash attribute contribute their values
// directly; others are looked up by value, one fetch per literal.
func (x *Executor) candidates(ctx context.Context, q *query, plan *fastPlan) []interface{} {
	s := plan.store
	sets := make([]map[interface{}]bool, len(plan.conditions))

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	if x.fetchConcurrency > 0 {
		g.SetLimit(x.fetchConcurrency)
	}
	for i, c := range plan.conditions {
		sets[i] = make(map[interface{}]bool)
		if c.attribute == s.hashAttribute {
			for _, v := range c.values {
				if v != nil {
					sets[i][v] = true
				}
			}
			continue
		}
		for _, v := range c.values {
			g.Go(func() error {
				vq := storage.ValueQuery{Attribute: c.attribute, Op: sql.OpEq, Value: v}
				found, err := x.bridge.FetchByValue(ctx, s.desc.Schema, s.desc.Table, vq)
				x.metrics.RecordFetch(strategyValue, err)
				if err != nil {
					q.logger.Warn("Fetch failed", "stage", stageFastPath, "table", s.desc.String(),
						"attribute", c.attribute, "strategy", strategyValue, "query", vq.String(), "error", err)
					return nil
				}
				mu.Lock()
				for h := range found {
					sets[i][h] = true
				}
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	var out []interface{}
	for h := range sets[0] {
		all := true
		for _, set := range sets[1:] {
			if !set[h] {
				all = false
				break
			}
		}
		if all {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return sql.Order(out[i], out[j], nil) < 0 })
	return out
}

// fetchRecords loads every registered attribute of the candidate hashes in
// one call. Candidates the bridge does not know produce no row.
func (x *Executor) fetchRecords(ctx context.Context, q *query, s *tableStore, hashes []interface{}) {
	attrs := s.snapshot()
	recs, err := x.bridge.FetchByHash(ctx, s.desc.Schema, s.desc.Table, hashes, attrs)
	x.metrics.RecordFetch(strategyHash, err)
	if err != nil {
		q.logger.Warn("Fetch failed", "stage", stageFastPath, "table", s.desc.String(),
			"strategy", strategyHash, "hashes", len(hashes), "error", err)
		return
	}

	byAttr := make(map[string]map[interface{}]interface{}, len(attrs))
	for _, attr := range attrs {
		byAttr[attr] = make(map[interface{}]interface{}, len(recs))
	}
	for h, rec := range recs {
		byAttr[s.hashAttribute][h] = h
		for _, attr := range attrs[1:] {
			byAttr[attr][h] = rec[attr]
		}
	}
	for _, attr := range attrs {
		s.merge(attr, byAttr[attr])
	}
}

func paginate(rows [][]interface{}, limit, offset *int64) [][]interface{} {
	if offset != nil {
		if *offset >= int64(len(rows)) {
			return nil
		}
		rows = rows[*offset:]
	}
	if limit != nil && *limit < int64(len(rows)) {
		rows = rows[:*limit]
	}
	return rows
}
