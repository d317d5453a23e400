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

	"golang.org/x/sync/errgroup"

	"flysearch/internal/sql"
	"flysearch/internal/storage"
)

// Fetch strategies, in the order the materializer prefers them.
const (
	strategyHash     = "hash"
	strategyValue    = "value"
	strategyRange    = "range"
	strategyWildcard = "wildcard"
	strategyComplete = "complete"
)

// fetch is one storage bridge call whose result is merged into a store
// under attribute.
type fetch struct {
	store     *tableStore
	attribute string
	strategy  string
	detail    string

	// create allows the fetch to add rows; completion fetches only fill
	// rows that survived narrowing.
	create bool

	run func(ctx context.Context) (map[interface{}]interface{}, error)
}

// runFetches issues fetches concurrently and waits for all of them. A
// failed fetch is logged and contributes nothing; it never cancels the
// others.
func (x *Executor) runFetches(ctx context.Context, q *query, stage string, fetches []fetch) {
	var g errgroup.Group
	if x.fetchConcurrency > 0 {
		g.SetLimit(x.fetchConcurrency)
	}
	for _, f := range fetches {
		g.Go(func() error {
			values, err := f.run(ctx)
			x.metrics.RecordFetch(f.strategy, err)
			if err != nil {
				q.logger.Warn("Fetch failed",
					"stage", stage,
					"table", f.store.desc.String(),
					"attribute", f.attribute,
					"strategy", f.strategy,
					"query", f.detail,
					"error", err,
				)
				return nil
			}
			if f.create {
				f.store.merge(f.attribute, values)
			} else {
				f.store.fill(f.attribute, values)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (x *Executor) fetchByValue(s *tableStore, vq storage.ValueQuery, strategy string) fetch {
	return fetch{
		store:     s,
		attribute: vq.Attribute,
		strategy:  strategy,
		detail:    vq.String(),
		create:    true,
		run: func(ctx context.Context) (map[interface{}]interface{}, error) {
			return x.bridge.FetchByValue(ctx, s.desc.Schema, s.desc.Table, vq)
		},
	}
}

// fetchByHash fetches attr for the given hashes. Hashes the bridge does
// not return are absent from the result; present hashes missing the
// attribute map to nil.
func (x *Executor) fetchByHash(s *tableStore, hashes []interface{}, attr, strategy string) fetch {
	return fetch{
		store:     s,
		attribute: attr,
		strategy:  strategy,
		detail:    attr + " by hash",
		create:    strategy != strategyComplete,
		run: func(ctx context.Context) (map[interface{}]interface{}, error) {
			recs, err := x.bridge.FetchByHash(ctx, s.desc.Schema, s.desc.Table, hashes, []string{attr})
			if err != nil {
				return nil, err
			}
			out := make(map[interface{}]interface{}, len(recs))
			for h, rec := range recs {
				if attr == s.hashAttribute {
					out[h] = h
				} else {
					out[h] = rec[attr]
				}
			}
			return out, nil
		},
	}
}

// materialize fetches, for every table, the attributes the narrowing query
// needs: the columns of join conditions, WHERE and ORDER BY.
func (x *Executor) materialize(ctx context.Context, q *query) {
	required := q.requiredAttributes()
	anchored := q.anchoredTables()

	var fetches []fetch
	for _, t := range q.tables {
		s := q.stores[t.Name()]
		attrs := required[t.Name()]
		if !anchored[t.Name()] && !contains(attrs, s.hashAttribute) {
			attrs = append(attrs, s.hashAttribute)
		}
		// Columns are registered up front so every row is created at its
		// final width for this stage.
		for _, attr := range attrs {
			s.addColumn(attr)
		}
		for _, attr := range attrs {
			fetches = append(fetches, x.planFetch(q, s, attr)...)
		}
	}

	q.logger.Debug("Materializing", "fetches", len(fetches))
	x.runFetches(ctx, q, "materialize", fetches)
}

// planFetch picks the cheapest strategy the classification allows for one
// attribute. Exact values win over ranges.
func (x *Executor) planFetch(q *query, s *tableStore, attr string) []fetch {
	d := AttributeDescriptor{Table: s.desc, Attribute: attr}

	if values, ok := q.class.ExactValues(d); ok {
		if attr == s.hashAttribute {
			return []fetch{x.fetchByHash(s, values, attr, strategyHash)}
		}
		fetches := make([]fetch, 0, len(values))
		for _, v := range values {
			fetches = append(fetches, x.fetchByValue(s, storage.ValueQuery{Attribute: attr, Op: sql.OpEq, Value: v}, strategyValue))
		}
		return fetches
	}

	if comparators, ok := q.class.Comparators(d); ok {
		fetches := make([]fetch, 0, len(comparators))
		for _, c := range comparators {
			vq := storage.ValueQuery{Attribute: attr, Op: c.Op, Value: c.Value, Upper: c.Upper}
			fetches = append(fetches, x.fetchByValue(s, vq, strategyRange))
		}
		return fetches
	}

	return []fetch{x.fetchByValue(s, storage.All(attr), strategyWildcard)}
}

// requiredAttributes returns, per table name, the attributes referenced by
// join conditions, WHERE and ORDER BY, in first-reference order.
func (q *query) requiredAttributes() map[string][]string {
	out := make(map[string][]string)
	seen := make(map[AttributeDescriptor]bool)
	for _, refs := range [][]*sql.ColumnRef{q.columns.Joins, q.columns.Where, q.columns.OrderBy} {
		for _, ref := range refs {
			d, ok := q.resolver.Resolve(ref)
			if !ok || seen[d] {
				continue
			}
			seen[d] = true
			out[d.Table.Name()] = append(out[d.Table.Name()], d.Attribute)
		}
	}
	return out
}

// anchoredTables returns the tables whose every possible result row holds a
// non-null value in some required attribute, because a predicate that must
// hold for the row compares that attribute directly. Fetching the required
// attributes creates every row such a table can contribute. Any other
// table also fetches its hash attribute so rows with nulls in every
// required attribute exist: this covers an empty WHERE, IS NULL tests,
// COALESCE and IFNULL, disjunctions, and the preserved side of an outer
// join.
func (q *query) anchoredTables() map[string]bool {
	anchored := make(map[string]bool)
	anchor := func(pred sql.Expr, allow func(string) bool) {
		for _, c := range conjuncts(pred) {
			for _, ref := range nullRejecting(c) {
				if d, ok := q.resolver.Resolve(ref); ok && allow(d.Table.Name()) {
					anchored[d.Table.Name()] = true
				}
			}
		}
	}
	all := func(string) bool { return true }

	anchor(q.stmt.Where, all)

	before := make(map[string]bool)
	for _, t := range q.stmt.From {
		before[t.Name()] = true
	}
	for _, j := range q.stmt.Joins {
		name := j.Table.Name()
		switch j.Mode {
		case "", sql.JoinInner:
			anchor(j.On, all)
		case sql.JoinLeft:
			anchor(j.On, func(n string) bool { return n == name })
		case sql.JoinRight:
			prev := make(map[string]bool, len(before))
			for n := range before {
				prev[n] = true
			}
			anchor(j.On, func(n string) bool { return prev[n] })
		}
		before[name] = true
	}
	return anchored
}

// conjuncts splits pred on top-level AND.
func conjuncts(pred sql.Expr) []sql.Expr {
	if pred == nil {
		return nil
	}
	if b, ok := pred.(*sql.BinaryExpr); ok && b.Op == sql.OpAnd {
		return append(conjuncts(b.Left), conjuncts(b.Right)...)
	}
	return []sql.Expr{pred}
}

// nullRejecting returns the columns that, when NULL, make pred unknown.
func nullRejecting(pred sql.Expr) []*sql.ColumnRef {
	var refs []*sql.ColumnRef
	add := func(e sql.Expr) {
		if ref, ok := e.(*sql.ColumnRef); ok {
			refs = append(refs, ref)
		}
	}
	switch n := pred.(type) {
	case *sql.BinaryExpr:
		if n.Op.IsComparison() || n.Op == sql.OpLike || n.Op == sql.OpNotLike {
			add(n.Left)
			add(n.Right)
		}
	case *sql.InExpr:
		if !n.Not {
			add(n.Expr)
		}
	case *sql.BetweenExpr:
		if !n.Not {
			add(n.Expr)
		}
	}
	return refs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
