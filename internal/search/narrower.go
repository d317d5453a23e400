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
	"fmt"

	"flysearch/internal/sql"
)

func hashLabel(i int) string {
	return fmt.Sprintf("__hash_%d", i)
}

// narrow runs the statement's joins and WHERE over the materialized
// attributes, selecting only each table's hash, and prunes every store to
// the hashes that appear in the result. It returns the number of result
// rows.
func (x *Executor) narrow(ctx context.Context, q *query) (int, error) {
	r := &rewriter{q: q}
	stmt := &sql.Select{}
	stmt.From, stmt.Joins = r.tables()
	for i, t := range q.tables {
		label := hashLabel(i)
		stmt.Columns = append(stmt.Columns, &sql.SelectItem{
			Expr:  &sql.PositionalRef{Table: t.Name(), Index: 0, Name: label},
			Alias: label,
		})
	}
	stmt.Where = r.expr(q.stmt.Where)

	if order, ok := r.pushdownOrder(); ok {
		stmt.OrderBy = order
		if q.stmt.Limit != nil {
			stmt.Limit = sql.Int64(*q.stmt.Limit)
		}
		if q.stmt.Offset != nil {
			stmt.Offset = sql.Int64(*q.stmt.Offset)
		}
		q.paginated = true
	}
	if r.err != nil {
		return 0, r.err
	}

	q.logger.Debug("Narrowing", "sql", stmt.String())
	res, err := x.engine.Execute(ctx, stmt, q.relations())
	if err != nil {
		return 0, err
	}

	for i, t := range q.tables {
		label := hashLabel(i)
		keep := make(map[interface{}]bool, len(res.Rows))
		for _, row := range res.Rows {
			if h := row[label]; h != nil {
				keep[h] = true
			}
		}
		s := q.stores[t.Name()]
		removed := s.retain(keep)
		x.metrics.RecordPruned(removed)
		q.logger.Debug("Narrowed table", "table", t.String(), "survivors", s.len(), "pruned", removed)
	}
	return len(res.Rows), nil
}

// pushdownOrder returns the ORDER BY of the narrowing query when
// LIMIT/OFFSET can be applied there. That holds for a single table without
// aggregation or DISTINCT: the surviving rows are then exactly the
// requested page. With joins, pruned tables could pair up again into rows
// outside the page, so pagination stays with the final statement.
func (r *rewriter) pushdownOrder() ([]*sql.OrderItem, bool) {
	stmt := r.q.stmt
	if stmt.Limit == nil && stmt.Offset == nil {
		return nil, false
	}
	if len(stmt.Tables()) != 1 || stmt.HasAggregate() || len(stmt.GroupBy) > 0 || stmt.Distinct {
		return nil, false
	}

	var order []*sql.OrderItem
	for _, o := range stmt.OrderBy {
		e, ok := r.target(o.Expr)
		if !ok {
			if _, ordinal := (&sql.OrderItem{Expr: o.Expr}).Ordinal(); ordinal {
				// An ordinal of a * item has no single expression to sort by.
				return nil, false
			}
			e = r.expr(o.Expr)
		}
		order = append(order, &sql.OrderItem{Expr: e, Desc: o.Desc})
	}
	return order, true
}
