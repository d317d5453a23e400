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
	"fmt"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

// rewriter produces engine statements from the caller's statement. Column
// references become positional references into the table stores; table
// references become ? inputs. It never modifies the statement it reads.
// The first failure is kept in err.
type rewriter struct {
	q   *query
	err error
}

func (r *rewriter) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// attribute returns the positional reference of a materialized attribute.
func (r *rewriter) attribute(d AttributeDescriptor) sql.Expr {
	s := r.q.store(d)
	if s == nil {
		r.fail(ferrors.TableNotFound(d.Table.String()))
		return sql.Null()
	}
	i, ok := s.position(d.Attribute)
	if !ok {
		r.fail(ferrors.NewExecutionError(fmt.Sprintf("column %s is not materialized", d)))
		return sql.Null()
	}
	return &sql.PositionalRef{Table: d.Table.Name(), Index: i, Name: d.Attribute}
}

func (r *rewriter) column(ref *sql.ColumnRef) sql.Expr {
	d, ok := r.q.resolver.Resolve(ref)
	if !ok {
		r.fail(ferrors.ColumnNotFound(ref.String()))
		return sql.Null()
	}
	return r.attribute(d)
}

// expr returns a rewritten copy of e.
func (r *rewriter) expr(e sql.Expr) sql.Expr {
	return sql.Rewrite(e, func(n sql.Expr) (sql.Expr, bool) {
		if ref, ok := n.(*sql.ColumnRef); ok {
			return r.column(ref), true
		}
		return nil, false
	})
}

// target rewrites the select-list expression an ORDER BY or GROUP BY term
// stands for, when the term is an alias or an ordinal.
func (r *rewriter) target(term sql.Expr) (sql.Expr, bool) {
	e, ok := aliasTarget(r.q.stmt, r.q.resolver.aliases, term)
	if !ok {
		return nil, false
	}
	return r.expr(e), true
}

// tables returns FROM and JOIN with every table bound to its store's
// relation, in statement order.
func (r *rewriter) tables() ([]*sql.TableRef, []*sql.Join) {
	param := 0
	bind := func(ref *sql.TableRef) *sql.TableRef {
		param++
		return &sql.TableRef{Table: ref.Table, Alias: ref.Name(), Param: param}
	}
	var from []*sql.TableRef
	for _, ref := range r.q.stmt.From {
		from = append(from, bind(ref))
	}
	var joins []*sql.Join
	for _, j := range r.q.stmt.Joins {
		joins = append(joins, &sql.Join{Mode: j.Mode, Table: bind(j.Table), On: r.expr(j.On)})
	}
	return from, joins
}

// relations returns the engine inputs matching tables.
func (q *query) relations() []*sql.Relation {
	inputs := make([]*sql.Relation, len(q.tables))
	for i, t := range q.tables {
		inputs[i] = q.stores[t.Name()].relation()
	}
	return inputs
}

// finalStatement rewrites the caller's statement against the completed
// stores. Select-list * items expand to their tables' attributes and every
// item is labeled as the caller's statement labels it. LIMIT is kept as a
// cap but OFFSET is dropped when narrowing already paginated.
func finalStatement(q *query) (*sql.Select, []*sql.Relation, error) {
	r := &rewriter{q: q}
	out := &sql.Select{Distinct: q.stmt.Distinct}
	out.From, out.Joins = r.tables()

	// positions maps each original select item to its 1-based output
	// position once * items are expanded.
	positions := make([]int, len(q.stmt.Columns))
	for i, item := range q.stmt.Columns {
		positions[i] = len(out.Columns) + 1
		if star, ok := item.Expr.(*sql.Star); ok {
			for _, d := range q.starAttributes(star) {
				out.Columns = append(out.Columns, &sql.SelectItem{Expr: r.attribute(d), Alias: d.Attribute})
			}
			continue
		}
		out.Columns = append(out.Columns, &sql.SelectItem{Expr: r.expr(item.Expr), Alias: item.Label()})
	}

	out.Where = r.expr(q.stmt.Where)
	for _, g := range q.stmt.GroupBy {
		out.GroupBy = append(out.GroupBy, r.groupTerm(g))
	}
	for _, o := range q.stmt.OrderBy {
		out.OrderBy = append(out.OrderBy, &sql.OrderItem{Expr: r.orderTerm(o.Expr, positions), Desc: o.Desc})
	}

	if q.stmt.Limit != nil {
		out.Limit = sql.Int64(*q.stmt.Limit)
	}
	if q.stmt.Offset != nil && !q.paginated {
		out.Offset = sql.Int64(*q.stmt.Offset)
	}

	if r.err != nil {
		return nil, nil, r.err
	}
	return out, q.relations(), nil
}

// groupTerm rewrites a GROUP BY term. An attribute name wins over a
// select-list alias of the same name.
func (r *rewriter) groupTerm(g sql.Expr) sql.Expr {
	if ref, ok := g.(*sql.ColumnRef); ok {
		if _, attr := r.q.resolver.resolveAttribute(ref); attr {
			return r.expr(g)
		}
	}
	if e, ok := r.target(g); ok {
		return e
	}
	return r.expr(g)
}

// orderTerm rewrites an ORDER BY term. Output aliases stay names for the
// engine to resolve, and ordinals are renumbered for expanded * items.
func (r *rewriter) orderTerm(e sql.Expr, positions []int) sql.Expr {
	if n, ok := (&sql.OrderItem{Expr: e}).Ordinal(); ok {
		if n <= len(positions) {
			return sql.Lit(positions[n-1])
		}
		return sql.CloneExpr(e)
	}
	if ref, ok := e.(*sql.ColumnRef); ok && r.q.resolver.IsAlias(ref) {
		return &sql.ColumnRef{Column: ref.Column}
	}
	return r.expr(e)
}
