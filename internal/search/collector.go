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
	"flysearch/internal/sql"
)

// Clause names the part of a statement a column reference appears in.
type Clause string

const (
	ClauseSelect  Clause = "select"
	ClauseWhere   Clause = "where"
	ClauseJoin    Clause = "join"
	ClauseOrderBy Clause = "order_by"
	ClauseGroupBy Clause = "group_by"
)

// ColumnSet holds every column reference of a statement, bucketed by
// clause, in traversal order.
type ColumnSet struct {
	Select  []*sql.ColumnRef
	Where   []*sql.ColumnRef
	Joins   []*sql.ColumnRef
	OrderBy []*sql.ColumnRef
	GroupBy []*sql.ColumnRef

	// Stars holds the select-list * items (qualified or not).
	Stars []*sql.Star
}

// All returns every collected column reference.
func (cs *ColumnSet) All() []*sql.ColumnRef {
	all := make([]*sql.ColumnRef, 0, len(cs.Select)+len(cs.Where)+len(cs.Joins)+len(cs.OrderBy)+len(cs.GroupBy))
	all = append(all, cs.Select...)
	all = append(all, cs.Where...)
	all = append(all, cs.Joins...)
	all = append(all, cs.OrderBy...)
	all = append(all, cs.GroupBy...)
	return all
}

// Bucket returns the references of one clause.
func (cs *ColumnSet) Bucket(c Clause) []*sql.ColumnRef {
	switch c {
	case ClauseSelect:
		return cs.Select
	case ClauseWhere:
		return cs.Where
	case ClauseJoin:
		return cs.Joins
	case ClauseOrderBy:
		return cs.OrderBy
	case ClauseGroupBy:
		return cs.GroupBy
	}
	return nil
}

// selectAliases maps each select-list alias to its expression.
func selectAliases(stmt *sql.Select) map[string]sql.Expr {
	aliases := make(map[string]sql.Expr)
	for _, item := range stmt.Columns {
		if item.Alias != "" {
			aliases[item.Alias] = item.Expr
		}
	}
	return aliases
}

// aliasTarget returns the select-list expression an ORDER BY or GROUP BY
// term stands for: an ordinal, or an unqualified name equal to an alias.
func aliasTarget(stmt *sql.Select, aliases map[string]sql.Expr, e sql.Expr) (sql.Expr, bool) {
	if n, ok := (&sql.OrderItem{Expr: e}).Ordinal(); ok {
		if n <= len(stmt.Columns) {
			if _, star := stmt.Columns[n-1].Expr.(*sql.Star); !star {
				return stmt.Columns[n-1].Expr, true
			}
		}
		return nil, false
	}
	if ref, ok := e.(*sql.ColumnRef); ok && ref.Table == "" {
		if target, ok := aliases[ref.Column]; ok {
			return target, true
		}
	}
	return nil, false
}

// CollectColumns extracts every column reference of stmt in a single
// pass. An ORDER BY or GROUP BY term that stands for a select-list item
// also contributes the columns of that item's expression, so the
// attributes backing it are collected under the clause that needs them.
func CollectColumns(stmt *sql.Select) *ColumnSet {
	cs := &ColumnSet{}
	aliases := selectAliases(stmt)

	collect := func(dst *[]*sql.ColumnRef, root sql.Expr) {
		sql.Inspect(root, func(n sql.Node) bool {
			if ref, ok := n.(*sql.ColumnRef); ok {
				*dst = append(*dst, ref)
			}
			return true
		})
	}
	collectTerm := func(dst *[]*sql.ColumnRef, term sql.Expr) {
		collect(dst, term)
		if target, ok := aliasTarget(stmt, aliases, term); ok {
			collect(dst, target)
		}
	}

	for _, item := range stmt.Columns {
		if star, ok := item.Expr.(*sql.Star); ok {
			cs.Stars = append(cs.Stars, star)
			continue
		}
		collect(&cs.Select, item.Expr)
	}
	for _, j := range stmt.Joins {
		collect(&cs.Joins, j.On)
	}
	collect(&cs.Where, stmt.Where)
	for _, g := range stmt.GroupBy {
		collectTerm(&cs.GroupBy, g)
	}
	for _, o := range stmt.OrderBy {
		collectTerm(&cs.OrderBy, o.Expr)
	}
	return cs
}
