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

package engine

import (
	"fmt"
	"strings"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

// group is a set of tuples sharing GROUP BY keys, with the values of the
// statement's aggregates computed over them.
type group struct {
	tuples []tuple
	aggs   map[*sql.FuncCall]interface{}
}

// first returns the tuple non-aggregate expressions are evaluated against.
// The implicit group of an aggregate over no rows yields an all-NULL tuple.
func (g *group) first(width int) tuple {
	if len(g.tuples) == 0 {
		return make(tuple, width)
	}
	return g.tuples[0]
}

// aggState holds the accumulator state for one aggregate in one group.
type aggState struct {
	count  int64
	sum    float64
	min    interface{}
	max    interface{}
	concat []string
	seen   map[interface{}]bool
}

// group partitions tuples by GROUP BY keys and computes aggregates. A
// statement with aggregates but no GROUP BY forms a single group, even
// over zero tuples. Without either, every tuple is its own group.
func (e *Engine) group(sc *scope, stmt *sql.Select, tuples []tuple) ([]*group, error) {
	calls := collectAggregates(stmt)

	var groups []*group
	switch {
	case len(stmt.GroupBy) > 0:
		index := make(map[string]*group)
		for _, t := range tuples {
			c := e.newCtx(sc, t, nil)
			keys := make([]interface{}, len(stmt.GroupBy))
			for i, g := range stmt.GroupBy {
				v, err := c.eval(g)
				if err != nil {
					return nil, err
				}
				keys[i] = v
			}
			k := e.rowKey(keys)
			g, ok := index[k]
			if !ok {
				g = &group{}
				index[k] = g
				groups = append(groups, g)
			}
			g.tuples = append(g.tuples, t)
		}
	case len(calls) > 0:
		groups = []*group{{tuples: tuples}}
	default:
		groups = make([]*group, len(tuples))
		for i, t := range tuples {
			groups[i] = &group{tuples: []tuple{t}}
		}
	}

	if len(calls) > 0 {
		for _, g := range groups {
			aggs, err := e.computeAggregates(sc, calls, g.tuples)
			if err != nil {
				return nil, err
			}
			g.aggs = aggs
		}
	}

	if stmt.Having == nil {
		return groups, nil
	}
	out := groups[:0:0]
	for _, g := range groups {
		v, err := e.newCtx(sc, g.first(len(sc.sources)), g.aggs).eval(stmt.Having)
		if err != nil {
			return nil, err
		}
		if b, known := sql.Truth(v); known && b {
			out = append(out, g)
		}
	}
	return out, nil
}

// collectAggregates returns every aggregate call in the select list,
// HAVING, and ORDER BY.
func collectAggregates(stmt *sql.Select) []*sql.FuncCall {
	var calls []*sql.FuncCall
	visit := func(n sql.Node) bool {
		if f, ok := n.(*sql.FuncCall); ok && f.IsAggregate() {
			calls = append(calls, f)
			return false
		}
		return true
	}
	for _, item := range stmt.Columns {
		sql.Inspect(item.Expr, visit)
	}
	if stmt.Having != nil {
		sql.Inspect(stmt.Having, visit)
	}
	for _, o := range stmt.OrderBy {
		sql.Inspect(o.Expr, visit)
	}
	return calls
}

func (e *Engine) computeAggregates(sc *scope, calls []*sql.FuncCall, tuples []tuple) (map[*sql.FuncCall]interface{}, error) {
	states := make(map[*sql.FuncCall]*aggState, len(calls))
	for _, f := range calls {
		if len(f.Args) != 1 {
			return nil, ferrors.NewExecutionError(fmt.Sprintf("%s expects exactly one argument", f.Name))
		}
		states[f] = &aggState{seen: make(map[interface{}]bool)}
	}

	for _, t := range tuples {
		c := e.newCtx(sc, t, nil)
		for _, f := range calls {
			state := states[f]
			if _, star := f.Args[0].(*sql.Star); star {
				if strings.ToUpper(f.Name) != "COUNT" {
					return nil, ferrors.NewExecutionError(fmt.Sprintf("%s(*) is not supported", f.Name))
				}
				state.count++
				continue
			}
			v, err := c.eval(f.Args[0])
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			if f.Distinct {
				k := sql.HashKey(v, e.collator)
				if state.seen[k] {
					continue
				}
				state.seen[k] = true
			}
			if err := e.accumulate(f, state, v); err != nil {
				return nil, err
			}
		}
	}

	out := make(map[*sql.FuncCall]interface{}, len(calls))
	for _, f := range calls {
		out[f] = states[f].result(strings.ToUpper(f.Name))
	}
	return out, nil
}

func (e *Engine) accumulate(f *sql.FuncCall, state *aggState, v interface{}) error {
	switch strings.ToUpper(f.Name) {
	case "COUNT":
		state.count++
	case "SUM", "AVG":
		n, ok := sql.ToNumber(v)
		if !ok {
			return ferrors.TypeMismatch(f.Name, v)
		}
		state.sum += n
		state.count++
	case "MIN":
		if state.min == nil || sql.Order(v, state.min, e.collator) < 0 {
			state.min = v
		}
		state.count++
	case "MAX":
		if state.max == nil || sql.Order(v, state.max, e.collator) > 0 {
			state.max = v
		}
		state.count++
	case "GROUP_CONCAT":
		state.concat = append(state.concat, sql.FormatValue(v))
		state.count++
	default:
		return ferrors.UnknownFunction(f.Name)
	}
	return nil
}

func (s *aggState) result(name string) interface{} {
	switch name {
	case "COUNT":
		return float64(s.count)
	case "SUM":
		if s.count == 0 {
			return nil
		}
		return s.sum
	case "AVG":
		if s.count == 0 {
			return nil
		}
		return s.sum / float64(s.count)
	case "MIN":
		return s.min
	case "MAX":
		return s.max
	case "GROUP_CONCAT":
		if s.count == 0 {
			return nil
		}
		return strings.Join(s.concat, ",")
	}
	return nil
}
