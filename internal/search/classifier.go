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

// ExactMatchState is the set of literal values an attribute is compared
// to with = or IN. Values keep first-seen order without duplicates.
type ExactMatchState struct {
	Ignored bool
	Values  []interface{}
}

func (s *ExactMatchState) add(v interface{}) {
	for _, have := range s.Values {
		if have == v {
			return
		}
	}
	s.Values = append(s.Values, v)
}

// Comparator is one range condition against literals. Upper is the
// upper bound of a BETWEEN.
type Comparator struct {
	Op    sql.Operator
	Value interface{}
	Upper interface{}
}

// ComparatorState is the list of range conditions on an attribute.
type ComparatorState struct {
	Ignored     bool
	Comparators []Comparator
}

// Classification is the outcome of classifying a WHERE predicate.
type Classification struct {
	Exact  map[AttributeDescriptor]*ExactMatchState
	Ranges map[AttributeDescriptor]*ComparatorState
}

// ExactValues returns the usable exact-match values of an attribute.
func (c *Classification) ExactValues(a AttributeDescriptor) ([]interface{}, bool) {
	s, ok := c.Exact[a]
	if !ok || s.Ignored {
		return nil, false
	}
	return s.Values, true
}

// Comparators returns the usable range conditions of an attribute.
func (c *Classification) Comparators(a AttributeDescriptor) ([]Comparator, bool) {
	s, ok := c.Ranges[a]
	if !ok || s.Ignored || len(s.Comparators) == 0 {
		return nil, false
	}
	return s.Comparators, true
}

// ContainsOr reports whether an OR appears anywhere in e.
func ContainsOr(e sql.Expr) bool {
	found := false
	sql.Inspect(e, func(n sql.Node) bool {
		if b, ok := n.(*sql.BinaryExpr); ok && b.Op == sql.OpOr {
			found = true
		}
		return !found
	})
	return found
}

// Classify determines, per attribute, the literal values and ranges WHERE
// restricts it to. Any OR in the predicate disables classification
// entirely. Otherwise each leaf of the conjunction is examined:
//
//   - column = literal and column IN (literals) add exact-match values
//   - <, <=, >, >=, != and BETWEEN against literals add comparators
//   - the same operators against anything else disqualify the attribute
//     for that kind of narrowing
//   - any other leaf disqualifies exact matching for the columns it uses
//
// Disqualification is applied after every leaf has been seen, so the
// outcome does not depend on predicate order.
func Classify(where sql.Expr, resolve func(*sql.ColumnRef) (AttributeDescriptor, bool)) *Classification {
	c := &Classification{
		Exact:  make(map[AttributeDescriptor]*ExactMatchState),
		Ranges: make(map[AttributeDescriptor]*ComparatorState),
	}
	if where == nil || ContainsOr(where) {
		return c
	}

	ignoreExact := make(map[AttributeDescriptor]bool)
	ignoreRange := make(map[AttributeDescriptor]bool)

	exact := func(a AttributeDescriptor) *ExactMatchState {
		s, ok := c.Exact[a]
		if !ok {
			s = &ExactMatchState{}
			c.Exact[a] = s
		}
		return s
	}
	ranges := func(a AttributeDescriptor) *ComparatorState {
		s, ok := c.Ranges[a]
		if !ok {
			s = &ComparatorState{}
			c.Ranges[a] = s
		}
		return s
	}
	disqualify := func(e sql.Expr, target map[AttributeDescriptor]bool) {
		sql.Inspect(e, func(n sql.Node) bool {
			if ref, ok := n.(*sql.ColumnRef); ok {
				if a, ok := resolve(ref); ok {
					target[a] = true
				}
			}
			return true
		})
	}
	column := func(e sql.Expr) (AttributeDescriptor, bool) {
		ref, ok := e.(*sql.ColumnRef)
		if !ok {
			return AttributeDescriptor{}, false
		}
		return resolve(ref)
	}

	var visit func(e sql.Expr)
	visit = func(e sql.Expr) {
		switch n := e.(type) {
		case *sql.BinaryExpr:
			if n.Op == sql.OpAnd {
				visit(n.Left)
				visit(n.Right)
				return
			}
			if !n.Op.IsComparison() {
				break
			}
			a, lit, op, ok := columnVersusLiteral(n, column)
			switch {
			case ok && op == sql.OpEq:
				exact(a).add(lit)
			case ok:
				ranges(a).Comparators = append(ranges(a).Comparators, Comparator{Op: op, Value: lit})
			case n.Op == sql.OpEq:
				disqualify(n, ignoreExact)
			default:
				disqualify(n, ignoreRange)
				disqualify(n, ignoreExact)
			}
			return
		case *sql.InExpr:
			if a, ok := column(n.Expr); ok && !n.Not {
				values, literal := literals(n.List)
				if literal {
					s := exact(a)
					for _, v := range values {
						s.add(v)
					}
					return
				}
			}
		case *sql.BetweenExpr:
			if a, ok := column(n.Expr); ok && !n.Not {
				lo, lok := n.Low.(*sql.Literal)
				hi, hok := n.High.(*sql.Literal)
				if lok && hok {
					ranges(a).Comparators = append(ranges(a).Comparators, Comparator{
						Op:    sql.OpBetween,
						Value: sql.Normalize(lo.Value),
						Upper: sql.Normalize(hi.Value),
					})
					return
				}
			}
			disqualify(n, ignoreRange)
		}
		disqualify(e, ignoreExact)
	}
	visit(where)

	for a := range ignoreExact {
		exact(a).Ignored = true
		c.Exact[a].Values = nil
	}
	for a := range ignoreRange {
		ranges(a).Ignored = true
		c.Ranges[a].Comparators = nil
	}
	return c
}

// columnVersusLiteral matches column OP literal or literal OP column. The
// operator is flipped for the second form so it always reads with the
// column on the left.
func columnVersusLiteral(b *sql.BinaryExpr, column func(sql.Expr) (AttributeDescriptor, bool)) (AttributeDescriptor, interface{}, sql.Operator, bool) {
	if a, ok := column(b.Left); ok {
		if lit, ok := b.Right.(*sql.Literal); ok {
			return a, sql.Normalize(lit.Value), b.Op, true
		}
	}
	if a, ok := column(b.Right); ok {
		if lit, ok := b.Left.(*sql.Literal); ok {
			return a, sql.Normalize(lit.Value), b.Op.Flip(), true
		}
	}
	return AttributeDescriptor{}, nil, "", false
}

func literals(list []sql.Expr) ([]interface{}, bool) {
	values := make([]interface{}, 0, len(list))
	for _, e := range list {
		lit, ok := e.(*sql.Literal)
		if !ok {
			return nil, false
		}
		values = append(values, sql.Normalize(lit.Value))
	}
	return values, true
}
