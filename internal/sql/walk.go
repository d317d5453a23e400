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

// Inspect traverses the tree rooted at node in depth-first order, calling
// f for each node. If f returns false its children are skipped. Absent
// (nil) expressions are never passed to f.
func Inspect(node Node, f func(Node) bool) {
	if node == nil {
		return
	}
	if !f(node) {
		return
	}
	switch n := node.(type) {
	case *Select:
		for _, item := range n.Columns {
			Inspect(item.Expr, f)
		}
		for _, j := range n.Joins {
			Inspect(j.On, f)
		}
		Inspect(n.Where, f)
		for _, g := range n.GroupBy {
			Inspect(g, f)
		}
		Inspect(n.Having, f)
		for _, o := range n.OrderBy {
			Inspect(o.Expr, f)
		}
	case *BinaryExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *UnaryExpr:
		Inspect(n.Operand, f)
	case *InExpr:
		Inspect(n.Expr, f)
		for _, e := range n.List {
			Inspect(e, f)
		}
	case *BetweenExpr:
		Inspect(n.Expr, f)
		Inspect(n.Low, f)
		Inspect(n.High, f)
	case *IsNullExpr:
		Inspect(n.Expr, f)
	case *FuncCall:
		for _, a := range n.Args {
			Inspect(a, f)
		}
	}
}

// Rewrite returns a copy of e in which every node for which f returns
// (replacement, true) is replaced by the replacement. Replaced nodes are
// not descended into. All other nodes are copied, so the result never
// shares mutable structure with e.
func Rewrite(e Expr, f func(Expr) (Expr, bool)) Expr {
	if e == nil {
		return nil
	}
	if repl, ok := f(e); ok {
		return repl
	}
	switch n := e.(type) {
	case *ColumnRef:
		c := *n
		return &c
	case *Star:
		c := *n
		return &c
	case *Literal:
		c := *n
		return &c
	case *PositionalRef:
		c := *n
		return &c
	case *BinaryExpr:
		return &BinaryExpr{Op: n.Op, Left: Rewrite(n.Left, f), Right: Rewrite(n.Right, f)}
	case *UnaryExpr:
		return &UnaryExpr{Op: n.Op, Operand: Rewrite(n.Operand, f)}
	case *InExpr:
		return &InExpr{Expr: Rewrite(n.Expr, f), List: rewriteList(n.List, f), Not: n.Not}
	case *BetweenExpr:
		return &BetweenExpr{
			Expr: Rewrite(n.Expr, f),
			Low:  Rewrite(n.Low, f),
			High: Rewrite(n.High, f),
			Not:  n.Not,
		}
	case *IsNullExpr:
		return &IsNullExpr{Expr: Rewrite(n.Expr, f), Not: n.Not}
	case *FuncCall:
		return &FuncCall{Name: n.Name, Args: rewriteList(n.Args, f), Distinct: n.Distinct}
	}
	return e
}

func rewriteList(list []Expr, f func(Expr) (Expr, bool)) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = Rewrite(e, f)
	}
	return out
}

// CloneExpr returns a deep copy of e.
func CloneExpr(e Expr) Expr {
	return Rewrite(e, func(Expr) (Expr, bool) { return nil, false })
}

// RewriteSelect returns a copy of s with f applied to every expression.
// Table references are copied as-is; use the returned statement's fields
// to adjust them.
func RewriteSelect(s *Select, f func(Expr) (Expr, bool)) *Select {
	out := &Select{
		Distinct: s.Distinct,
		Where:    Rewrite(s.Where, f),
		Having:   Rewrite(s.Having, f),
		GroupBy:  rewriteList(s.GroupBy, f),
	}
	for _, item := range s.Columns {
		out.Columns = append(out.Columns, &SelectItem{Expr: Rewrite(item.Expr, f), Alias: item.Alias})
	}
	for _, t := range s.From {
		c := *t
		out.From = append(out.From, &c)
	}
	for _, j := range s.Joins {
		t := *j.Table
		out.Joins = append(out.Joins, &Join{Mode: j.Mode, Table: &t, On: Rewrite(j.On, f)})
	}
	for _, o := range s.OrderBy {
		out.OrderBy = append(out.OrderBy, &OrderItem{Expr: Rewrite(o.Expr, f), Desc: o.Desc})
	}
	if s.Limit != nil {
		out.Limit = Int64(*s.Limit)
	}
	if s.Offset != nil {
		out.Offset = Int64(*s.Offset)
	}
	return out
}

// Clone returns a deep copy of s.
func (s *Select) Clone() *Select {
	return RewriteSelect(s, func(Expr) (Expr, bool) { return nil, false })
}
