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

import (
	"strconv"
	"strings"
)

// SQL rendering. The output is what logs show for synthetic statements
// and what unaliased select-list expressions are labelled with, so it is
// kept stable and minimal (parentheses only where precedence needs them).

func quoteIdent(s string) string {
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "`" + strings.ReplaceAll(s, "`", "``") + "`"
		}
	}
	return s
}

func precedence(e Expr) int {
	switch n := e.(type) {
	case *BinaryExpr:
		switch n.Op {
		case OpOr:
			return 1
		case OpAnd:
			return 2
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpNotLike:
			return 4
		case OpConcat:
			return 5
		case OpAdd, OpSub:
			return 6
		case OpMul, OpDiv, OpMod:
			return 7
		}
	case *UnaryExpr:
		if n.Op == OpNot {
			return 3
		}
		return 8
	case *InExpr, *BetweenExpr, *IsNullExpr:
		return 4
	}
	return 9
}

func wrap(e Expr, min int) string {
	if precedence(e) < min {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// String implements Node.
func (c *ColumnRef) String() string {
	if c.Table != "" {
		return quoteIdent(c.Table) + "." + quoteIdent(c.Column)
	}
	return quoteIdent(c.Column)
}

// String implements Node.
func (s *Star) String() string {
	if s.Table != "" {
		return quoteIdent(s.Table) + ".*"
	}
	return "*"
}

// String implements Node.
func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return FormatValue(l.Value)
}

// String implements Node.
func (b *BinaryExpr) String() string {
	p := precedence(b)
	return wrap(b.Left, p) + " " + string(b.Op) + " " + wrap(b.Right, p+1)
}

// String implements Node.
func (u *UnaryExpr) String() string {
	if u.Op == OpNot {
		return "NOT " + wrap(u.Operand, 3)
	}
	return string(u.Op) + wrap(u.Operand, 8)
}

// String implements Node.
func (in *InExpr) String() string {
	parts := make([]string, len(in.List))
	for i, e := range in.List {
		parts[i] = e.String()
	}
	op := " IN ("
	if in.Not {
		op = " NOT IN ("
	}
	return wrap(in.Expr, 5) + op + strings.Join(parts, ", ") + ")"
}

// String implements Node.
func (b *BetweenExpr) String() string {
	op := " BETWEEN "
	if b.Not {
		op = " NOT BETWEEN "
	}
	return wrap(b.Expr, 5) + op + wrap(b.Low, 5) + " AND " + wrap(b.High, 5)
}

// String implements Node.
func (n *IsNullExpr) String() string {
	if n.Not {
		return wrap(n.Expr, 5) + " IS NOT NULL"
	}
	return wrap(n.Expr, 5) + " IS NULL"
}

// String implements Node.
func (f *FuncCall) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	prefix := ""
	if f.Distinct {
		prefix = "DISTINCT "
	}
	return f.Name + "(" + prefix + strings.Join(parts, ", ") + ")"
}

// String implements Node.
func (p *PositionalRef) String() string {
	return quoteIdent(p.Table) + ".[" + strconv.Itoa(p.Index) + "]"
}

// String renders the table reference as it appears in FROM.
func (t *TableRef) String() string {
	var b strings.Builder
	switch {
	case t.Param > 0:
		b.WriteString("?")
	case t.Schema != "":
		b.WriteString(quoteIdent(t.Schema) + "." + quoteIdent(t.Table))
	default:
		b.WriteString(quoteIdent(t.Table))
	}
	if t.Alias != "" {
		b.WriteString(" AS " + quoteIdent(t.Alias))
	}
	return b.String()
}

// String renders the statement as SQL.
func (s *Select) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, item := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(item.Expr.String())
		if item.Alias != "" {
			b.WriteString(" AS " + quoteIdent(item.Alias))
		}
	}
	if len(s.From) > 0 {
		b.WriteString(" FROM ")
		for i, t := range s.From {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.String())
		}
	}
	for _, j := range s.Joins {
		mode := j.Mode
		if mode == "" {
			mode = JoinInner
		}
		b.WriteString(" " + string(mode) + " JOIN " + j.Table.String())
		if j.On != nil {
			b.WriteString(" ON " + j.On.String())
		}
	}
	if s.Where != nil {
		b.WriteString(" WHERE " + s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(g.String())
		}
	}
	if s.Having != nil {
		b.WriteString(" HAVING " + s.Having.String())
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.Expr.String())
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if s.Limit != nil {
		b.WriteString(" LIMIT " + strconv.FormatInt(*s.Limit, 10))
	}
	if s.Offset != nil {
		b.WriteString(" OFFSET " + strconv.FormatInt(*s.Offset, 10))
	}
	return b.String()
}

// Label returns the output column label for a select-list item: its alias,
// else the column or attribute name, else the rendered expression.
func (item *SelectItem) Label() string {
	if item.Alias != "" {
		return item.Alias
	}
	switch e := item.Expr.(type) {
	case *ColumnRef:
		return e.Column
	case *PositionalRef:
		if e.Name != "" {
			return e.Name
		}
	}
	return item.Expr.String()
}
