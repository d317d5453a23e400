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
Package sql provides the statement model shared by FlySearch's search
pipeline and its embedded evaluation engine.

Abstract Syntax Tree (AST) Overview:
====================================

FlySearch never parses SQL text. Callers hand it an already parsed SELECT
statement, either built in Go with the helper constructors in this package
or decoded from the tagged JSON form in codec.go. The tree is made of a
Select node plus expression nodes; every expression variant is its own Go
type and implements the Expr interface.

AST Design Pattern:
===================

  1. All expression types implement Expr (String plus the exprNode marker)
  2. Consumers use type switches to handle each variant
  3. Trees are treated as immutable: Rewrite and Clone build new nodes
     instead of editing existing ones, so a statement owned by the caller
     is never aliased by the positional rewrite done before evaluation

AST Node Hierarchy:
===================

	Select
	├── SelectItem   (expression + optional alias)
	├── TableRef     (schema, table, alias, or a ? input placeholder)
	├── Join         (mode, table, ON)
	├── OrderItem    (expression, direction)
	└── Expr
	    ├── ColumnRef      t.name
	    ├── Star           * or t.*
	    ├── Literal        'a', 1, TRUE, NULL
	    ├── BinaryExpr     a = 1, a AND b, a + 1
	    ├── UnaryExpr      NOT a, -a
	    ├── InExpr         a [NOT] IN (1, 2)
	    ├── BetweenExpr    a [NOT] BETWEEN 1 AND 2
	    ├── IsNullExpr     a IS [NOT] NULL
	    ├── FuncCall       UPPER(a), COUNT(DISTINCT a)
	    └── PositionalRef  t.[3] (column 3 of input relation t)

Example AST:
============

For the SQL: SELECT d.name FROM dev.dog AS d WHERE d.age > 3

	&Select{
	    Columns: []*SelectItem{{Expr: Col("d", "name")}},
	    From:    []*TableRef{{Schema: "dev", Table: "dog", Alias: "d"}},
	    Where:   Gt(Col("d", "age"), Lit(3)),
	}
*/
package sql

import "strings"

// Node is implemented by every statement and expression node.
type Node interface {
	String() string
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// Operator identifies a unary or binary operator.
type Operator string

const (
	OpAnd     Operator = "AND"
	OpOr      Operator = "OR"
	OpNot     Operator = "NOT"
	OpEq      Operator = "="
	OpNe      Operator = "!="
	OpLt      Operator = "<"
	OpLe      Operator = "<="
	OpGt      Operator = ">"
	OpGe      Operator = ">="
	OpLike    Operator = "LIKE"
	OpNotLike Operator = "NOT LIKE"
	OpAdd     Operator = "+"
	OpSub     Operator = "-"
	OpMul     Operator = "*"
	OpDiv     Operator = "/"
	OpMod     Operator = "%"
	OpConcat  Operator = "||"
	OpNeg     Operator = "-"
	OpBetween Operator = "BETWEEN"
)

// IsComparison reports whether op compares two values.
func (op Operator) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsRange reports whether op is a range comparator usable for an index scan.
func (op Operator) IsRange() bool {
	switch op {
	case OpNe, OpLt, OpLe, OpGt, OpGe, OpBetween:
		return true
	}
	return false
}

// Flip returns the operator that keeps the comparison true when its
// operands are swapped (a < b is b > a).
func (op Operator) Flip() Operator {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

// JoinMode identifies the kind of join.
type JoinMode string

const (
	JoinInner JoinMode = "INNER"
	JoinLeft  JoinMode = "LEFT"
	JoinRight JoinMode = "RIGHT"
	JoinFull  JoinMode = "FULL"
	JoinCross JoinMode = "CROSS"
)

// TableRef references a stored table, or an input relation when Param is set.
type TableRef struct {
	Schema string // Schema (database) identifier
	Table  string // Table identifier
	Alias  string // Optional alias
	Param  int    // 1-based input relation index; 0 for stored tables
}

// Name returns the name the table is addressed by: its alias if present,
// otherwise the table identifier.
func (t *TableRef) Name() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Table
}

// SelectItem is one entry of the select list.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// Join is one JOIN clause.
type Join struct {
	Mode  JoinMode
	Table *TableRef
	On    Expr // nil for CROSS joins
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Ordinal returns the 1-based select-list position when the term is an
// integer literal such as ORDER BY 2.
func (o *OrderItem) Ordinal() (int, bool) {
	lit, ok := o.Expr.(*Literal)
	if !ok {
		return 0, false
	}
	f, ok := lit.Value.(float64)
	if !ok || f != float64(int(f)) || f < 1 {
		return 0, false
	}
	return int(f), true
}

// Select is a SELECT statement.
type Select struct {
	Distinct bool
	Columns  []*SelectItem
	From     []*TableRef
	Joins    []*Join
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderItem
	Limit    *int64
	Offset   *int64
}

// Tables returns every table reference in FROM and JOIN order.
func (s *Select) Tables() []*TableRef {
	tables := make([]*TableRef, 0, len(s.From)+len(s.Joins))
	tables = append(tables, s.From...)
	for _, j := range s.Joins {
		tables = append(tables, j.Table)
	}
	return tables
}

// HasAggregate reports whether any select-list, HAVING, or ORDER BY
// expression calls an aggregate function.
func (s *Select) HasAggregate() bool {
	for _, item := range s.Columns {
		if ContainsAggregate(item.Expr) {
			return true
		}
	}
	if s.Having != nil && ContainsAggregate(s.Having) {
		return true
	}
	for _, o := range s.OrderBy {
		if ContainsAggregate(o.Expr) {
			return true
		}
	}
	return false
}

// ColumnRef references a column, optionally qualified by a table name or alias.
type ColumnRef struct {
	Table  string
	Column string
}

// Star is the * (or t.*) select-list wildcard. It also stands for the
// argument of COUNT(*).
type Star struct {
	Table string
}

// Literal is a constant value. Values are normalized with Normalize.
type Literal struct {
	Value interface{}
}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	Op    Operator
	Left  Expr
	Right Expr
}

// UnaryExpr is NOT or arithmetic negation.
type UnaryExpr struct {
	Op      Operator
	Operand Expr
}

// InExpr is expr [NOT] IN (list).
type InExpr struct {
	Expr Expr
	List []Expr
	Not  bool
}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

// FuncCall is a scalar or aggregate function call.
type FuncCall struct {
	Name     string // upper-cased by Func
	Args     []Expr
	Distinct bool
}

// PositionalRef addresses column Index of the input relation named Table.
// It is produced by the positional rewrite; Name keeps the attribute name
// for result labels and logs.
type PositionalRef struct {
	Table string
	Index int
	Name  string
}

func (*ColumnRef) exprNode()     {}
func (*Star) exprNode()          {}
func (*Literal) exprNode()       {}
func (*BinaryExpr) exprNode()    {}
func (*UnaryExpr) exprNode()     {}
func (*InExpr) exprNode()        {}
func (*BetweenExpr) exprNode()   {}
func (*IsNullExpr) exprNode()    {}
func (*FuncCall) exprNode()      {}
func (*PositionalRef) exprNode() {}

var aggregateNames = map[string]bool{
	"COUNT":        true,
	"SUM":          true,
	"AVG":          true,
	"MIN":          true,
	"MAX":          true,
	"GROUP_CONCAT": true,
}

// IsAggregate reports whether name is an aggregate function.
func IsAggregate(name string) bool {
	return aggregateNames[strings.ToUpper(name)]
}

// IsAggregate reports whether the call is to an aggregate function.
func (f *FuncCall) IsAggregate() bool {
	return IsAggregate(f.Name)
}

// ContainsAggregate reports whether e calls an aggregate anywhere.
func ContainsAggregate(e Expr) bool {
	found := false
	Inspect(e, func(n Node) bool {
		if f, ok := n.(*FuncCall); ok && f.IsAggregate() {
			found = true
		}
		return !found
	})
	return found
}

// ============================================================================
// Constructors
// ============================================================================

// Col returns a column reference; table may be empty.
func Col(table, column string) *ColumnRef {
	return &ColumnRef{Table: table, Column: column}
}

// Lit returns a literal with a normalized value.
func Lit(v interface{}) *Literal {
	return &Literal{Value: Normalize(v)}
}

// Null returns the NULL literal.
func Null() *Literal {
	return &Literal{}
}

// Bin returns a binary expression.
func Bin(op Operator, left, right Expr) *BinaryExpr {
	return &BinaryExpr{Op: op, Left: left, Right: right}
}

// Eq returns left = right.
func Eq(left, right Expr) *BinaryExpr { return Bin(OpEq, left, right) }

// Ne returns left != right.
func Ne(left, right Expr) *BinaryExpr { return Bin(OpNe, left, right) }

// Lt returns left < right.
func Lt(left, right Expr) *BinaryExpr { return Bin(OpLt, left, right) }

// Le returns left <= right.
func Le(left, right Expr) *BinaryExpr { return Bin(OpLe, left, right) }

// Gt returns left > right.
func Gt(left, right Expr) *BinaryExpr { return Bin(OpGt, left, right) }

// Ge returns left >= right.
func Ge(left, right Expr) *BinaryExpr { return Bin(OpGe, left, right) }

// And folds the operands into a left-deep AND chain. Nil operands are skipped.
func And(exprs ...Expr) Expr {
	return fold(OpAnd, exprs)
}

// Or folds the operands into a left-deep OR chain. Nil operands are skipped.
func Or(exprs ...Expr) Expr {
	return fold(OpOr, exprs)
}

func fold(op Operator, exprs []Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = Bin(op, out, e)
	}
	return out
}

// Not returns NOT e.
func Not(e Expr) *UnaryExpr {
	return &UnaryExpr{Op: OpNot, Operand: e}
}

// In returns e IN (values...), wrapping non-Expr values as literals.
func In(e Expr, values ...interface{}) *InExpr {
	list := make([]Expr, len(values))
	for i, v := range values {
		if ex, ok := v.(Expr); ok {
			list[i] = ex
			continue
		}
		list[i] = Lit(v)
	}
	return &InExpr{Expr: e, List: list}
}

// Between returns e BETWEEN low AND high.
func Between(e, low, high Expr) *BetweenExpr {
	return &BetweenExpr{Expr: e, Low: low, High: high}
}

// IsNull returns e IS NULL.
func IsNull(e Expr) *IsNullExpr {
	return &IsNullExpr{Expr: e}
}

// Func returns a function call with an upper-cased name.
func Func(name string, args ...Expr) *FuncCall {
	return &FuncCall{Name: strings.ToUpper(name), Args: args}
}

// Count returns COUNT(*).
func Count() *FuncCall {
	return Func("COUNT", &Star{})
}

// Item returns a select-list item.
func Item(e Expr, alias string) *SelectItem {
	return &SelectItem{Expr: e, Alias: alias}
}

// Table returns a stored table reference.
func Table(schema, table, alias string) *TableRef {
	return &TableRef{Schema: schema, Table: table, Alias: alias}
}

// Int64 returns a pointer to n, for Limit and Offset.
func Int64(n int64) *int64 {
	return &n
}
