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
	"math"
	"regexp"
	"strings"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

// evalCtx evaluates expressions against one tuple. aggs holds the computed
// aggregate values of the tuple's group, or nil outside grouping.
type evalCtx struct {
	e    *Engine
	sc   *scope
	t    tuple
	aggs map[*sql.FuncCall]interface{}
}

func (e *Engine) newCtx(sc *scope, t tuple, aggs map[*sql.FuncCall]interface{}) *evalCtx {
	return &evalCtx{e: e, sc: sc, t: t, aggs: aggs}
}

func (c *evalCtx) eval(ex sql.Expr) (interface{}, error) {
	switch n := ex.(type) {
	case nil:
		return nil, nil
	case *sql.Literal:
		return sql.Normalize(n.Value), nil
	case *sql.ColumnRef:
		si, ci, err := c.sc.resolve(n)
		if err != nil {
			return nil, err
		}
		return c.cell(si, ci), nil
	case *sql.PositionalRef:
		si, ok := c.sc.byName[n.Table]
		if !ok {
			return nil, ferrors.NewExecutionError(fmt.Sprintf("unknown table '%s' in %s", n.Table, n))
		}
		if n.Index < 0 || n.Index >= len(c.sc.sources[si].rel.Columns) {
			return nil, ferrors.NewExecutionError(fmt.Sprintf("attribute position %s is out of range", n))
		}
		return c.cell(si, n.Index), nil
	case *sql.Star:
		return nil, ferrors.NewExecutionError("* is only allowed in the select list or COUNT(*)")
	case *sql.BinaryExpr:
		return c.binary(n)
	case *sql.UnaryExpr:
		return c.unary(n)
	case *sql.InExpr:
		return c.in(n)
	case *sql.BetweenExpr:
		return c.between(n)
	case *sql.IsNullExpr:
		v, err := c.eval(n.Expr)
		if err != nil {
			return nil, err
		}
		return (v == nil) != n.Not, nil
	case *sql.FuncCall:
		if n.IsAggregate() {
			v, ok := c.aggs[n]
			if !ok {
				return nil, ferrors.NewExecutionError(fmt.Sprintf("aggregate %s is not allowed here", n))
			}
			return v, nil
		}
		return c.call(n)
	}
	return nil, ferrors.NewExecutionError(fmt.Sprintf("unsupported expression %T", ex))
}

// cell reads a value; NULL-extended sources and short rows yield NULL.
func (c *evalCtx) cell(si, ci int) interface{} {
	row := c.t[si]
	if ci >= len(row) {
		return nil
	}
	return row[ci]
}

func (c *evalCtx) binary(b *sql.BinaryExpr) (interface{}, error) {
	switch b.Op {
	case sql.OpAnd, sql.OpOr:
		return c.logical(b)
	}

	l, err := c.eval(b.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.eval(b.Right)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case sql.OpEq, sql.OpNe, sql.OpLt, sql.OpLe, sql.OpGt, sql.OpGe:
		return c.e.compare(b.Op, l, r), nil
	case sql.OpLike, sql.OpNotLike:
		if l == nil || r == nil {
			return nil, nil
		}
		re, err := c.e.likePattern(sql.FormatValue(r))
		if err != nil {
			return nil, err
		}
		return re.MatchString(sql.FormatValue(l)) == (b.Op == sql.OpLike), nil
	case sql.OpConcat:
		if l == nil || r == nil {
			return nil, nil
		}
		return sql.FormatValue(l) + sql.FormatValue(r), nil
	}
	return arithmetic(b.Op, l, r)
}

// logical implements three-valued AND and OR.
func (c *evalCtx) logical(b *sql.BinaryExpr) (interface{}, error) {
	l, err := c.eval(b.Left)
	if err != nil {
		return nil, err
	}
	lv, lknown := sql.Truth(l)
	if lknown {
		if b.Op == sql.OpAnd && !lv {
			return false, nil
		}
		if b.Op == sql.OpOr && lv {
			return true, nil
		}
	}
	r, err := c.eval(b.Right)
	if err != nil {
		return nil, err
	}
	rv, rknown := sql.Truth(r)
	if rknown {
		if b.Op == sql.OpAnd && !rv {
			return false, nil
		}
		if b.Op == sql.OpOr && rv {
			return true, nil
		}
	}
	if !lknown || !rknown {
		return nil, nil
	}
	return b.Op == sql.OpAnd, nil
}

func (c *evalCtx) unary(u *sql.UnaryExpr) (interface{}, error) {
	v, err := c.eval(u.Operand)
	if err != nil {
		return nil, err
	}
	if u.Op == sql.OpNot {
		b, known := sql.Truth(v)
		if !known {
			return nil, nil
		}
		return !b, nil
	}
	if v == nil {
		return nil, nil
	}
	n, ok := sql.ToNumber(v)
	if !ok {
		return nil, ferrors.TypeMismatch(string(u.Op), v)
	}
	return -n, nil
}

func (c *evalCtx) in(in *sql.InExpr) (interface{}, error) {
	v, err := c.eval(in.Expr)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	unknown := false
	for _, item := range in.List {
		iv, err := c.eval(item)
		if err != nil {
			return nil, err
		}
		switch c.e.compare(sql.OpEq, v, iv) {
		case true:
			return !in.Not, nil
		case nil:
			unknown = true
		}
	}
	if unknown {
		return nil, nil
	}
	return in.Not, nil
}

func (c *evalCtx) between(b *sql.BetweenExpr) (interface{}, error) {
	v, err := c.eval(b.Expr)
	if err != nil {
		return nil, err
	}
	lo, err := c.eval(b.Low)
	if err != nil {
		return nil, err
	}
	hi, err := c.eval(b.High)
	if err != nil {
		return nil, err
	}
	res := and3(c.e.compare(sql.OpGe, v, lo), c.e.compare(sql.OpLe, v, hi))
	if res == nil {
		return nil, nil
	}
	return res.(bool) != b.Not, nil
}

// and3 is three-valued AND over comparison results.
func and3(a, b interface{}) interface{} {
	if a == false || b == false {
		return false
	}
	if a == nil || b == nil {
		return nil
	}
	return true
}

// compare applies a comparison operator. It returns true, false, or nil
// for unknown. Values of different kinds are never equal; ordering them is
// unknown.
func (e *Engine) compare(op sql.Operator, l, r interface{}) interface{} {
	if l == nil || r == nil {
		return nil
	}
	cmp, ok := sql.CompareValues(l, r, e.collator)
	if !ok {
		switch op {
		case sql.OpEq:
			return false
		case sql.OpNe:
			return true
		}
		return nil
	}
	switch op {
	case sql.OpEq:
		return cmp == 0
	case sql.OpNe:
		return cmp != 0
	case sql.OpLt:
		return cmp < 0
	case sql.OpLe:
		return cmp <= 0
	case sql.OpGt:
		return cmp > 0
	case sql.OpGe:
		return cmp >= 0
	}
	return nil
}

func arithmetic(op sql.Operator, l, r interface{}) (interface{}, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	x, ok := sql.ToNumber(l)
	if !ok {
		return nil, ferrors.TypeMismatch(string(op), l)
	}
	y, ok := sql.ToNumber(r)
	if !ok {
		return nil, ferrors.TypeMismatch(string(op), r)
	}
	switch op {
	case sql.OpAdd:
		return x + y, nil
	case sql.OpSub:
		return x - y, nil
	case sql.OpMul:
		return x * y, nil
	case sql.OpDiv:
		if y == 0 {
			return nil, nil
		}
		return x / y, nil
	case sql.OpMod:
		if y == 0 {
			return nil, nil
		}
		return math.Mod(x, y), nil
	}
	return nil, ferrors.NewExecutionError(fmt.Sprintf("unsupported operator %s", op))
}

// likePattern compiles a LIKE pattern to an anchored, case-insensitive
// regular expression. Compiled patterns are cached on the engine.
func (e *Engine) likePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, ferrors.NewExecutionError(fmt.Sprintf("invalid LIKE pattern '%s'", pattern)).WithCause(err)
	}
	e.patterns.Store(pattern, re)
	return re, nil
}
