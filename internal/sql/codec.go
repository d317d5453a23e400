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
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	ferrors "flysearch/internal/errors"
)

/*
JSON Statement Format:
======================

Statements travel between the CLI, the HTTP server, and the executor as
JSON. Every expression is an object with exactly one key naming its
variant:

	{"column":  {"table": "d", "name": "age"}}
	{"star":    {"table": "d"}}
	{"literal": {"value": 3}}
	{"binary":  {"op": ">", "left": {...}, "right": {...}}}
	{"unary":   {"op": "NOT", "operand": {...}}}
	{"in":      {"expr": {...}, "list": [{...}], "not": false}}
	{"between": {"expr": {...}, "low": {...}, "high": {...}}}
	{"is_null": {"expr": {...}, "not": true}}
	{"func":    {"name": "COUNT", "args": [{...}], "distinct": false}}

A statement:

	{
	  "distinct": false,
	  "columns":  [{"expr": {...}, "alias": "n"}],
	  "from":     [{"schema": "dev", "table": "dog", "alias": "d"}],
	  "joins":    [{"mode": "LEFT", "table": {...}, "on": {...}}],
	  "where":    {...},
	  "group_by": [{...}],
	  "order_by": [{"expr": {...}, "desc": true}],
	  "limit":    10,
	  "offset":   0
	}
*/

type exprJSON struct {
	Column     *columnJSON     `json:"column,omitempty"`
	Star       *starJSON       `json:"star,omitempty"`
	Literal    *literalJSON    `json:"literal,omitempty"`
	Binary     *binaryJSON     `json:"binary,omitempty"`
	Unary      *unaryJSON      `json:"unary,omitempty"`
	In         *inJSON         `json:"in,omitempty"`
	Between    *betweenJSON    `json:"between,omitempty"`
	IsNull     *isNullJSON     `json:"is_null,omitempty"`
	Func       *funcJSON       `json:"func,omitempty"`
	Positional *positionalJSON `json:"positional,omitempty"`
}

type columnJSON struct {
	Table string `json:"table,omitempty"`
	Name  string `json:"name"`
}

type starJSON struct {
	Table string `json:"table,omitempty"`
}

type literalJSON struct {
	Value interface{} `json:"value"`
}

type binaryJSON struct {
	Op    string    `json:"op"`
	Left  *exprJSON `json:"left"`
	Right *exprJSON `json:"right"`
}

type unaryJSON struct {
	Op      string    `json:"op"`
	Operand *exprJSON `json:"operand"`
}

type inJSON struct {
	Expr *exprJSON   `json:"expr"`
	List []*exprJSON `json:"list"`
	Not  bool        `json:"not,omitempty"`
}

type betweenJSON struct {
	Expr *exprJSON `json:"expr"`
	Low  *exprJSON `json:"low"`
	High *exprJSON `json:"high"`
	Not  bool      `json:"not,omitempty"`
}

type isNullJSON struct {
	Expr *exprJSON `json:"expr"`
	Not  bool      `json:"not,omitempty"`
}

type funcJSON struct {
	Name     string      `json:"name"`
	Args     []*exprJSON `json:"args,omitempty"`
	Distinct bool        `json:"distinct,omitempty"`
}

type positionalJSON struct {
	Table string `json:"table"`
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
}

type tableJSON struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table"`
	Alias  string `json:"alias,omitempty"`
}

type itemJSON struct {
	Expr  *exprJSON `json:"expr"`
	Alias string    `json:"alias,omitempty"`
}

type joinJSON struct {
	Mode  string     `json:"mode,omitempty"`
	Table *tableJSON `json:"table"`
	On    *exprJSON  `json:"on,omitempty"`
}

type orderJSON struct {
	Expr *exprJSON `json:"expr"`
	Desc bool      `json:"desc,omitempty"`
}

type selectJSON struct {
	Distinct bool         `json:"distinct,omitempty"`
	Columns  []*itemJSON  `json:"columns"`
	From     []*tableJSON `json:"from,omitempty"`
	Joins    []*joinJSON  `json:"joins,omitempty"`
	Where    *exprJSON    `json:"where,omitempty"`
	GroupBy  []*exprJSON  `json:"group_by,omitempty"`
	Having   *exprJSON    `json:"having,omitempty"`
	OrderBy  []*orderJSON `json:"order_by,omitempty"`
	Limit    *int64       `json:"limit,omitempty"`
	Offset   *int64       `json:"offset,omitempty"`
}

var knownOperators = map[string]Operator{}

func init() {
	for _, op := range []Operator{
		OpAnd, OpOr, OpNot, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpNotLike,
		OpAdd, OpSub, OpMul, OpDiv, OpMod, OpConcat,
	} {
		knownOperators[string(op)] = op
	}
	knownOperators["<>"] = OpNe
}

func parseOperator(s string) (Operator, error) {
	op, ok := knownOperators[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", ferrors.InvalidValue("op", fmt.Sprintf("unknown operator %q", s))
	}
	return op, nil
}

func encodeExpr(e Expr) *exprJSON {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ColumnRef:
		return &exprJSON{Column: &columnJSON{Table: n.Table, Name: n.Column}}
	case *Star:
		return &exprJSON{Star: &starJSON{Table: n.Table}}
	case *Literal:
		return &exprJSON{Literal: &literalJSON{Value: n.Value}}
	case *BinaryExpr:
		return &exprJSON{Binary: &binaryJSON{Op: string(n.Op), Left: encodeExpr(n.Left), Right: encodeExpr(n.Right)}}
	case *UnaryExpr:
		return &exprJSON{Unary: &unaryJSON{Op: string(n.Op), Operand: encodeExpr(n.Operand)}}
	case *InExpr:
		return &exprJSON{In: &inJSON{Expr: encodeExpr(n.Expr), List: encodeList(n.List), Not: n.Not}}
	case *BetweenExpr:
		return &exprJSON{Between: &betweenJSON{
			Expr: encodeExpr(n.Expr), Low: encodeExpr(n.Low), High: encodeExpr(n.High), Not: n.Not,
		}}
	case *IsNullExpr:
		return &exprJSON{IsNull: &isNullJSON{Expr: encodeExpr(n.Expr), Not: n.Not}}
	case *FuncCall:
		return &exprJSON{Func: &funcJSON{Name: n.Name, Args: encodeList(n.Args), Distinct: n.Distinct}}
	case *PositionalRef:
		return &exprJSON{Positional: &positionalJSON{Table: n.Table, Index: n.Index, Name: n.Name}}
	}
	return nil
}

func encodeList(list []Expr) []*exprJSON {
	if len(list) == 0 {
		return nil
	}
	out := make([]*exprJSON, len(list))
	for i, e := range list {
		out[i] = encodeExpr(e)
	}
	return out
}

func decodeExpr(j *exprJSON) (Expr, error) {
	if j == nil {
		return nil, nil
	}
	var (
		out   Expr
		err   error
		count int
	)
	if j.Column != nil {
		count++
		if j.Column.Name == "" {
			return nil, ferrors.MissingRequired("column.name")
		}
		out = &ColumnRef{Table: j.Column.Table, Column: j.Column.Name}
	}
	if j.Star != nil {
		count++
		out = &Star{Table: j.Star.Table}
	}
	if j.Literal != nil {
		count++
		out = Lit(j.Literal.Value)
	}
	if j.Binary != nil {
		count++
		out, err = decodeBinary(j.Binary)
	}
	if j.Unary != nil {
		count++
		out, err = decodeUnary(j.Unary)
	}
	if j.In != nil {
		count++
		out, err = decodeIn(j.In)
	}
	if j.Between != nil {
		count++
		out, err = decodeBetween(j.Between)
	}
	if j.IsNull != nil {
		count++
		var inner Expr
		if inner, err = decodeRequired(j.IsNull.Expr, "is_null.expr"); err == nil {
			out = &IsNullExpr{Expr: inner, Not: j.IsNull.Not}
		}
	}
	if j.Func != nil {
		count++
		out, err = decodeFunc(j.Func)
	}
	if j.Positional != nil {
		count++
		out = &PositionalRef{Table: j.Positional.Table, Index: j.Positional.Index, Name: j.Positional.Name}
	}
	if err != nil {
		return nil, err
	}
	if count != 1 {
		return nil, ferrors.InvalidValue("expression", fmt.Sprintf("expected exactly one variant, found %d", count))
	}
	return out, nil
}

func decodeRequired(j *exprJSON, field string) (Expr, error) {
	if j == nil {
		return nil, ferrors.MissingRequired(field)
	}
	return decodeExpr(j)
}

func decodeList(list []*exprJSON, field string) ([]Expr, error) {
	out := make([]Expr, 0, len(list))
	for _, j := range list {
		e, err := decodeRequired(j, field)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeBinary(j *binaryJSON) (Expr, error) {
	op, err := parseOperator(j.Op)
	if err != nil {
		return nil, err
	}
	left, err := decodeRequired(j.Left, "binary.left")
	if err != nil {
		return nil, err
	}
	right, err := decodeRequired(j.Right, "binary.right")
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func decodeUnary(j *unaryJSON) (Expr, error) {
	var op Operator
	switch strings.ToUpper(strings.TrimSpace(j.Op)) {
	case "NOT":
		op = OpNot
	case "-":
		op = OpNeg
	default:
		return nil, ferrors.InvalidValue("unary.op", fmt.Sprintf("unknown operator %q", j.Op))
	}
	operand, err := decodeRequired(j.Operand, "unary.operand")
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{Op: op, Operand: operand}, nil
}

func decodeIn(j *inJSON) (Expr, error) {
	e, err := decodeRequired(j.Expr, "in.expr")
	if err != nil {
		return nil, err
	}
	if len(j.List) == 0 {
		return nil, ferrors.MissingRequired("in.list")
	}
	list, err := decodeList(j.List, "in.list")
	if err != nil {
		return nil, err
	}
	return &InExpr{Expr: e, List: list, Not: j.Not}, nil
}

func decodeBetween(j *betweenJSON) (Expr, error) {
	e, err := decodeRequired(j.Expr, "between.expr")
	if err != nil {
		return nil, err
	}
	low, err := decodeRequired(j.Low, "between.low")
	if err != nil {
		return nil, err
	}
	high, err := decodeRequired(j.High, "between.high")
	if err != nil {
		return nil, err
	}
	return &BetweenExpr{Expr: e, Low: low, High: high, Not: j.Not}, nil
}

func decodeFunc(j *funcJSON) (Expr, error) {
	if j.Name == "" {
		return nil, ferrors.MissingRequired("func.name")
	}
	args, err := decodeList(j.Args, "func.args")
	if err != nil {
		return nil, err
	}
	return &FuncCall{Name: strings.ToUpper(j.Name), Args: args, Distinct: j.Distinct}, nil
}

func encodeTable(t *TableRef) *tableJSON {
	return &tableJSON{Schema: t.Schema, Table: t.Table, Alias: t.Alias}
}

func decodeTable(j *tableJSON, field string) (*TableRef, error) {
	if j == nil || j.Table == "" {
		return nil, ferrors.MissingRequired(field)
	}
	return &TableRef{Schema: j.Schema, Table: j.Table, Alias: j.Alias}, nil
}

// MarshalJSON encodes the statement in the tagged JSON format.
func (s *Select) MarshalJSON() ([]byte, error) {
	out := &selectJSON{
		Distinct: s.Distinct,
		Where:    encodeExpr(s.Where),
		GroupBy:  encodeList(s.GroupBy),
		Having:   encodeExpr(s.Having),
		Limit:    s.Limit,
		Offset:   s.Offset,
	}
	for _, item := range s.Columns {
		out.Columns = append(out.Columns, &itemJSON{Expr: encodeExpr(item.Expr), Alias: item.Alias})
	}
	for _, t := range s.From {
		out.From = append(out.From, encodeTable(t))
	}
	for _, j := range s.Joins {
		out.Joins = append(out.Joins, &joinJSON{Mode: string(j.Mode), Table: encodeTable(j.Table), On: encodeExpr(j.On)})
	}
	for _, o := range s.OrderBy {
		out.OrderBy = append(out.OrderBy, &orderJSON{Expr: encodeExpr(o.Expr), Desc: o.Desc})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a statement from the tagged JSON format.
func (s *Select) UnmarshalJSON(data []byte) error {
	var in selectJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return ferrors.InvalidValue("statement", err.Error())
	}
	decoded, err := fromJSON(&in)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

func fromJSON(in *selectJSON) (*Select, error) {
	s := &Select{Distinct: in.Distinct, Limit: in.Limit, Offset: in.Offset}
	var err error

	if len(in.Columns) == 0 {
		return nil, ferrors.MissingRequired("columns")
	}
	for _, item := range in.Columns {
		if item == nil {
			return nil, ferrors.MissingRequired("columns[].expr")
		}
		e, err := decodeRequired(item.Expr, "columns[].expr")
		if err != nil {
			return nil, err
		}
		s.Columns = append(s.Columns, &SelectItem{Expr: e, Alias: item.Alias})
	}
	for _, t := range in.From {
		ref, err := decodeTable(t, "from[].table")
		if err != nil {
			return nil, err
		}
		s.From = append(s.From, ref)
	}
	for _, j := range in.Joins {
		if j == nil {
			return nil, ferrors.MissingRequired("joins[]")
		}
		ref, err := decodeTable(j.Table, "joins[].table")
		if err != nil {
			return nil, err
		}
		mode := JoinMode(strings.ToUpper(j.Mode))
		switch mode {
		case "":
			mode = JoinInner
		case JoinInner, JoinLeft, JoinRight, JoinFull, JoinCross:
		default:
			return nil, ferrors.InvalidValue("joins[].mode", fmt.Sprintf("unknown join mode %q", j.Mode))
		}
		on, err := decodeExpr(j.On)
		if err != nil {
			return nil, err
		}
		s.Joins = append(s.Joins, &Join{Mode: mode, Table: ref, On: on})
	}
	if s.Where, err = decodeExpr(in.Where); err != nil {
		return nil, err
	}
	if s.GroupBy, err = decodeList(in.GroupBy, "group_by[]"); err != nil {
		return nil, err
	}
	if len(s.GroupBy) == 0 {
		s.GroupBy = nil
	}
	if s.Having, err = decodeExpr(in.Having); err != nil {
		return nil, err
	}
	for _, o := range in.OrderBy {
		if o == nil {
			return nil, ferrors.MissingRequired("order_by[].expr")
		}
		e, err := decodeRequired(o.Expr, "order_by[].expr")
		if err != nil {
			return nil, err
		}
		s.OrderBy = append(s.OrderBy, &OrderItem{Expr: e, Desc: o.Desc})
	}
	if s.Limit != nil && *s.Limit < 0 {
		return nil, ferrors.InvalidValue("limit", "must be >= 0")
	}
	if s.Offset != nil && *s.Offset < 0 {
		return nil, ferrors.InvalidValue("offset", "must be >= 0")
	}
	return s, nil
}

// DecodeSelect decodes one statement from JSON.
func DecodeSelect(data []byte) (*Select, error) {
	s := &Select{}
	if err := json.Unmarshal(data, s); err != nil {
		var fe *ferrors.Error
		if ferrors.As(err, &fe) {
			return nil, fe
		}
		return nil, ferrors.InvalidValue("statement", err.Error())
	}
	return s, nil
}

// EncodeResult encodes a result as {"columns": [...], "rows": [{...}]}.
func EncodeResult(r *Result) ([]byte, error) {
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{Columns: r.Columns, Rows: rows})
}
