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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

func dogs() *sql.Relation {
	return &sql.Relation{
		Columns: []string{"id", "name", "breed", "age", "owner_id"},
		Rows: [][]interface{}{
			{1.0, "Rex", "Mutt", 5.0, 1.0},
			{2.0, "Fido", "Beagle", 3.0, 2.0},
			{3.0, "Ace", nil, 7.0, 1.0},
			{4.0, "Bo", "Pug", 2.0, nil},
		},
	}
}

func owners() *sql.Relation {
	return &sql.Relation{
		Columns: []string{"id", "name"},
		Rows: [][]interface{}{
			{1.0, "Ann"},
			{2.0, "Bob"},
			{3.0, "Cid"},
		},
	}
}

func param(n int, alias string) *sql.TableRef {
	return &sql.TableRef{Param: n, Alias: alias}
}

func col(t, c string) *sql.ColumnRef { return sql.Col(t, c) }

func run(t *testing.T, e *Engine, stmt *sql.Select, inputs ...*sql.Relation) *sql.Result {
	t.Helper()
	res, err := e.Execute(context.Background(), stmt, inputs)
	require.NoError(t, err, stmt.String())
	return res
}

func TestFilterAndOrder(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(col("d", "name"), "")},
		From:    []*sql.TableRef{param(1, "d")},
		Where:   sql.Gt(col("d", "age"), sql.Lit(3)),
		OrderBy: []*sql.OrderItem{{Expr: col("d", "name")}},
	}
	res := run(t, New(), stmt, dogs())
	require.Equal(t, []string{"name"}, res.Columns)
	require.Equal(t, [][]interface{}{{"Ace"}, {"Rex"}}, res.Values())
}

func TestLeftJoinExtendsWithNull(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(col("d", "name"), ""),
			sql.Item(col("o", "name"), "owner"),
		},
		From: []*sql.TableRef{param(1, "d")},
		Joins: []*sql.Join{{
			Mode:  sql.JoinLeft,
			Table: param(2, "o"),
			On:    sql.Eq(col("d", "owner_id"), col("o", "id")),
		}},
		OrderBy: []*sql.OrderItem{{Expr: col("d", "id")}},
	}
	res := run(t, New(), stmt, dogs(), owners())
	require.Equal(t, [][]interface{}{
		{"Rex", "Ann"},
		{"Fido", "Bob"},
		{"Ace", "Ann"},
		{"Bo", nil},
	}, res.Values())
}

func TestRightAndFullJoin(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(col("o", "name"), ""),
			sql.Item(col("d", "name"), ""),
		},
		From: []*sql.TableRef{param(1, "d")},
		Joins: []*sql.Join{{
			Mode:  sql.JoinRight,
			Table: param(2, "o"),
			On:    sql.Eq(col("o", "id"), col("d", "owner_id")),
		}},
		OrderBy: []*sql.OrderItem{{Expr: col("o", "name")}, {Expr: col("d", "name")}},
	}
	res := run(t, New(), stmt, dogs(), owners())
	require.Equal(t, []string{"name", "name_2"}, res.Columns)
	require.Equal(t, [][]interface{}{
		{"Ann", "Ace"},
		{"Ann", "Rex"},
		{"Bob", "Fido"},
		{"Cid", nil},
	}, res.Values())

	stmt.Joins[0].Mode = sql.JoinFull
	res = run(t, New(), stmt, dogs(), owners())
	require.Equal(t, 5, res.Len())
	assert.Contains(t, res.Values(), []interface{}{nil, "Bo"})
	assert.Contains(t, res.Values(), []interface{}{"Cid", nil})
}

func TestJoinWithoutEquality(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(col("d", "name"), ""), sql.Item(col("o", "name"), "owner")},
		From:    []*sql.TableRef{param(1, "d")},
		Joins: []*sql.Join{{
			Table: param(2, "o"),
			On:    sql.Lt(col("o", "id"), col("d", "owner_id")),
		}},
	}
	res := run(t, New(), stmt, dogs(), owners())
	require.Equal(t, [][]interface{}{{"Fido", "Ann"}}, res.Values())

	stmt.Joins[0] = &sql.Join{Mode: sql.JoinCross, Table: param(2, "o")}
	res = run(t, New(), stmt, dogs(), owners())
	require.Equal(t, 12, res.Len())
}

func TestGroupByAggregates(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(col("d", "owner_id"), ""),
			sql.Item(sql.Count(), "n"),
			sql.Item(sql.Func("sum", col("d", "age")), "total"),
		},
		From:    []*sql.TableRef{param(1, "d")},
		GroupBy: []sql.Expr{col("d", "owner_id")},
		OrderBy: []*sql.OrderItem{{Expr: col("", "n"), Desc: true}, {Expr: col("d", "owner_id")}},
	}
	res := run(t, New(), stmt, dogs())
	require.Equal(t, [][]interface{}{
		{1.0, 2.0, 12.0},
		{nil, 1.0, 2.0},
		{2.0, 1.0, 3.0},
	}, res.Values())

	stmt.Having = sql.Gt(sql.Count(), sql.Lit(1))
	res = run(t, New(), stmt, dogs())
	require.Equal(t, [][]interface{}{{1.0, 2.0, 12.0}}, res.Values())
}

func TestAggregateFunctions(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(sql.Func("avg", col("d", "age")), "avg"),
			sql.Item(sql.Func("min", col("d", "name")), "min"),
			sql.Item(sql.Func("max", col("d", "name")), "max"),
			sql.Item(&sql.FuncCall{Name: "COUNT", Args: []sql.Expr{col("d", "owner_id")}, Distinct: true}, "owners"),
			sql.Item(sql.Func("count", col("d", "breed")), "breeds"),
		},
		From: []*sql.TableRef{param(1, "d")},
	}
	res := run(t, New(), stmt, dogs())
	require.Equal(t, [][]interface{}{{4.25, "Ace", "Rex", 2.0, 3.0}}, res.Values())
}

func TestAggregateOverNoRows(t *testing.T) {
	empty := &sql.Relation{Columns: dogs().Columns}
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(sql.Count(), "n"),
			sql.Item(sql.Func("sum", col("d", "age")), "total"),
		},
		From: []*sql.TableRef{param(1, "d")},
	}
	res := run(t, New(), stmt, empty)
	require.Equal(t, [][]interface{}{{0.0, nil}}, res.Values())

	stmt.GroupBy = []sql.Expr{col("d", "owner_id")}
	res = run(t, New(), stmt, empty)
	require.Equal(t, 0, res.Len())
}

func TestThreeValuedLogic(t *testing.T) {
	names := func(where sql.Expr) [][]interface{} {
		stmt := &sql.Select{
			Columns: []*sql.SelectItem{sql.Item(col("d", "name"), "")},
			From:    []*sql.TableRef{param(1, "d")},
			Where:   where,
			OrderBy: []*sql.OrderItem{{Expr: col("d", "id")}},
		}
		return run(t, New(), stmt, dogs()).Values()
	}

	fidoBo := [][]interface{}{{"Fido"}, {"Bo"}}
	assert.Equal(t, fidoBo, names(sql.Ne(col("d", "breed"), sql.Lit("Mutt"))))
	assert.Equal(t, fidoBo, names(sql.Not(sql.Eq(col("d", "breed"), sql.Lit("Mutt")))))
	assert.Empty(t, names(&sql.InExpr{Expr: col("d", "breed"), List: []sql.Expr{sql.Lit("Mutt"), sql.Null()}, Not: true}))
	assert.Equal(t, [][]interface{}{{"Ace"}}, names(sql.IsNull(col("d", "breed"))))
	assert.Equal(t, [][]interface{}{{"Rex"}, {"Ace"}},
		names(sql.Or(sql.Eq(col("d", "breed"), sql.Lit("Mutt")), sql.Gt(col("d", "age"), sql.Lit(6)))))
	assert.Equal(t, [][]interface{}{{"Rex"}, {"Fido"}},
		names(sql.Between(col("d", "age"), sql.Lit(3), sql.Lit(5))))
}

func TestCrossKindComparisons(t *testing.T) {
	count := func(where sql.Expr) float64 {
		stmt := &sql.Select{
			Columns: []*sql.SelectItem{sql.Item(sql.Count(), "n")},
			From:    []*sql.TableRef{param(1, "d")},
			Where:   where,
		}
		return run(t, New(), stmt, dogs()).Values()[0][0].(float64)
	}
	assert.Equal(t, 0.0, count(sql.Eq(col("d", "age"), sql.Lit("5"))))
	assert.Equal(t, 4.0, count(sql.Ne(col("d", "age"), sql.Lit("5"))))
	assert.Equal(t, 0.0, count(sql.Lt(col("d", "name"), sql.Lit(5))))
	assert.Equal(t, 1.0, count(sql.Bin(sql.OpLike, col("d", "name"), sql.Lit("r%"))))
	assert.Equal(t, 3.0, count(sql.Bin(sql.OpNotLike, col("d", "name"), sql.Lit("_e%"))))
}

func TestStarExpansion(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(&sql.Star{}, "")},
		From:    []*sql.TableRef{param(1, "d")},
		Joins: []*sql.Join{{
			Table: param(2, "o"),
			On:    sql.Eq(col("d", "owner_id"), col("o", "id")),
		}},
		Where: sql.Eq(col("d", "id"), sql.Lit(1)),
	}
	res := run(t, New(), stmt, dogs(), owners())
	require.Equal(t, []string{"id", "name", "breed", "age", "owner_id", "id_2", "name_2"}, res.Columns)
	require.Equal(t, [][]interface{}{{1.0, "Rex", "Mutt", 5.0, 1.0, 1.0, "Ann"}}, res.Values())

	stmt.Columns = []*sql.SelectItem{sql.Item(&sql.Star{Table: "o"}, "")}
	res = run(t, New(), stmt, dogs(), owners())
	require.Equal(t, []string{"id", "name"}, res.Columns)
}

func TestPagination(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(col("d", "name"), "")},
		From:    []*sql.TableRef{param(1, "d")},
		OrderBy: []*sql.OrderItem{{Expr: col("d", "id")}},
		Limit:   sql.Int64(2),
		Offset:  sql.Int64(1),
	}
	res := run(t, New(), stmt, dogs())
	require.Equal(t, [][]interface{}{{"Fido"}, {"Ace"}}, res.Values())

	stmt.Offset = sql.Int64(10)
	require.Equal(t, 0, run(t, New(), stmt, dogs()).Len())

	stmt.Limit, stmt.Offset = nil, nil
	stmt.OrderBy = []*sql.OrderItem{{Expr: sql.Lit(1), Desc: true}}
	res = run(t, New(), stmt, dogs())
	require.Equal(t, [][]interface{}{{"Rex"}, {"Fido"}, {"Bo"}, {"Ace"}}, res.Values())
}

func TestDistinctFollowsCollator(t *testing.T) {
	rel := &sql.Relation{
		Columns: []string{"name"},
		Rows:    [][]interface{}{{"rex"}, {"REX"}, {"Fido"}},
	}
	stmt := &sql.Select{
		Distinct: true,
		Columns:  []*sql.SelectItem{sql.Item(col("", "name"), "")},
		From:     []*sql.TableRef{param(1, "n")},
	}
	require.Equal(t, 3, run(t, New(), stmt, rel).Len())
	require.Equal(t, 2, run(t, New(WithCollator(sql.NocaseCollator{})), stmt, rel).Len())
}

func TestNoFrom(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(sql.Bin(sql.OpAdd, sql.Lit(1), sql.Lit(1)), "two"),
			sql.Item(sql.Bin(sql.OpDiv, sql.Lit(7), sql.Lit(0)), "z"),
			sql.Item(sql.Bin(sql.OpConcat, sql.Func("upper", sql.Lit("a")), sql.Lit("b")), "s"),
		},
	}
	res := run(t, New(), stmt)
	require.Equal(t, [][]interface{}{{2.0, nil, "Ab"}}, res.Values())
}

func TestScalarFunctions(t *testing.T) {
	tests := []struct {
		expr sql.Expr
		want interface{}
	}{
		{sql.Func("coalesce", sql.Null(), sql.Lit("x")), "x"},
		{sql.Func("ifnull", sql.Lit(1), sql.Lit(2)), 1.0},
		{sql.Func("nullif", sql.Lit(1), sql.Lit(1)), nil},
		{sql.Func("nullif", sql.Lit(1), sql.Lit(2)), 1.0},
		{sql.Func("round", sql.Lit(2.456), sql.Lit(2)), 2.46},
		{sql.Func("substr", sql.Lit("hello"), sql.Lit(2), sql.Lit(3)), "ell"},
		{sql.Func("substring", sql.Lit("hello"), sql.Lit(4)), "lo"},
		{sql.Func("length", sql.Lit("héllo")), 5.0},
		{sql.Func("concat", sql.Lit("a"), sql.Null()), nil},
		{sql.Func("concat", sql.Lit("a"), sql.Lit(1)), "a1"},
		{sql.Func("abs", sql.Lit(-3)), 3.0},
		{sql.Func("trim", sql.Lit("  x ")), "x"},
		{sql.Func("lower", sql.Null()), nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr.String(), func(t *testing.T) {
			stmt := &sql.Select{Columns: []*sql.SelectItem{sql.Item(tt.expr, "v")}}
			res := run(t, New(), stmt)
			assert.Equal(t, tt.want, res.Values()[0][0])
		})
	}
}

func TestPositionalRefs(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(&sql.PositionalRef{Table: "d", Index: 1, Name: "name"}, "")},
		From:    []*sql.TableRef{param(1, "d")},
		Where:   sql.Ge(&sql.PositionalRef{Table: "d", Index: 3}, sql.Lit(5)),
		OrderBy: []*sql.OrderItem{{Expr: &sql.PositionalRef{Table: "d", Index: 0}}},
	}
	res := run(t, New(), stmt, dogs())
	require.Equal(t, []string{"name"}, res.Columns)
	require.Equal(t, [][]interface{}{{"Rex"}, {"Ace"}}, res.Values())
}

func TestExecuteErrors(t *testing.T) {
	ctx := context.Background()
	e := New()

	_, err := e.Execute(ctx, nil, nil)
	require.True(t, ferrors.IsValidationError(err))

	stmt := &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(sql.Func("frobnicate", col("d", "name")), "")},
		From:    []*sql.TableRef{param(1, "d")},
	}
	_, err = e.Execute(ctx, stmt, []*sql.Relation{dogs()})
	require.Equal(t, ferrors.ErrCodeUnknownFunction, ferrors.GetCode(err))

	stmt.From = []*sql.TableRef{param(3, "d")}
	_, err = e.Execute(ctx, stmt, []*sql.Relation{dogs()})
	require.Equal(t, ferrors.ErrCodeTableNotFound, ferrors.GetCode(err))

	stmt = &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(col("", "name"), "")},
		From:    []*sql.TableRef{param(1, "d")},
		Joins:   []*sql.Join{{Mode: sql.JoinCross, Table: param(2, "o")}},
	}
	_, err = e.Execute(ctx, stmt, []*sql.Relation{dogs(), owners()})
	require.True(t, ferrors.IsExecutionError(err))

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	stmt.Columns = []*sql.SelectItem{sql.Item(col("d", "name"), "")}
	_, err = e.Execute(ctx, stmt, []*sql.Relation{dogs(), owners()})
	require.ErrorIs(t, err, context.Canceled)
}
