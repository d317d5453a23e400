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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

var (
	dogTable   = TableDescriptor{Schema: "dev", Table: "dog", Alias: "dog"}
	ownerTable = TableDescriptor{Schema: "dev", Table: "owner", Alias: "o"}
)

func dogAttr(name string) AttributeDescriptor {
	return AttributeDescriptor{Table: dogTable, Attribute: name}
}

func testCatalog() []AttributeDescriptor {
	var catalog []AttributeDescriptor
	for _, a := range []string{"id", "name", "breed", "age", "owner_id"} {
		catalog = append(catalog, AttributeDescriptor{Table: TableDescriptor{Schema: "dev", Table: "dog"}, Attribute: a})
	}
	for _, a := range []string{"id", "name", "city"} {
		catalog = append(catalog, AttributeDescriptor{Table: ownerTable, Attribute: a})
	}
	return catalog
}

func dogSelect(where sql.Expr) *sql.Select {
	return &sql.Select{
		Columns: []*sql.SelectItem{sql.Item(&sql.Star{}, "")},
		From:    []*sql.TableRef{sql.Table("dev", "dog", "")},
		Where:   where,
	}
}

func classify(where sql.Expr) *Classification {
	stmt := dogSelect(where)
	return Classify(where, NewResolver(stmt, testCatalog()).Resolve)
}

func TestClassify(t *testing.T) {
	name, age, breed, owner := sql.Col("", "name"), sql.Col("", "age"), sql.Col("", "breed"), sql.Col("", "owner_id")

	t.Run("exact and range", func(t *testing.T) {
		c := classify(sql.And(sql.Eq(name, sql.Lit("Rex")), sql.Gt(age, sql.Lit(3))))
		values, ok := c.ExactValues(dogAttr("name"))
		require.True(t, ok)
		assert.Equal(t, []interface{}{"Rex"}, values)
		comps, ok := c.Comparators(dogAttr("age"))
		require.True(t, ok)
		assert.Equal(t, []Comparator{{Op: sql.OpGt, Value: 3.0}}, comps)
	})

	t.Run("literal on the left flips", func(t *testing.T) {
		c := classify(sql.Lt(sql.Lit(5), age))
		comps, ok := c.Comparators(dogAttr("age"))
		require.True(t, ok)
		assert.Equal(t, []Comparator{{Op: sql.OpGt, Value: 5.0}}, comps)
	})

	t.Run("in and equality merge without duplicates", func(t *testing.T) {
		c := classify(sql.And(sql.In(name, "a", "b"), sql.Eq(name, sql.Lit("a"))))
		values, ok := c.ExactValues(dogAttr("name"))
		require.True(t, ok)
		assert.Equal(t, []interface{}{"a", "b"}, values)
	})

	t.Run("between", func(t *testing.T) {
		c := classify(sql.Between(age, sql.Lit(2), sql.Lit(4)))
		comps, ok := c.Comparators(dogAttr("age"))
		require.True(t, ok)
		assert.Equal(t, []Comparator{{Op: sql.OpBetween, Value: 2.0, Upper: 4.0}}, comps)
	})

	t.Run("column to column equality", func(t *testing.T) {
		c := classify(sql.Eq(name, breed))
		_, ok := c.ExactValues(dogAttr("name"))
		assert.False(t, ok)
		_, ok = c.ExactValues(dogAttr("breed"))
		assert.False(t, ok)
	})

	t.Run("column to column range", func(t *testing.T) {
		c := classify(sql.And(sql.Gt(age, owner), sql.Ge(age, sql.Lit(1))))
		_, ok := c.Comparators(dogAttr("age"))
		assert.False(t, ok)
		_, ok = c.Comparators(dogAttr("owner_id"))
		assert.False(t, ok)
	})

	t.Run("ignore does not depend on order", func(t *testing.T) {
		like := sql.Bin(sql.OpLike, name, sql.Lit("R%"))
		eq := sql.Eq(name, sql.Lit("Rex"))
		for _, where := range []sql.Expr{sql.And(like, eq), sql.And(eq, like)} {
			c := classify(where)
			_, ok := c.ExactValues(dogAttr("name"))
			assert.False(t, ok, where.String())
			assert.True(t, c.Exact[dogAttr("name")].Ignored)
			assert.Empty(t, c.Exact[dogAttr("name")].Values)
		}
	})

	t.Run("negations are not optimized", func(t *testing.T) {
		c := classify(sql.And(sql.Not(sql.Eq(age, sql.Lit(3))), &sql.BetweenExpr{Expr: owner, Low: sql.Lit(1), High: sql.Lit(2), Not: true}))
		_, ok := c.ExactValues(dogAttr("age"))
		assert.False(t, ok)
		_, ok = c.Comparators(dogAttr("owner_id"))
		assert.False(t, ok)
	})

	t.Run("exact wins over range at fetch time", func(t *testing.T) {
		c := classify(sql.And(sql.Eq(age, sql.Lit(5)), sql.Gt(age, sql.Lit(3))))
		_, exact := c.ExactValues(dogAttr("age"))
		_, ranged := c.Comparators(dogAttr("age"))
		assert.True(t, exact)
		assert.True(t, ranged)
	})
}

func TestOrDisablesClassification(t *testing.T) {
	name, age := sql.Col("", "name"), sql.Col("", "age")
	where := sql.And(sql.Eq(name, sql.Lit("Rex")), sql.Or(sql.Eq(age, sql.Lit(3)), sql.Gt(age, sql.Lit(6))))

	c := classify(where)
	assert.Empty(t, c.Exact)
	assert.Empty(t, c.Ranges)
	assert.True(t, ContainsOr(where))
	assert.False(t, ContainsOr(sql.Eq(name, sql.Lit("Rex"))))
}

func TestCollectColumns(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(sql.Col("d", "name"), "dog"),
			sql.Item(sql.Func("UPPER", sql.Col("o", "name")), "owner"),
			sql.Item(&sql.Star{Table: "o"}, ""),
		},
		From: []*sql.TableRef{sql.Table("dev", "dog", "d")},
		Joins: []*sql.Join{{
			Mode:  sql.JoinLeft,
			Table: sql.Table("dev", "owner", "o"),
			On:    sql.Eq(sql.Col("d", "owner_id"), sql.Col("o", "id")),
		}},
		Where:   sql.Gt(sql.Col("d", "age"), sql.Lit(2)),
		GroupBy: []sql.Expr{sql.Lit(1)},
		OrderBy: []*sql.OrderItem{{Expr: sql.Col("", "owner"), Desc: true}},
	}

	cs := CollectColumns(stmt)
	assert.Equal(t, []*sql.ColumnRef{sql.Col("d", "name"), sql.Col("o", "name")}, cs.Select)
	assert.Equal(t, []*sql.ColumnRef{sql.Col("d", "owner_id"), sql.Col("o", "id")}, cs.Bucket(ClauseJoin))
	assert.Equal(t, []*sql.ColumnRef{sql.Col("d", "age")}, cs.Where)
	assert.Equal(t, []*sql.ColumnRef{sql.Col("d", "name")}, cs.GroupBy)
	assert.Equal(t, []*sql.ColumnRef{sql.Col("", "owner"), sql.Col("o", "name")}, cs.OrderBy)
	assert.Equal(t, []*sql.Star{{Table: "o"}}, cs.Stars)
	assert.Len(t, cs.All(), 8)
}

func TestResolver(t *testing.T) {
	stmt := &sql.Select{
		Columns: []*sql.SelectItem{
			sql.Item(sql.Col("", "breed"), "kind"),
			sql.Item(sql.Func("UPPER", sql.Col("dog", "name")), "loud"),
		},
		From:  []*sql.TableRef{sql.Table("dev", "dog", "")},
		Joins: []*sql.Join{{Table: sql.Table("dev", "owner", "o"), On: sql.Eq(sql.Col("dog", "owner_id"), sql.Col("o", "id"))}},
	}
	r := NewResolver(stmt, testCatalog())

	tests := []struct {
		ref  *sql.ColumnRef
		want AttributeDescriptor
		ok   bool
	}{
		{sql.Col("o", "city"), AttributeDescriptor{Table: ownerTable, Attribute: "city"}, true},
		{sql.Col("", "city"), AttributeDescriptor{Table: ownerTable, Attribute: "city"}, true},
		{sql.Col("dog", "age"), dogAttr("age"), true},
		{sql.Col("", "kind"), dogAttr("breed"), true},
		{sql.Col("", "loud"), AttributeDescriptor{}, false},
		{sql.Col("o", "age"), AttributeDescriptor{}, false},
	}
	for _, tt := range tests {
		got, ok := r.Resolve(tt.ref)
		assert.Equal(t, tt.ok, ok, tt.ref.String())
		assert.Equal(t, tt.want, got, tt.ref.String())
	}

	assert.True(t, r.IsAlias(sql.Col("", "loud")))
	assert.False(t, r.IsAlias(sql.Col("dog", "loud")))
}

func TestResolverValidate(t *testing.T) {
	base := func() *sql.Select {
		return &sql.Select{
			Columns: []*sql.SelectItem{sql.Item(sql.Func("UPPER", sql.Col("dog", "name")), "loud")},
			From:    []*sql.TableRef{sql.Table("dev", "dog", "")},
			Joins:   []*sql.Join{{Table: sql.Table("dev", "owner", "o"), On: sql.Eq(sql.Col("dog", "owner_id"), sql.Col("o", "id"))}},
		}
	}
	validate := func(stmt *sql.Select) error {
		return NewResolver(stmt, testCatalog()).Validate(CollectColumns(stmt))
	}

	require.NoError(t, validate(base()))

	stmt := base()
	stmt.Where = sql.Eq(sql.Col("", "name"), sql.Lit("Rex"))
	err := validate(stmt)
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeAmbiguousColumn, ferrors.GetCode(err))

	stmt = base()
	stmt.Where = sql.Eq(sql.Col("", "colour"), sql.Lit("red"))
	err = validate(stmt)
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeColumnNotFound, ferrors.GetCode(err))

	stmt = base()
	stmt.OrderBy = []*sql.OrderItem{{Expr: sql.Col("", "loud")}}
	require.NoError(t, validate(stmt))

	stmt = base()
	stmt.Where = sql.Eq(sql.Col("", "loud"), sql.Lit("REX"))
	assert.True(t, ferrors.IsValidationError(validate(stmt)))

	stmt = base()
	stmt.Columns = append(stmt.Columns, sql.Item(&sql.Star{Table: "cat"}, ""))
	assert.True(t, ferrors.IsValidationError(validate(stmt)))
}
