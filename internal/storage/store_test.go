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

package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

func newDogStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	require.NoError(t, s.CreateTable("dev", "dog", "id"))
	for _, rec := range []map[string]interface{}{
		{"id": 1, "name": "Rex", "breed": "Mutt", "age": 5},
		{"id": 2, "name": "Fido", "breed": "Beagle", "age": 3},
		{"id": 3, "name": "Ace", "age": 7},
		{"id": 4, "name": "rex", "breed": "Pug", "age": "old"},
	} {
		require.NoError(t, s.Put("dev", "dog", rec))
	}
	return s
}

func hashes(m map[interface{}]interface{}) []float64 {
	out := make([]float64, 0, len(m))
	for h := range m {
		out = append(out, h.(float64))
	}
	sort.Float64s(out)
	return out
}

func TestFetchByValue(t *testing.T) {
	ctx := context.Background()
	s := newDogStore(t)
	require.NoError(t, s.Put("dev", "dog", map[string]interface{}{"id": 5, "name": "*"}))

	tests := []struct {
		name string
		q    ValueQuery
		want []float64
	}{
		{"wildcard", All("breed"), []float64{1, 2, 4}},
		{"equal", ValueQuery{Attribute: "name", Op: sql.OpEq, Value: "Rex"}, []float64{1}},
		{"not equal", ValueQuery{Attribute: "name", Op: sql.OpNe, Value: "Rex"}, []float64{2, 3, 4, 5}},
		{"not equal other kind", ValueQuery{Attribute: "age", Op: sql.OpNe, Value: 5}, []float64{2, 3, 4}},
		{"less", ValueQuery{Attribute: "age", Op: sql.OpLt, Value: 5}, []float64{2}},
		{"less or equal", ValueQuery{Attribute: "age", Op: sql.OpLe, Value: 5}, []float64{1, 2}},
		{"greater", ValueQuery{Attribute: "age", Op: sql.OpGt, Value: 3}, []float64{1, 3}},
		{"greater or equal", ValueQuery{Attribute: "age", Op: sql.OpGe, Value: 3}, []float64{1, 2, 3}},
		{"between", ValueQuery{Attribute: "age", Op: sql.OpBetween, Value: 4, Upper: 7}, []float64{1, 3}},
		{"string range", ValueQuery{Attribute: "name", Op: sql.OpGe, Value: "R"}, []float64{1, 4}},
		{"null never matches", ValueQuery{Attribute: "breed", Op: sql.OpEq, Value: nil}, []float64{}},
		{"unknown attribute", All("color"), []float64{}},
		{"hash attribute", ValueQuery{Attribute: "id", Op: sql.OpLe, Value: 2}, []float64{1, 2}},
		{"star is a plain value", ValueQuery{Attribute: "name", Op: sql.OpEq, Value: "*"}, []float64{5}},
		{"wildcard ignores bounds", ValueQuery{Attribute: "age", Op: sql.OpLt, Value: 0, All: true}, []float64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FetchByValue(ctx, "dev", "dog", tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hashes(got))
		})
	}
}

func TestFetchByValueFollowsCollator(t *testing.T) {
	ctx := context.Background()
	s := newDogStore(t, WithCollator(sql.NocaseCollator{}))

	got, err := s.FetchByValue(ctx, "dev", "dog", ValueQuery{Attribute: "name", Op: sql.OpEq, Value: "REX"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4}, hashes(got))
	assert.Equal(t, "rex", got[4.0])

	got, err = s.FetchByValue(ctx, "dev", "dog", ValueQuery{Attribute: "name", Op: sql.OpLt, Value: "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, hashes(got))
}

func TestFetchByHash(t *testing.T) {
	ctx := context.Background()
	s := newDogStore(t)

	got, err := s.FetchByHash(ctx, "dev", "dog", []interface{}{1, 3.0, 99}, []string{"name", "breed"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, map[string]interface{}{"name": "Rex", "breed": "Mutt"}, got[1.0])
	assert.Equal(t, map[string]interface{}{"name": "Ace"}, got[3.0])
}

func TestPutReplacesRecord(t *testing.T) {
	ctx := context.Background()
	s := newDogStore(t)

	require.NoError(t, s.Put("dev", "dog", map[string]interface{}{"id": 1, "name": "Max"}))

	got, err := s.FetchByValue(ctx, "dev", "dog", ValueQuery{Attribute: "name", Op: sql.OpEq, Value: "Rex"})
	require.NoError(t, err)
	assert.Empty(t, got)

	rec, err := s.FetchByHash(ctx, "dev", "dog", []interface{}{1}, []string{"name", "breed"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Max"}, rec[1.0])

	existed, err := s.Delete("dev", "dog", 1)
	require.NoError(t, err)
	assert.True(t, existed)
	rec, err = s.FetchByHash(ctx, "dev", "dog", []interface{}{1}, []string{"name"})
	require.NoError(t, err)
	assert.Empty(t, rec)
}

func TestSchemaErrors(t *testing.T) {
	ctx := context.Background()
	s := newDogStore(t)

	_, err := s.HashAttribute(ctx, "dev", "cat")
	require.Equal(t, ferrors.ErrCodeSchemaMissing, ferrors.GetCode(err))

	err = s.Put("dev", "dog", map[string]interface{}{"name": "NoHash"})
	require.Equal(t, ferrors.ErrCodeMissingHash, ferrors.GetCode(err))

	err = s.CreateTable("dev", "dog", "name")
	require.True(t, ferrors.IsStorageError(err))
	require.NoError(t, s.CreateTable("dev", "dog", "id"))

	_, err = s.FetchByValue(ctx, "dev", "dog", ValueQuery{Attribute: "name", Op: sql.OpLike, Value: "R%"})
	require.True(t, ferrors.IsValidationError(err))
}

func TestAttributesAndTables(t *testing.T) {
	ctx := context.Background()
	s := newDogStore(t)

	hash, err := s.HashAttribute(ctx, "dev", "dog")
	require.NoError(t, err)
	require.Equal(t, "id", hash)

	attrs, err := s.Attributes(ctx, "dev", "dog")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "age", "breed", "name"}, attrs)

	require.NoError(t, s.CreateTable("a", "owner", "id", "name"))
	infos := s.Tables()
	require.Len(t, infos, 2)
	assert.Equal(t, "owner", infos[0].Table)
	assert.Equal(t, []string{"id", "name"}, infos[0].Attributes)
	assert.Equal(t, 4, infos[1].Records)
}

func TestLoadFixture(t *testing.T) {
	doc := `
tables:
  - schema: dev
    table: owner
    hash_attribute: id
    attributes: [id, name]
    records:
      - {id: 1, name: Ann}
      - {id: 2, name: Bob, city: Oslo}
`
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := LoadFixture(path)
	require.NoError(t, err)

	attrs, err := s.Attributes(context.Background(), "dev", "owner")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "city"}, attrs)

	got, err := s.FetchByValue(context.Background(), "dev", "owner", ValueQuery{Attribute: "city", Op: sql.OpEq, Value: "Oslo"})
	require.NoError(t, err)
	require.Equal(t, map[interface{}]interface{}{2.0: "Oslo"}, got)

	err = New().Load(strings.NewReader("tables:\n  - schema: dev\n    tabel: x\n"))
	require.True(t, ferrors.IsValidationError(err))

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, ferrors.IsStorageError(err))
}

func TestDropTableNotifiesListeners(t *testing.T) {
	s := newDogStore(t)
	var changed []string
	s.OnChange(func(schema, table string) { changed = append(changed, schema+"."+table) })

	require.NoError(t, s.DropTable("dev", "dog"))
	assert.Equal(t, []string{"dev.dog"}, changed)

	_, err := s.HashAttribute(context.Background(), "dev", "dog")
	assert.Equal(t, ferrors.ErrCodeSchemaMissing, ferrors.GetCode(err))

	err = s.DropTable("dev", "dog")
	assert.Equal(t, ferrors.ErrCodeSchemaMissing, ferrors.GetCode(err))
	assert.Len(t, changed, 1)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := newDogStore(t)
	var changed []string
	s.OnChange(func(schema, table string) { changed = append(changed, schema+"."+table) })

	err := s.Replace(strings.NewReader("tables:\n  - schema: dev\n    tabel: x\n"))
	require.True(t, ferrors.IsValidationError(err))
	assert.Empty(t, changed)
	attr, err := s.HashAttribute(ctx, "dev", "dog")
	require.NoError(t, err)
	assert.Equal(t, "id", attr)

	require.NoError(t, s.Replace(strings.NewReader(`
tables:
  - schema: dev
    table: dog
    hash_attribute: tag
    records:
      - {tag: a, name: Rex}
  - schema: dev
    table: cat
    hash_attribute: id
`)))
	sort.Strings(changed)
	assert.Equal(t, []string{"dev.cat", "dev.dog"}, changed)

	attr, err = s.HashAttribute(ctx, "dev", "dog")
	require.NoError(t, err)
	assert.Equal(t, "tag", attr)

	got, err := s.FetchByValue(ctx, "dev", "dog", ValueQuery{Attribute: "name", Op: sql.OpEq, Value: "Rex"})
	require.NoError(t, err)
	assert.Equal(t, map[interface{}]interface{}{"a": "Rex"}, got)
	assert.Len(t, s.Tables(), 2)
}
