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
Package storage implements FlySearch's in-memory attribute-indexed store.

Records are not kept as rows. Every attribute of a table owns an index
that maps hash values (the table's primary key) to the attribute's value,
plus an ordered B-Tree of (value, hash) entries for point and range
lookups. A record is the set of values sharing one hash across indexes.

Storage Layout:
===============

	Store
	  └── table (schema, name)
	        ├── hash attribute name
	        ├── attribute order (hash attribute first)
	        └── attribute index, one per attribute
	              ├── values: hash -> value
	              └── tree:   (value, hash) ordered by the collator

NULL values are never indexed: an attribute whose value is NULL is simply
absent for that hash.

Lookups:
========

FetchByHash returns the requested attributes for hashes that exist.
FetchByValue returns hash -> value for every entry matching a ValueQuery:
the wildcard (ValueQuery.All), equality, inequality, the four range comparators,
and BETWEEN. Comparisons never cross value kinds, so a numeric bound never
matches a string value.

Usage:
======

	store := storage.New(storage.WithCollator(sql.NocaseCollator{}))
	store.CreateTable("dev", "dog", "id")
	store.Put("dev", "dog", map[string]interface{}{"id": 1, "name": "Rex"})

	matches, _ := store.FetchByValue(ctx, "dev", "dog", storage.ValueQuery{
		Attribute: "name", Op: sql.OpEq, Value: "rex",
	})
*/
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/logging"
	"flysearch/internal/sql"
)

// Store is an in-memory attribute-indexed database. It implements the
// schema catalog, the storage bridge, and the attribute describer used by
// the search pipeline.
//
// Thread Safety: All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	tables   map[tableKey]*table
	collator sql.Collator
	logger   *logging.Logger

	// onChange is called, outside the lock, for every table that was
	// dropped or replaced.
	onChange []func(schema, table string)
}

type tableKey struct {
	schema, table string
}

// table holds the attribute indexes of one table.
type table struct {
	mu            sync.RWMutex
	schema        string
	name          string
	hashAttribute string
	attributes    []string
	indexes       map[string]*attributeIndex
}

// TableInfo describes a stored table.
type TableInfo struct {
	Schema        string   `json:"schema" yaml:"schema"`
	Table         string   `json:"table" yaml:"table"`
	HashAttribute string   `json:"hash_attribute" yaml:"hash_attribute"`
	Attributes    []string `json:"attributes" yaml:"attributes"`
	Records       int      `json:"records" yaml:"records"`
}

// Option configures a Store.
type Option func(*Store)

// WithCollator sets the collator that orders string values in the
// attribute indexes. It must match the collator of the evaluation engine.
func WithCollator(c sql.Collator) Option {
	return func(s *Store) {
		s.collator = c
	}
}

// New creates an empty Store. The default collator is binary.
func New(opts ...Option) *Store {
	s := &Store{
		tables:   make(map[tableKey]*table),
		collator: sql.BinaryCollator{},
		logger:   logging.NewLogger("storage"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collator returns the store's collator.
func (s *Store) Collator() sql.Collator {
	return s.collator
}

// CreateTable creates a table with the given hash attribute and optional
// declared attributes. Creating an existing table with the same hash
// attribute is a no-op.
func (s *Store) CreateTable(schema, name, hashAttribute string, attributes ...string) error {
	if name == "" {
		return ferrors.MissingRequired("table")
	}
	if hashAttribute == "" {
		return ferrors.MissingRequired("hash attribute")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tableKey{schema, name}
	if t, ok := s.tables[key]; ok {
		if t.hashAttribute != hashAttribute {
			return ferrors.NewStorageError(fmt.Sprintf("table %s already exists with hash attribute %s", qualified(schema, name), t.hashAttribute))
		}
		return nil
	}

	t := &table{
		schema:        schema,
		name:          name,
		hashAttribute: hashAttribute,
		indexes:       make(map[string]*attributeIndex),
	}
	t.addAttribute(hashAttribute, s.collator)
	for _, a := range attributes {
		t.addAttribute(a, s.collator)
	}
	s.tables[key] = t
	s.logger.Debug("Created table", "table", qualified(schema, name), "hash_attribute", hashAttribute)
	return nil
}

// OnChange registers fn to be called after a table is dropped or replaced.
// Caches of table metadata use it to invalidate their entries.
func (s *Store) OnChange(fn func(schema, table string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Store) notify(keys []tableKey) {
	s.mu.RLock()
	listeners := append([]func(string, string){}, s.onChange...)
	s.mu.RUnlock()
	for _, k := range keys {
		for _, fn := range listeners {
			fn(k.schema, k.table)
		}
	}
}

// DropTable removes a table and all its records.
func (s *Store) DropTable(schema, name string) error {
	key := tableKey{schema, name}
	s.mu.Lock()
	if _, ok := s.tables[key]; !ok {
		s.mu.Unlock()
		return ferrors.SchemaMissing(schema, name)
	}
	delete(s.tables, key)
	s.mu.Unlock()

	s.logger.Debug("Dropped table", "table", qualified(schema, name))
	s.notify([]tableKey{key})
	return nil
}

func (s *Store) table(schema, name string) (*table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableKey{schema, name}]
	if !ok {
		return nil, ferrors.SchemaMissing(schema, name)
	}
	return t, nil
}

// Put inserts or replaces the record whose hash is record[hashAttribute].
// Attributes missing from the record or holding NULL are cleared.
func (s *Store) Put(schema, name string, record map[string]interface{}) error {
	t, err := s.table(schema, name)
	if err != nil {
		return err
	}
	hash := sql.Normalize(record[t.hashAttribute])
	if hash == nil {
		return ferrors.MissingHash(qualified(schema, name), t.hashAttribute)
	}
	if k := sql.KindOf(hash); k == sql.KindOther {
		return ferrors.InvalidValue(t.hashAttribute, fmt.Sprintf("unsupported hash type %T", hash))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.remove(hash)

	// New attributes are appended in name order so attribute order does
	// not depend on map iteration.
	names := make([]string, 0, len(record))
	for a := range record {
		names = append(names, a)
	}
	sort.Strings(names)
	for _, a := range names {
		v := sql.Normalize(record[a])
		if v == nil {
			continue
		}
		if sql.KindOf(v) == sql.KindOther {
			return ferrors.InvalidValue(a, fmt.Sprintf("unsupported value type %T", v))
		}
		t.addAttribute(a, s.collator).set(hash, v)
	}
	return nil
}

// Delete removes the record with the given hash. It reports whether the
// record existed.
func (s *Store) Delete(schema, name string, hash interface{}) (bool, error) {
	t, err := s.table(schema, name)
	if err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remove(sql.Normalize(hash)), nil
}

// HashAttribute returns the name of a table's hash attribute.
func (s *Store) HashAttribute(ctx context.Context, schema, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t, err := s.table(schema, name)
	if err != nil {
		return "", err
	}
	return t.hashAttribute, nil
}

// Attributes returns a table's attributes, hash attribute first.
func (s *Store) Attributes(ctx context.Context, schema, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.table(schema, name)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.attributes...), nil
}

// Tables describes every table, ordered by schema and name.
func (s *Store) Tables() []TableInfo {
	s.mu.RLock()
	tables := make([]*table, 0, len(s.tables))
	for _, t := range s.tables {
		tables = append(tables, t)
	}
	s.mu.RUnlock()

	infos := make([]TableInfo, len(tables))
	for i, t := range tables {
		t.mu.RLock()
		infos[i] = TableInfo{
			Schema:        t.schema,
			Table:         t.name,
			HashAttribute: t.hashAttribute,
			Attributes:    append([]string(nil), t.attributes...),
			Records:       len(t.indexes[t.hashAttribute].values),
		}
		t.mu.RUnlock()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Schema != infos[j].Schema {
			return infos[i].Schema < infos[j].Schema
		}
		return infos[i].Table < infos[j].Table
	})
	return infos
}

// addAttribute returns the index for an attribute, creating it and
// appending the attribute on first use. Caller holds t.mu.
func (t *table) addAttribute(name string, c sql.Collator) *attributeIndex {
	if idx, ok := t.indexes[name]; ok {
		return idx
	}
	idx := newAttributeIndex(c)
	t.indexes[name] = idx
	t.attributes = append(t.attributes, name)
	return idx
}

// remove clears every attribute of a hash. Caller holds t.mu.
func (t *table) remove(hash interface{}) bool {
	existed := false
	for _, idx := range t.indexes {
		if idx.unset(hash) {
			existed = true
		}
	}
	return existed
}

func qualified(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
