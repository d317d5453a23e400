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
	"context"

	"flysearch/internal/sql"
	"flysearch/internal/storage"
)

// TableDescriptor identifies one table reference of a statement. Two
// aliases of the same physical table are distinct descriptors.
type TableDescriptor struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Alias  string `json:"alias,omitempty"`
}

// Name returns the name the statement refers to the table by: its alias,
// or the table name when unaliased.
func (t TableDescriptor) Name() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Table
}

func (t TableDescriptor) String() string {
	name := t.Table
	if t.Schema != "" {
		name = t.Schema + "." + t.Table
	}
	if t.Alias != "" && t.Alias != t.Table {
		name += " AS " + t.Alias
	}
	return name
}

func describeRef(ref *sql.TableRef) TableDescriptor {
	return TableDescriptor{Schema: ref.Schema, Table: ref.Table, Alias: ref.Name()}
}

// AttributeDescriptor names one attribute of one table reference.
type AttributeDescriptor struct {
	Table     TableDescriptor `json:"table"`
	Attribute string          `json:"attribute"`
}

func (a AttributeDescriptor) String() string {
	return a.Table.Name() + "." + a.Attribute
}

// SchemaCatalog supplies the hash attribute of each table.
type SchemaCatalog interface {
	HashAttribute(ctx context.Context, schema, table string) (string, error)
}

// Bridge performs lookups against attribute-indexed storage.
//
// FetchByHash returns the requested attributes for each existing hash.
// FetchByValue returns hash -> value for every entry matching the query;
// see storage.ValueQuery for the supported operators and the wildcard.
type Bridge interface {
	FetchByHash(ctx context.Context, schema, table string, hashes []interface{}, attributes []string) (map[interface{}]map[string]interface{}, error)
	FetchByValue(ctx context.Context, schema, table string, q storage.ValueQuery) (map[interface{}]interface{}, error)
}

// Engine evaluates a statement whose table references are ? placeholders
// bound positionally to inputs.
type Engine interface {
	Execute(ctx context.Context, stmt *sql.Select, inputs []*sql.Relation) (*sql.Result, error)
}

// Describer lists the attributes of a table.
type Describer interface {
	Attributes(ctx context.Context, schema, table string) ([]string, error)
}

// DescribeStatement builds the attribute catalog of a statement: one
// descriptor per attribute per table reference, in FROM and JOIN order.
func DescribeStatement(ctx context.Context, d Describer, stmt *sql.Select) ([]AttributeDescriptor, error) {
	var catalog []AttributeDescriptor
	seen := make(map[TableDescriptor]bool)
	for _, ref := range stmt.Tables() {
		td := describeRef(ref)
		if seen[td] {
			continue
		}
		seen[td] = true
		attrs, err := d.Attributes(ctx, ref.Schema, ref.Table)
		if err != nil {
			return nil, err
		}
		for _, a := range attrs {
			catalog = append(catalog, AttributeDescriptor{Table: td, Attribute: a})
		}
	}
	return catalog, nil
}
