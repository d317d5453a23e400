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
	"fmt"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

// ValueQuery selects index entries of one attribute by value.
//
// Op is one of =, !=, <, <=, >, >=, or BETWEEN. Value is the bound
// (the lower bound for BETWEEN) and Upper the upper bound for BETWEEN.
// A query with All set ignores Op and the bounds and matches every entry;
// no Value, "*" included, is ever treated as a wildcard.
type ValueQuery struct {
	Attribute string
	Op        sql.Operator
	Value     interface{}
	Upper     interface{}
	All       bool
}

// All returns the wildcard query for attribute.
func All(attribute string) ValueQuery {
	return ValueQuery{Attribute: attribute, All: true}
}

// IsWildcard reports whether q matches every entry.
func (q ValueQuery) IsWildcard() bool {
	return q.All
}

// String renders the query for logs.
func (q ValueQuery) String() string {
	switch {
	case q.IsWildcard():
		return q.Attribute + " = *"
	case q.Op == sql.OpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", q.Attribute, sql.FormatValue(q.Value), sql.FormatValue(q.Upper))
	}
	return fmt.Sprintf("%s %s %s", q.Attribute, q.Op, sql.FormatValue(q.Value))
}

// FetchByHash returns, for every given hash that exists in the table, the
// requested attributes that hold a value. Unknown hashes are omitted.
func (s *Store) FetchByHash(ctx context.Context, schema, name string, hashes []interface{}, attributes []string) (map[interface{}]map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.table(schema, name)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	present := t.indexes[t.hashAttribute].values
	out := make(map[interface{}]map[string]interface{}, len(hashes))
	for _, h := range hashes {
		h = sql.Normalize(h)
		if _, ok := present[h]; !ok {
			continue
		}
		rec := make(map[string]interface{}, len(attributes))
		for _, a := range attributes {
			idx, ok := t.indexes[a]
			if !ok {
				continue
			}
			if v, ok := idx.values[h]; ok {
				rec[a] = v
			}
		}
		out[h] = rec
	}
	s.logger.Debug("Fetched by hash", "table", qualified(schema, name), "hashes", len(hashes), "attributes", len(attributes), "found", len(out))
	return out, nil
}

// FetchByValue returns hash -> value for every entry of q.Attribute that
// matches q. An unknown attribute matches nothing.
func (s *Store) FetchByValue(ctx context.Context, schema, name string, q ValueQuery) (map[interface{}]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Attribute == "" {
		return nil, ferrors.MissingRequired("attribute")
	}
	switch {
	case q.All:
	case q.Op == sql.OpEq, q.Op == sql.OpNe, q.Op == sql.OpLt, q.Op == sql.OpLe,
		q.Op == sql.OpGt, q.Op == sql.OpGe, q.Op == sql.OpBetween:
	default:
		return nil, ferrors.InvalidValue("operator", fmt.Sprintf("unsupported fetch operator %q", q.Op))
	}

	t, err := s.table(schema, name)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[interface{}]interface{})
	idx, ok := t.indexes[q.Attribute]
	if !ok {
		return out, nil
	}

	value, upper := sql.Normalize(q.Value), sql.Normalize(q.Upper)
	switch {
	case q.IsWildcard():
		for h, v := range idx.values {
			out[h] = v
		}
	case value == nil, q.Op == sql.OpBetween && upper == nil:
		// Comparisons with NULL are never true.
	default:
		idx.scan(q.Op, value, upper, func(e entry) {
			out[e.hash] = e.value
		})
	}
	s.logger.Debug("Fetched by value", "table", qualified(schema, name), "query", q.String(), "found", len(out))
	return out, nil
}
