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
	"sort"
	"sync"

	"flysearch/internal/sql"
)

// tableStore holds the rows materialized for one table reference. Rows
// are dense positional slices aligned with columns; columns[0] is always
// the hash attribute and columns only ever grow at the end, so a position
// handed out once stays valid for the rest of the query.
type tableStore struct {
	desc          TableDescriptor
	hashAttribute string

	mu      sync.Mutex
	rows    map[interface{}][]interface{}
	columns []string
	index   map[string]int
}

func newTableStore(desc TableDescriptor, hashAttribute string) *tableStore {
	return &tableStore{
		desc:          desc,
		hashAttribute: hashAttribute,
		rows:          make(map[interface{}][]interface{}),
		columns:       []string{hashAttribute},
		index:         map[string]int{hashAttribute: 0},
	}
}

// addColumn registers attr and returns its position. Registering a known
// attribute returns its existing position.
func (s *tableStore) addColumn(attr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[attr]; ok {
		return i
	}
	s.index[attr] = len(s.columns)
	s.columns = append(s.columns, attr)
	return len(s.columns) - 1
}

// position returns the column index of attr.
func (s *tableStore) position(attr string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[attr]
	return i, ok
}

// has reports whether attr is a registered column.
func (s *tableStore) has(attr string) bool {
	_, ok := s.position(attr)
	return ok
}

// snapshot returns a copy of the current column order.
func (s *tableStore) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.columns...)
}

// merge assigns attr's value for every hash in values, creating rows for
// hashes not seen before. Creating a row that exists is a no-op, so
// concurrent fetches touching the same hash share one row.
func (s *tableStore) merge(attr string, values map[interface{}]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[attr]
	if !ok {
		i = len(s.columns)
		s.index[attr] = i
		s.columns = append(s.columns, attr)
	}
	for hash, v := range values {
		if hash == nil {
			continue
		}
		r := s.row(hash)
		r[i] = v
	}
}

// fill assigns attr's value for hashes that already have a row; other
// hashes are ignored. attr must be registered.
func (s *tableStore) fill(attr string, values map[interface{}]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[attr]
	if !ok {
		return
	}
	for hash, v := range values {
		if _, exists := s.rows[hash]; !exists {
			continue
		}
		s.row(hash)[i] = v
	}
}

// row returns the row for hash, creating it or padding it to the current
// width (must hold lock).
func (s *tableStore) row(hash interface{}) []interface{} {
	r, ok := s.rows[hash]
	switch {
	case !ok:
		r = make([]interface{}, len(s.columns))
		r[0] = hash
		s.rows[hash] = r
	case len(r) < len(s.columns):
		r = append(r, make([]interface{}, len(s.columns)-len(r))...)
		s.rows[hash] = r
	}
	return r
}

// retain deletes every row whose hash is not in keep and returns the
// number of rows removed.
func (s *tableStore) retain(keep map[interface{}]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash := range s.rows {
		if !keep[hash] {
			delete(s.rows, hash)
			removed++
		}
	}
	return removed
}

// len returns the number of rows.
func (s *tableStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// hashes returns the row hashes in value order.
func (s *tableStore) hashes() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedHashes()
}

func (s *tableStore) sortedHashes() []interface{} {
	out := make([]interface{}, 0, len(s.rows))
	for h := range s.rows {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return sql.Order(out[i], out[j], nil) < 0
	})
	return out
}

// relation returns the rows as an engine input, ordered by hash and
// padded to the full column width.
func (s *tableStore) relation() *sql.Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := &sql.Relation{
		Columns: append([]string(nil), s.columns...),
		Rows:    make([][]interface{}, 0, len(s.rows)),
	}
	for _, h := range s.sortedHashes() {
		r := s.row(h)
		rel.Rows = append(rel.Rows, append([]interface{}(nil), r...))
	}
	return rel
}
