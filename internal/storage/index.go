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
	"math"

	"github.com/google/btree"

	"flysearch/internal/sql"
)

// treeDegree is the B-Tree degree of attribute indexes.
const treeDegree = 16

// entry is one (value, hash) pair of an attribute index. A nil hash sorts
// before every real hash, so entry{value: v} is a lower bound for v.
type entry struct {
	value interface{}
	hash  interface{}
}

// attributeIndex maps hashes to values for one attribute and keeps the
// same pairs ordered by value for lookups by value.
type attributeIndex struct {
	values   map[interface{}]interface{}
	tree     *btree.BTreeG[entry]
	collator sql.Collator
}

func newAttributeIndex(c sql.Collator) *attributeIndex {
	return &attributeIndex{
		values: make(map[interface{}]interface{}),
		tree: btree.NewG(treeDegree, func(a, b entry) bool {
			if cmp := sql.Order(a.value, b.value, c); cmp != 0 {
				return cmp < 0
			}
			return sql.Order(a.hash, b.hash, nil) < 0
		}),
		collator: c,
	}
}

func (idx *attributeIndex) set(hash, value interface{}) {
	if old, ok := idx.values[hash]; ok {
		idx.tree.Delete(entry{value: old, hash: hash})
	}
	idx.values[hash] = value
	idx.tree.ReplaceOrInsert(entry{value: value, hash: hash})
}

func (idx *attributeIndex) unset(hash interface{}) bool {
	old, ok := idx.values[hash]
	if !ok {
		return false
	}
	idx.tree.Delete(entry{value: old, hash: hash})
	delete(idx.values, hash)
	return true
}

// kindFloor returns the smallest value of v's kind, used as the lower
// bound of an upper-bounded range.
func kindFloor(v interface{}) interface{} {
	switch v.(type) {
	case bool:
		return false
	case float64:
		return math.Inf(-1)
	case string:
		return ""
	}
	return v
}

// scan visits every entry whose value matches op against value (and
// upper, for BETWEEN). Entries of a different kind than value never match.
func (idx *attributeIndex) scan(op sql.Operator, value, upper interface{}, visit func(entry)) {
	kind := sql.KindOf(value)
	cmp := func(e entry, bound interface{}) (int, bool) {
		if sql.KindOf(e.value) != kind {
			return 0, false
		}
		return sql.CompareValues(e.value, bound, idx.collator)
	}

	switch op {
	case sql.OpNe:
		idx.tree.Ascend(func(e entry) bool {
			if c, ok := cmp(e, value); !ok || c != 0 {
				visit(e)
			}
			return true
		})
		return
	case sql.OpLt, sql.OpLe:
		idx.tree.AscendGreaterOrEqual(entry{value: kindFloor(value)}, func(e entry) bool {
			c, ok := cmp(e, value)
			if !ok || c > 0 || (c == 0 && op == sql.OpLt) {
				return false
			}
			visit(e)
			return true
		})
		return
	}

	idx.tree.AscendGreaterOrEqual(entry{value: value}, func(e entry) bool {
		c, ok := cmp(e, value)
		if !ok {
			return false
		}
		switch op {
		case sql.OpEq:
			if c != 0 {
				return false
			}
		case sql.OpGt:
			if c == 0 {
				return true
			}
		case sql.OpBetween:
			if hi, ok := cmp(e, upper); !ok || hi > 0 {
				return false
			}
		}
		visit(e)
		return true
	})
}
