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
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collation names a string comparison rule.
type Collation string

const (
	CollationDefault         Collation = "default"
	CollationBinary          Collation = "binary"
	CollationCaseInsensitive Collation = "nocase"
	CollationUnicode         Collation = "unicode"
)

// Collator provides string comparison based on collation rules. The
// storage value index and the engine must share one Collator so that an
// index range scan and a re-evaluated predicate agree on every row.
type Collator interface {
	// Compare compares two strings according to collation rules.
	// Returns -1 if a < b, 0 if a == b, 1 if a > b.
	Compare(a, b string) int

	// Key returns a string that is byte-equal for strings the collation
	// considers equal. It is used for hashing (GROUP BY, DISTINCT, joins).
	Key(s string) string
}

// BinaryCollator uses strict byte-wise comparison. It is also the default.
type BinaryCollator struct{}

// Compare implements Collator.
func (BinaryCollator) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Key implements Collator.
func (BinaryCollator) Key(s string) string {
	return s
}

// NocaseCollator uses case-insensitive comparison.
type NocaseCollator struct{}

// Compare implements Collator.
func (NocaseCollator) Compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Key implements Collator.
func (NocaseCollator) Key(s string) string {
	return strings.ToLower(s)
}

// UnicodeCollator uses Unicode collation with locale support.
// collate.Collator keeps internal buffers, so calls are serialized.
type UnicodeCollator struct {
	mu       sync.Mutex
	collator *collate.Collator
	buf      collate.Buffer
	locale   string
}

// NewUnicodeCollator creates a new Unicode collator for the given locale.
func NewUnicodeCollator(locale string) *UnicodeCollator {
	tag := language.Make(locale)
	if tag == language.Und {
		tag = language.English
	}
	return &UnicodeCollator{
		collator: collate.New(tag, collate.Loose),
		locale:   locale,
	}
}

// Compare implements Collator.
func (c *UnicodeCollator) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collator.CompareString(a, b)
}

// Key implements Collator.
func (c *UnicodeCollator) Key(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := string(c.collator.KeyFromString(&c.buf, s))
	c.buf.Reset()
	return key
}

// Locale returns the locale the collator was built for.
func (c *UnicodeCollator) Locale() string {
	return c.locale
}

// GetCollator returns a Collator for the given collation type and locale.
func GetCollator(collation Collation, locale string) Collator {
	switch Collation(strings.ToLower(string(collation))) {
	case CollationCaseInsensitive:
		return NocaseCollator{}
	case CollationUnicode:
		return NewUnicodeCollator(locale)
	default:
		return BinaryCollator{}
	}
}
