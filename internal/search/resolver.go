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
	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

// Resolver maps column references onto catalog attributes.
type Resolver struct {
	catalog []AttributeDescriptor
	aliases map[string]sql.Expr
}

// NewResolver creates a Resolver for a statement and its catalog.
// Catalog entries without an alias are normalized to alias the table
// name, matching how the statement refers to unaliased tables, and entries
// naming a table reference of the statement take that reference's
// descriptor.
func NewResolver(stmt *sql.Select, catalog []AttributeDescriptor) *Resolver {
	return &Resolver{
		catalog: normalizeCatalog(stmt, catalog),
		aliases: selectAliases(stmt),
	}
}

func normalizeCatalog(stmt *sql.Select, catalog []AttributeDescriptor) []AttributeDescriptor {
	refs := make(map[string]TableDescriptor)
	for _, ref := range stmt.Tables() {
		refs[ref.Name()] = describeRef(ref)
	}
	out := make([]AttributeDescriptor, len(catalog))
	for i, d := range catalog {
		if d.Table.Alias == "" {
			d.Table.Alias = d.Table.Table
		}
		if td, ok := refs[d.Table.Alias]; ok && td.Table == d.Table.Table {
			d.Table = td
		}
		out[i] = d
	}
	return out
}

// Catalog returns the normalized catalog.
func (r *Resolver) Catalog() []AttributeDescriptor {
	return r.catalog
}

// Resolve returns the attribute a column reference names. It tries, in
// order: an exact (table, attribute) match; for unqualified references,
// the first table defining the attribute; and a select-list alias of a
// plain column, resolved to that column. It reports false when nothing
// matches, as for aliases of computed expressions.
func (r *Resolver) Resolve(ref *sql.ColumnRef) (AttributeDescriptor, bool) {
	if d, ok := r.resolveAttribute(ref); ok {
		return d, true
	}
	if ref.Table == "" {
		if target, ok := r.aliases[ref.Column].(*sql.ColumnRef); ok && target != ref {
			return r.resolveAttribute(target)
		}
	}
	return AttributeDescriptor{}, false
}

// resolveAttribute matches catalog attributes only, without aliases.
func (r *Resolver) resolveAttribute(ref *sql.ColumnRef) (AttributeDescriptor, bool) {
	for _, d := range r.catalog {
		if d.Attribute != ref.Column {
			continue
		}
		if ref.Table == "" || d.Table.Name() == ref.Table {
			return d, true
		}
	}
	return AttributeDescriptor{}, false
}

// IsAlias reports whether ref is an unqualified select-list alias.
func (r *Resolver) IsAlias(ref *sql.ColumnRef) bool {
	if ref.Table != "" {
		return false
	}
	_, ok := r.aliases[ref.Column]
	return ok
}

// Validate checks that every column of the statement resolves: an
// unqualified attribute defined by more than one table is ambiguous, and
// a reference matching neither an attribute nor a select-list alias is
// unknown. Aliases of computed expressions are only accepted where the
// statement can use them, in ORDER BY and GROUP BY.
func (r *Resolver) Validate(cs *ColumnSet) error {
	check := func(ref *sql.ColumnRef, aliasOK bool) error {
		if ref.Table == "" {
			var tables []string
			seen := make(map[TableDescriptor]bool)
			for _, d := range r.catalog {
				if d.Attribute == ref.Column && !seen[d.Table] {
					seen[d.Table] = true
					tables = append(tables, d.Table.Name())
				}
			}
			if len(tables) > 1 && !(aliasOK && r.IsAlias(ref)) {
				return ferrors.AmbiguousColumn(ref.Column, tables...)
			}
		}
		if _, ok := r.Resolve(ref); ok {
			return nil
		}
		if aliasOK && r.IsAlias(ref) {
			return nil
		}
		return ferrors.ColumnNotFound(ref.String())
	}

	buckets := []struct {
		refs    []*sql.ColumnRef
		aliasOK bool
	}{
		{cs.Select, false},
		{cs.Where, false},
		{cs.Joins, false},
		{cs.GroupBy, true},
		{cs.OrderBy, true},
	}
	for _, b := range buckets {
		for _, ref := range b.refs {
			if err := check(ref, b.aliasOK); err != nil {
				return err
			}
		}
	}
	for _, star := range cs.Stars {
		if star.Table == "" {
			continue
		}
		found := false
		for _, d := range r.catalog {
			if d.Table.Name() == star.Table {
				found = true
				break
			}
		}
		if !found {
			return ferrors.ColumnNotFound(star.String())
		}
	}
	return nil
}
