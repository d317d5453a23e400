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

	"flysearch/internal/cache"
)

// CachedCatalog remembers hash attributes looked up in an underlying
// catalog. Lookup errors are not cached.
type CachedCatalog struct {
	catalog SchemaCatalog
	cache   *cache.Cache[string, string]
}

// NewCachedCatalog wraps catalog with an LRU cache.
func NewCachedCatalog(catalog SchemaCatalog, cfg cache.Config) *CachedCatalog {
	return &CachedCatalog{
		catalog: catalog,
		cache:   cache.New[string, string](cfg),
	}
}

func tableKey(schema, table string) string {
	return schema + "." + table
}

// HashAttribute implements SchemaCatalog.
func (c *CachedCatalog) HashAttribute(ctx context.Context, schema, table string) (string, error) {
	key := tableKey(schema, table)
	if attr, ok := c.cache.Get(key); ok {
		return attr, nil
	}
	attr, err := c.catalog.HashAttribute(ctx, schema, table)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, attr, key)
	return attr, nil
}

// Invalidate forgets the cached hash attribute of a table.
func (c *CachedCatalog) Invalidate(schema, table string) {
	c.cache.Invalidate(tableKey(schema, table))
}

// Stats returns the cache statistics.
func (c *CachedCatalog) Stats() cache.Stats {
	return c.cache.Stats()
}
