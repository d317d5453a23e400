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
Package cache provides a small LRU cache for FlySearch metadata.

Cache Overview:
===============

The search pipeline asks the schema catalog for every table's hash
attribute on every query. Schema metadata changes rarely, so the answers
are cached in front of the catalog.

Features:
=========

  - LRU eviction when the cache is full
  - TTL-based expiration, checked lazily on access
  - Invalidation by table, through the tables an entry was recorded under
  - Thread-safe operations

Usage Example:
==============

	c := cache.New[string, string](cache.Config{
		MaxEntries: 256,
		TTL:        time.Minute,
	})

	if attr, ok := c.Get("dev.dog"); ok {
		return attr
	}
	c.Set("dev.dog", "id", "dev.dog")

	// After the table's schema changes:
	c.Invalidate("dev.dog")
*/
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config holds the configuration for a cache.
type Config struct {
	// MaxEntries is the maximum number of entries.
	// When exceeded, the least recently used entries are evicted.
	MaxEntries int

	// TTL is the time-to-live of an entry. Zero means entries never expire.
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 256,
		TTL:        5 * time.Minute,
	}
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	tables    []string // tables the entry was recorded under (for invalidation)
	expiresAt time.Time
	element   *list.Element
}

// Cache is an LRU cache with optional TTL expiration.
type Cache[K comparable, V any] struct {
	config Config
	now    func() time.Time

	mu sync.Mutex

	entries map[K]*entry[K, V]

	// lru tracks access order; the front is the most recently used entry.
	lru *list.List

	// tableIndex maps table names to the keys recorded under them.
	tableIndex map[string]map[K]struct{}

	hits   int64
	misses int64
}

// New creates a Cache with the given configuration.
func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	return &Cache[K, V]{
		config:     config,
		now:        time.Now,
		entries:    make(map[K]*entry[K, V]),
		lru:        list.New(),
		tableIndex: make(map[string]map[K]struct{}),
	}
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(e) {
		c.removeEntry(e)
		c.misses++
		return zero, false
	}

	c.lru.MoveToFront(e.element)
	c.hits++
	return e.value, true
}

// Set stores value under key, recorded under the given tables.
func (c *Cache[K, V]) Set(key K, value V, tables ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeEntry(e)
	}
	for len(c.entries) >= c.config.MaxEntries {
		c.evictOldest()
	}

	e := &entry[K, V]{key: key, value: value, tables: tables}
	if c.config.TTL > 0 {
		e.expiresAt = c.now().Add(c.config.TTL)
	}
	e.element = c.lru.PushFront(e)
	c.entries[key] = e

	for _, table := range tables {
		if c.tableIndex[table] == nil {
			c.tableIndex[table] = make(map[K]struct{})
		}
		c.tableIndex[table][key] = struct{}{}
	}
}

// Invalidate removes every entry recorded under table.
func (c *Cache[K, V]) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.tableIndex[table] {
		if e, ok := c.entries[key]; ok {
			c.removeEntry(e)
		}
	}
	delete(c.tableIndex, table)
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// removeEntry removes an entry (must hold lock).
func (c *Cache[K, V]) removeEntry(e *entry[K, V]) {
	delete(c.entries, e.key)
	c.lru.Remove(e.element)

	for _, table := range e.tables {
		if keys, ok := c.tableIndex[table]; ok {
			delete(keys, e.key)
			if len(keys) == 0 {
				delete(c.tableIndex, table)
			}
		}
	}
}

// evictOldest removes the least recently used entry (must hold lock).
func (c *Cache[K, V]) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeEntry(elem.Value.(*entry[K, V]))
}

// Stats holds cache statistics.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	HitRate    float64 `json:"hit_rate"`
}

// Stats returns current cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Entries:    len(c.entries),
		MaxEntries: c.config.MaxEntries,
		HitRate:    hitRate,
	}
}
