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

package cache

import (
	"testing"
	"time"
)

func TestCacheBasic(t *testing.T) {
	c := New[string, string](Config{MaxEntries: 100, TTL: time.Minute})

	c.Set("dev.dog", "id", "dev.dog")

	v, ok := c.Get("dev.dog")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if v != "id" {
		t.Errorf("Expected 'id', got '%s'", v)
	}

	if _, ok := c.Get("dev.owner"); ok {
		t.Error("Expected cache miss")
	}

	c.Set("dev.dog", "uuid", "dev.dog")
	if v, _ := c.Get("dev.dog"); v != "uuid" {
		t.Errorf("Expected overwritten value 'uuid', got '%s'", v)
	}
}

func TestCacheInvalidation(t *testing.T) {
	c := New[string, int](Config{MaxEntries: 100})

	c.Set("dog", 1, "dog")
	c.Set("owner", 2, "owner")
	c.Set("dog+owner", 3, "dog", "owner")

	c.Invalidate("dog")

	if _, ok := c.Get("dog"); ok {
		t.Error("Expected cache miss after invalidation")
	}
	if _, ok := c.Get("owner"); !ok {
		t.Error("Expected cache hit for owner")
	}
	if _, ok := c.Get("dog+owner"); ok {
		t.Error("Expected cache miss for entry recorded under both tables")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := New[string, string](Config{MaxEntries: 3})

	c.Set("k1", "v1")
	c.Set("k2", "v2")
	c.Set("k3", "v3")

	// k1 becomes most recently used, leaving k2 as the eviction candidate.
	c.Get("k1")
	c.Set("k4", "v4")

	if _, ok := c.Get("k2"); ok {
		t.Error("Expected k2 to be evicted")
	}
	if _, ok := c.Get("k1"); !ok {
		t.Error("Expected k1 to still be cached")
	}
	if got := c.Stats().Entries; got != 3 {
		t.Errorf("Expected 3 entries, got %d", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New[string, string](Config{MaxEntries: 10, TTL: time.Minute})
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("dev.dog", "id")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("dev.dog"); !ok {
		t.Fatal("Expected entry before TTL")
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("dev.dog"); ok {
		t.Error("Expected entry to expire")
	}
	if got := c.Stats().Entries; got != 0 {
		t.Errorf("Expected expired entry to be removed, got %d entries", got)
	}
}

func TestCacheStats(t *testing.T) {
	c := New[string, string](Config{MaxEntries: 100})

	c.Set("k1", "v1")
	c.Get("k1")
	c.Get("k2")

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %f", stats.HitRate)
	}
}

func TestCacheDefaultCapacity(t *testing.T) {
	c := New[string, string](Config{})

	c.Set("k1", "v1", "t1")
	c.Set("k2", "v2", "t2")

	stats := c.Stats()
	if stats.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.Entries)
	}
	if stats.MaxEntries != DefaultConfig().MaxEntries {
		t.Errorf("Expected default capacity, got %d", stats.MaxEntries)
	}
}
