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
)

// complete fetches the attributes the statement references that narrowing
// did not need, for surviving rows only. Every such attribute is
// registered even when nothing is fetched, so the final rewrite can
// address it; its values stay NULL.
func (x *Executor) complete(ctx context.Context, q *query, matched int) {
	needed := make(map[string][]string)
	seen := make(map[AttributeDescriptor]bool)
	add := func(d AttributeDescriptor) {
		if !seen[d] {
			seen[d] = true
			needed[d.Table.Name()] = append(needed[d.Table.Name()], d.Attribute)
		}
	}
	for _, ref := range q.columns.All() {
		if d, ok := q.resolver.Resolve(ref); ok {
			add(d)
		}
	}
	for _, star := range q.columns.Stars {
		for _, d := range q.starAttributes(star) {
			add(d)
		}
	}

	var fetches []fetch
	for _, t := range q.tables {
		s := q.stores[t.Name()]
		var missing []string
		for _, attr := range needed[t.Name()] {
			if !s.has(attr) {
				missing = append(missing, attr)
			}
		}
		for _, attr := range missing {
			s.addColumn(attr)
		}
		if matched == 0 || len(missing) == 0 || s.len() == 0 {
			continue
		}
		survivors := s.hashes()
		for _, attr := range missing {
			fetches = append(fetches, x.fetchByHash(s, survivors, attr, strategyComplete))
		}
	}

	if len(fetches) == 0 {
		return
	}
	q.logger.Debug("Completing", "fetches", len(fetches))
	x.runFetches(ctx, q, "complete", fetches)
}
