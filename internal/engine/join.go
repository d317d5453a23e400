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

package engine

import (
	"fmt"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

// join extends every tuple with rows of the source at position idx.
//
// The join condition is always evaluated in full. When it is an equality
// between a column of the new source and a column of an earlier source,
// the new source's rows are bucketed by that column first so each tuple
// only tests rows that can match.
func (e *Engine) join(sc *scope, tuples []tuple, idx int, j *sql.Join) ([]tuple, error) {
	mode := j.Mode
	if mode == "" {
		mode = sql.JoinInner
	}
	if mode != sql.JoinCross && j.On == nil && mode != sql.JoinInner {
		return nil, ferrors.NewExecutionError(fmt.Sprintf("%s JOIN requires an ON condition", mode))
	}

	width := len(sc.sources)
	rows := sc.sources[idx].rel.Rows

	candidates := e.allRows(len(rows))
	if mode != sql.JoinCross && j.On != nil {
		if probe, bucket, ok := e.hashJoinPlan(sc, idx, j.On); ok {
			candidates = e.bucketed(sc, rows, idx, bucket, probe)
		}
	}

	matched := make([]bool, len(rows))
	out := make([]tuple, 0, len(tuples))
	for _, t := range tuples {
		found := false
		cands, err := candidates(t)
		if err != nil {
			return nil, err
		}
		for _, ri := range cands {
			nt := make(tuple, width)
			copy(nt, t)
			nt[idx] = rows[ri]
			if mode != sql.JoinCross && j.On != nil {
				ok, err := e.test(sc, nt, j.On)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			found = true
			matched[ri] = true
			out = append(out, nt)
		}
		if !found && (mode == sql.JoinLeft || mode == sql.JoinFull) {
			nt := make(tuple, width)
			copy(nt, t)
			out = append(out, nt)
		}
	}

	if mode == sql.JoinRight || mode == sql.JoinFull {
		for ri, r := range rows {
			if matched[ri] {
				continue
			}
			nt := make(tuple, width)
			nt[idx] = r
			out = append(out, nt)
		}
	}
	return out, nil
}

// candidateFunc returns the row indexes of the joined source worth testing
// for a tuple.
type candidateFunc func(t tuple) ([]int, error)

func (e *Engine) allRows(n int) candidateFunc {
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	return func(tuple) ([]int, error) { return all, nil }
}

// hashJoinPlan reports whether on is an equality between an expression
// over the source at idx (bucket) and one over earlier sources (probe).
func (e *Engine) hashJoinPlan(sc *scope, idx int, on sql.Expr) (probe, bucket sql.Expr, ok bool) {
	b, isBin := on.(*sql.BinaryExpr)
	if !isBin || b.Op != sql.OpEq {
		return nil, nil, false
	}
	ls, lok := sc.sourceOf(b.Left)
	rs, rok := sc.sourceOf(b.Right)
	if !lok || !rok {
		return nil, nil, false
	}
	switch {
	case rs == idx && ls < idx:
		return b.Left, b.Right, true
	case ls == idx && rs < idx:
		return b.Right, b.Left, true
	}
	return nil, nil, false
}

// sourceOf returns the single source a column reference reads from.
func (sc *scope) sourceOf(ex sql.Expr) (int, bool) {
	switch n := ex.(type) {
	case *sql.ColumnRef:
		si, _, err := sc.resolve(n)
		return si, err == nil
	case *sql.PositionalRef:
		si, ok := sc.byName[n.Table]
		return si, ok
	}
	return 0, false
}

func (e *Engine) bucketed(sc *scope, rows [][]interface{}, idx int, bucket, probe sql.Expr) candidateFunc {
	buckets := make(map[interface{}][]int)
	width := len(sc.sources)
	var buildErr error
	for ri, r := range rows {
		t := make(tuple, width)
		t[idx] = r
		v, err := e.newCtx(sc, t, nil).eval(bucket)
		if err != nil {
			buildErr = err
			break
		}
		if v == nil {
			continue
		}
		k := sql.HashKey(v, e.collator)
		buckets[k] = append(buckets[k], ri)
	}

	return func(t tuple) ([]int, error) {
		if buildErr != nil {
			return nil, buildErr
		}
		v, err := e.newCtx(sc, t, nil).eval(probe)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		return buckets[sql.HashKey(v, e.collator)], nil
	}
}
