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
Package search executes SELECT statements over attribute-indexed storage.

Overview:
=========

Records are not stored as rows. Every attribute of a table is an index
from values to the primary-key ("hash") values holding them. A search
materializes only the rows and columns a statement needs, then hands
dense positional relations to the SQL engine for joins, aggregation,
ordering, and pagination.

Pipeline:
=========

	statement + catalog
	      |
	 CollectColumns / Resolver.Validate   column references per clause
	      |
	 Classify                             exact values and ranges per attribute
	      |
	 materialize                          join/WHERE/ORDER BY attributes only
	      |
	 narrow                               synthetic query over ? inputs,
	      |                               prunes every table to its survivors
	 complete                             remaining attributes, survivors only
	      |
	 rewrite + Engine.Execute             positional references, final result

A single-table statement selecting plain columns with an equality-only
WHERE takes the fast path instead and never reaches the engine. A
statement without FROM goes to the engine directly.

Errors:
=======

Validation errors (nil statement, HAVING, unknown or ambiguous columns)
are returned as-is before any fetch. Storage bridge failures are logged
and the affected fetch contributes nothing. Failures inside a stage are
logged with the stage name and query id and surface as
errors.ErrSearchFailed.

The caller's statement is never modified.
*/
package search

import (
	"context"
	"fmt"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/logging"
	"flysearch/internal/metrics"
	"flysearch/internal/sql"
)

// Execution paths, as reported in logs and metrics.
const (
	PathDirect  = "direct"
	PathFast    = "fast"
	PathGeneral = "general"
	PathEmpty   = "empty"
)

const (
	stageCatalog  = "catalog"
	stageNarrow   = "narrow"
	stageRewrite  = "rewrite"
	stageExecute  = "execute"
	stageFastPath = "fast_path"
)

// DefaultFetchConcurrency bounds the storage bridge calls in flight per
// stage.
const DefaultFetchConcurrency = 16

// Option configures an Executor.
type Option func(*Executor)

// WithFetchConcurrency bounds concurrent bridge calls per stage. Zero or
// less means unbounded.
func WithFetchConcurrency(n int) Option {
	return func(x *Executor) { x.fetchConcurrency = n }
}

// WithFastPath enables or disables the single-table fast path.
func WithFastPath(enabled bool) Option {
	return func(x *Executor) { x.fastPath = enabled }
}

// WithMetrics records query and fetch metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(x *Executor) { x.metrics = m }
}

// WithDescriber sets the attribute source used by Query. When unset and the
// bridge implements Describer, the bridge is used.
func WithDescriber(d Describer) Option {
	return func(x *Executor) { x.describer = d }
}

// Executor runs searches. It holds no per-query state and is safe for
// concurrent use.
type Executor struct {
	catalog   SchemaCatalog
	bridge    Bridge
	engine    Engine
	describer Describer

	fetchConcurrency int
	fastPath         bool
	metrics          *metrics.Metrics
	logger           *logging.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(catalog SchemaCatalog, bridge Bridge, engine Engine, opts ...Option) *Executor {
	x := &Executor{
		catalog:          catalog,
		bridge:           bridge,
		engine:           engine,
		fetchConcurrency: DefaultFetchConcurrency,
		fastPath:         true,
		logger:           logging.NewLogger("search"),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.describer == nil {
		if d, ok := bridge.(Describer); ok {
			x.describer = d
		}
	}
	return x
}

// query is the state of one search invocation.
type query struct {
	stmt     *sql.Select
	resolver *Resolver
	columns  *ColumnSet
	class    *Classification
	tables   []TableDescriptor
	stores   map[string]*tableStore
	logger   *logging.ContextLogger

	// paginated is set when LIMIT/OFFSET were applied by the narrowing
	// query.
	paginated bool
}

func (q *query) store(d AttributeDescriptor) *tableStore {
	return q.stores[d.Table.Name()]
}

// Query builds the attribute catalog of stmt from the describer and runs
// Search.
func (x *Executor) Query(ctx context.Context, stmt *sql.Select) (*sql.Result, error) {
	if stmt == nil {
		return nil, ferrors.MissingRequired("statement")
	}
	if x.describer == nil {
		return nil, ferrors.Unsupported("query without an attribute describer")
	}
	catalog, err := DescribeStatement(ctx, x.describer, stmt)
	if err != nil {
		return nil, err
	}
	return x.Search(ctx, stmt, catalog)
}

// Search executes stmt against the tables described by catalog.
func (x *Executor) Search(ctx context.Context, stmt *sql.Select, catalog []AttributeDescriptor) (*sql.Result, error) {
	qc := logging.NewQueryContext(x.logger, "search")

	q, err := prepare(stmt, catalog)
	if err != nil {
		x.metrics.RecordFailure("validation")
		qc.LogError(err)
		return nil, err
	}
	q.logger = qc.Logger
	q.logger.Debug("Search started", "sql", stmt.String(), "attributes", len(q.resolver.Catalog()))

	res, path, err := x.run(ctx, q)
	if err != nil {
		x.metrics.RecordFailure("stage")
		qc.LogError(err)
		return nil, err
	}
	x.metrics.RecordQuery(path, qc.Duration())
	qc.LogComplete(path, res.Len())
	return res, nil
}

// prepare validates stmt and builds the query state.
func prepare(stmt *sql.Select, catalog []AttributeDescriptor) (*query, error) {
	if stmt == nil {
		return nil, ferrors.MissingRequired("statement")
	}
	if len(stmt.Columns) == 0 {
		return nil, ferrors.MissingRequired("select list")
	}
	if stmt.Having != nil {
		return nil, ferrors.Unsupported("HAVING")
	}
	if stmt.Limit != nil && *stmt.Limit < 0 {
		return nil, ferrors.InvalidValue("limit", "must not be negative")
	}
	if stmt.Offset != nil && *stmt.Offset < 0 {
		return nil, ferrors.InvalidValue("offset", "must not be negative")
	}

	q := &query{stmt: stmt, stores: make(map[string]*tableStore)}
	seen := make(map[string]bool)
	for _, ref := range stmt.Tables() {
		if ref.Table == "" {
			return nil, ferrors.MissingRequired("table name")
		}
		if seen[ref.Name()] {
			return nil, ferrors.NewValidationError(fmt.Sprintf("table name '%s' specified more than once", ref.Name()))
		}
		seen[ref.Name()] = true
		q.tables = append(q.tables, describeRef(ref))
	}
	for _, j := range stmt.Joins {
		switch j.Mode {
		case "", sql.JoinInner, sql.JoinCross:
		case sql.JoinLeft, sql.JoinRight, sql.JoinFull:
			if j.On == nil {
				return nil, ferrors.NewValidationError(fmt.Sprintf("%s JOIN requires an ON condition", j.Mode))
			}
		default:
			return nil, ferrors.Unsupported(fmt.Sprintf("join mode '%s'", j.Mode))
		}
	}

	q.resolver = NewResolver(stmt, catalog)
	q.columns = CollectColumns(stmt)
	if err := q.resolver.Validate(q.columns); err != nil {
		return nil, err
	}
	q.class = Classify(stmt.Where, q.resolver.Resolve)
	return q, nil
}

func (x *Executor) run(ctx context.Context, q *query) (*sql.Result, string, error) {
	if len(q.stmt.From) == 0 {
		res, err := x.engine.Execute(ctx, q.stmt.Clone(), nil)
		if err != nil {
			return nil, "", x.stageError(q, stageExecute, err)
		}
		return res, PathDirect, nil
	}

	if err := x.openStores(ctx, q); err != nil {
		return nil, "", x.stageError(q, stageCatalog, err)
	}

	if x.fastPath {
		if plan, ok := planFastPath(q); ok {
			res, err := x.runFastPath(ctx, q, plan)
			if err != nil {
				return nil, "", x.stageError(q, stageFastPath, err)
			}
			return res, PathFast, nil
		}
	}

	x.materialize(ctx, q)
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	matched, err := x.narrow(ctx, q)
	if err != nil {
		return nil, "", x.stageError(q, stageNarrow, err)
	}
	if matched == 0 && !implicitGroup(q.stmt) {
		return emptyResult(q), PathEmpty, nil
	}

	x.complete(ctx, q, matched)
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	stmt, inputs, err := finalStatement(q)
	if err != nil {
		return nil, "", x.stageError(q, stageRewrite, err)
	}
	q.logger.Debug("Executing final statement", "sql", stmt.String())
	res, err := x.engine.Execute(ctx, stmt, inputs)
	if err != nil {
		return nil, "", x.stageError(q, stageExecute, err)
	}
	return res, PathGeneral, nil
}

// openStores looks up each table's hash attribute and creates its store.
func (x *Executor) openStores(ctx context.Context, q *query) error {
	hashes := make(map[[2]string]string)
	for _, t := range q.tables {
		key := [2]string{t.Schema, t.Table}
		attr, ok := hashes[key]
		if !ok {
			var err error
			attr, err = x.catalog.HashAttribute(ctx, t.Schema, t.Table)
			if err != nil {
				return err
			}
			if attr == "" {
				return ferrors.SchemaMissing(t.Schema, t.Table).WithDetail("no hash attribute")
			}
			hashes[key] = attr
		}
		q.stores[t.Name()] = newTableStore(t, attr)
	}
	return nil
}

// stageError logs a failure inside a pipeline stage and returns the opaque
// error callers see.
func (x *Executor) stageError(q *query, stage string, err error) error {
	q.logger.Error("Search stage failed", "stage", stage, "error", ferrors.FormatError(err))
	return ferrors.ErrSearchFailed
}

// implicitGroup reports whether stmt aggregates without GROUP BY, and so
// yields one row even when nothing matches.
func implicitGroup(stmt *sql.Select) bool {
	return stmt.HasAggregate() && len(stmt.GroupBy) == 0
}

// emptyResult is the result of a statement that matched nothing.
func emptyResult(q *query) *sql.Result {
	return &sql.Result{Columns: outputLabels(q), Rows: []sql.Row{}}
}

// outputLabels returns the result labels of the select list, with * items
// expanded to their tables' attributes and repeated labels suffixed the way
// the engine suffixes them.
func outputLabels(q *query) []string {
	var labels []string
	seen := make(map[string]int)
	add := func(label string) {
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s_%d", label, n)
		}
		labels = append(labels, label)
	}
	for _, item := range q.stmt.Columns {
		star, ok := item.Expr.(*sql.Star)
		if !ok {
			add(item.Label())
			continue
		}
		for _, d := range q.starAttributes(star) {
			add(d.Attribute)
		}
	}
	return labels
}

// starAttributes returns the attributes a * item stands for, table by
// table in statement order. A table missing from the catalog contributes
// its hash attribute.
func (q *query) starAttributes(star *sql.Star) []AttributeDescriptor {
	var out []AttributeDescriptor
	for _, t := range q.tables {
		if star.Table != "" && star.Table != t.Name() {
			continue
		}
		n := len(out)
		for _, d := range q.resolver.Catalog() {
			if d.Table.Name() == t.Name() {
				out = append(out, d)
			}
		}
		if len(out) == n {
			if s, ok := q.stores[t.Name()]; ok {
				out = append(out, AttributeDescriptor{Table: t, Attribute: s.hashAttribute})
			}
		}
	}
	return out
}
