package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/coregx/querel/internal/dialects"
)

// pivotPrefix marks columns a prefetch pass adds to a query for row
// matching. User selections never collide with it.
const pivotPrefix = "pvt_"

// Executor abstracts the querying side of *sql.DB and *sql.Tx.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Row is one record of a generated SELECT. Accessors are scoped: Get reads
// the relation's own columns, Scoped descends into a joined association's
// column range, and Prefetched returns the child rows a to-many prefetch
// attached.
type Row struct {
	columns    []string
	values     []interface{}
	layout     *ScopeLayout
	prefetched map[string][]Row
}

// Get returns the value of a column selected by this row's own relation.
func (r Row) Get(name string) (interface{}, bool) {
	if r.layout == nil {
		return nil, false
	}
	end := r.layout.Start + r.layout.Width
	for i := r.layout.Start; i < end; i++ {
		if r.columns[i] == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Scoped returns the row restricted to a joined association's columns.
func (r Row) Scoped(key string) (Row, bool) {
	child := r.layout.Scope(key)
	if child == nil {
		return Row{}, false
	}
	return Row{columns: r.columns, values: r.values, layout: child}, true
}

// Prefetched returns the rows a to-many prefetch attached under key. The
// second result reports whether the prefetch ran at all; a parent with no
// matching children has an empty, non-nil list.
func (r Row) Prefetched(key string) ([]Row, bool) {
	rows, ok := r.prefetched[key]
	return rows, ok
}

// ScopeKeys lists the joined association keys reachable from this row.
func (r Row) ScopeKeys() []string {
	if r.layout == nil {
		return nil
	}
	return r.layout.Keys
}

// Columns returns this row's own column names, in selection order.
func (r Row) Columns() []string {
	if r.layout == nil {
		return nil
	}
	return r.columns[r.layout.Start : r.layout.Start+r.layout.Width]
}

// Values returns this row's own column values, aligned with Columns.
func (r Row) Values() []interface{} {
	if r.layout == nil {
		return nil
	}
	return r.values[r.layout.Start : r.layout.Start+r.layout.Width]
}

// FetchRows generates the relation's SELECT, executes it, and runs the
// prefetch pass for every to-many inclusion.
func FetchRows(ctx context.Context, exec Executor, r Relation, dialect dialects.Dialect, schema SchemaReader) ([]Row, error) {
	prepared, err := prepareForPrefetch(r, schema)
	if err != nil {
		return nil, err
	}
	q, err := GenerateSelect(prepared, dialect, schema)
	if err != nil {
		return nil, err
	}
	rows, err := runQuery(ctx, exec, q)
	if err != nil {
		return nil, err
	}
	if err := prefetchInto(ctx, exec, rows, r.prefetches, dialect, schema); err != nil {
		return nil, err
	}
	return rows, nil
}

// prepareForPrefetch annotates the parent query with any pivot column a
// to-many prefetch will need for matching but the selection does not already
// carry.
func prepareForPrefetch(r Relation, schema SchemaReader) (Relation, error) {
	for _, assoc := range r.prefetches {
		if !assoc.ToMany {
			continue
		}
		fk, err := assoc.fk.resolve(schema)
		if err != nil {
			return Relation{}, err
		}
		for _, pair := range fk {
			if !selectsColumn(r.selection, r.table, pair.destination, schema) {
				r = r.Annotated(SelAs(pair.destination, pivotPrefix+pair.destination))
			}
		}
	}
	return r, nil
}

func runQuery(ctx context.Context, exec Executor, q *GeneratedQuery) ([]Row, error) {
	sqlRows, err := exec.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer sqlRows.Close()

	columns, err := sqlRows.Columns()
	if err != nil {
		return nil, err
	}
	layout := q.Layout
	if layout == nil {
		layout = &ScopeLayout{Width: len(columns)}
	}

	var rows []Row
	for sqlRows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := sqlRows.Scan(dest...); err != nil {
			return nil, err
		}
		rows = append(rows, Row{columns: columns, values: values, layout: layout})
	}
	return rows, sqlRows.Err()
}

// prefetchInto runs one extra query per to-many association and groups its
// rows onto the matching parents. Parents with no children get an empty
// list, so Prefetched distinguishes "no children" from "never prefetched".
func prefetchInto(ctx context.Context, exec Executor, parents []Row, assocs []Association, dialect dialects.Dialect, schema SchemaReader) error {
	for _, assoc := range assocs {
		if !assoc.ToMany {
			continue
		}
		if err := prefetchOne(ctx, exec, parents, assoc, dialect, schema); err != nil {
			return err
		}
	}
	return nil
}

func prefetchOne(ctx context.Context, exec Executor, parents []Row, assoc Association, dialect dialects.Dialect, schema SchemaReader) error {
	fk, err := assoc.fk.resolve(schema)
	if err != nil {
		return err
	}

	// Distinct parent keys, in first-seen order.
	parentKeys := make([][]interface{}, 0, len(parents))
	seen := make(map[string]bool)
	keyOf := make([]string, len(parents))
	for i, parent := range parents {
		tuple := make([]interface{}, len(fk))
		for j, pair := range fk {
			v, err := parentPivotValue(parent, pair.destination)
			if err != nil {
				return err
			}
			tuple[j] = v
		}
		key := tupleKey(tuple)
		keyOf[i] = key
		if !seen[key] {
			seen[key] = true
			parentKeys = append(parentKeys, tuple)
		}
	}

	child := assoc.relation
	for _, pair := range fk {
		child = child.Annotated(SelAs(pair.origin, pivotPrefix+pair.origin))
	}
	child = child.Filter(pivotFilter(fk, parentKeys))

	// The child may carry prefetches of its own; annotate their pivot
	// columns just like the root query's.
	child, err = prepareForPrefetch(child, schema)
	if err != nil {
		return err
	}

	q, err := GenerateSelect(child, dialect, schema)
	if err != nil {
		return err
	}
	childRows, err := runQuery(ctx, exec, q)
	if err != nil {
		return err
	}
	if err := prefetchInto(ctx, exec, childRows, assoc.relation.prefetches, dialect, schema); err != nil {
		return err
	}

	grouped := make(map[string][]Row)
	for _, row := range childRows {
		tuple := make([]interface{}, len(fk))
		for j, pair := range fk {
			v, ok := row.Get(pivotPrefix + pair.origin)
			if !ok {
				return configErrorf(ColumnNotSelected,
					"prefetch column %q missing from child query on %q", pair.origin, assoc.Key)
			}
			tuple[j] = v
		}
		key := tupleKey(tuple)
		grouped[key] = append(grouped[key], row)
	}

	for i := range parents {
		rows := grouped[keyOf[i]]
		if rows == nil {
			rows = []Row{}
		}
		if parents[i].prefetched == nil {
			parents[i].prefetched = make(map[string][]Row)
		}
		parents[i].prefetched[assoc.Key] = rows
	}
	return nil
}

// parentPivotValue reads a matching column from a parent row, under either
// its plain name or the reserved pivot alias.
func parentPivotValue(parent Row, column string) (interface{}, error) {
	if v, ok := parent.Get(column); ok {
		return v, nil
	}
	if v, ok := parent.Get(pivotPrefix + column); ok {
		return v, nil
	}
	return nil, configErrorf(ColumnNotSelected,
		"prefetch requires column %q in the parent selection", column)
}

// pivotFilter builds the child-side membership test against the parent keys.
func pivotFilter(fk []columnPair, keys [][]interface{}) Expr {
	if len(fk) == 1 {
		values := make([]interface{}, len(keys))
		for i, k := range keys {
			values[i] = k[0]
		}
		return In(Col(fk[0].origin), values...)
	}
	elems := make([]interface{}, len(fk))
	for i, pair := range fk {
		elems[i] = Col(pair.origin)
	}
	tuples := make([]interface{}, len(keys))
	for i, k := range keys {
		tuples[i] = Tuple(k...)
	}
	return In(Tuple(elems...), tuples...)
}

// tupleKey builds a grouping key for a pivot tuple. SQLite hands integers
// back as int64 regardless of declared type, so %v formatting lines the two
// sides up.
func tupleKey(tuple []interface{}) string {
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		parts[i] = fmt.Sprintf("%v", normalizeKey(v))
	}
	return strings.Join(parts, "\x00")
}

func normalizeKey(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case []byte:
		return string(n)
	}
	return v
}
