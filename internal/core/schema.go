package core

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PrimaryKeyInfo describes a table's primary key.
type PrimaryKeyInfo struct {
	// Columns lists the key columns in key order.
	Columns []string
	// IsRowID reports whether the key is rowid-like (implicit rowid, or a
	// single INTEGER PRIMARY KEY column in SQLite).
	IsRowID bool
}

// SchemaReader is the schema-introspection collaborator used to resolve
// implicit join columns and key-based filters.
//
// Lookups are expected to be fast, cached, local reads; generation performs
// them synchronously and defines no cancellation semantics around them.
type SchemaReader interface {
	// PrimaryKey returns the primary key of a table.
	PrimaryKey(table string) (PrimaryKeyInfo, error)
	// UniqueKeyColumns returns the ordered columns of a unique key (primary
	// key or unique index) fully contained in candidates, or nil when none
	// matches.
	UniqueKeyColumns(table string, candidates []string) ([]string, error)
	// Columns returns the table's column names in declaration order.
	Columns(table string) ([]string, error)
}

// tableSchema is the cached introspection result for one table.
type tableSchema struct {
	columns    []string
	primaryKey PrimaryKeyInfo
	uniqueKeys [][]string // each unique index's columns, in index-column order
}

// SQLiteSchema reads schema information from a SQLite database using the
// table_info, index_list, and index_info pragmas. Results are cached per
// table for the lifetime of the reader.
type SQLiteSchema struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[string]*tableSchema
}

// NewSQLiteSchema creates a schema reader over a SQLite database handle.
func NewSQLiteSchema(db *sql.DB) *SQLiteSchema {
	return &SQLiteSchema{db: db, cache: make(map[string]*tableSchema)}
}

// PrimaryKey implements SchemaReader.
func (s *SQLiteSchema) PrimaryKey(table string) (PrimaryKeyInfo, error) {
	ts, err := s.tableSchema(table)
	if err != nil {
		return PrimaryKeyInfo{}, err
	}
	return ts.primaryKey, nil
}

// UniqueKeyColumns implements SchemaReader.
func (s *SQLiteSchema) UniqueKeyColumns(table string, candidates []string) ([]string, error) {
	ts, err := s.tableSchema(table)
	if err != nil {
		return nil, err
	}
	candidateSet := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		candidateSet[strings.ToLower(c)] = true
	}
	contained := func(cols []string) bool {
		for _, c := range cols {
			if !candidateSet[strings.ToLower(c)] {
				return false
			}
		}
		return len(cols) > 0
	}
	if contained(ts.primaryKey.Columns) {
		return ts.primaryKey.Columns, nil
	}
	for _, key := range ts.uniqueKeys {
		if contained(key) {
			return key, nil
		}
	}
	return nil, nil
}

// Columns implements SchemaReader.
func (s *SQLiteSchema) Columns(table string) ([]string, error) {
	ts, err := s.tableSchema(table)
	if err != nil {
		return nil, err
	}
	return ts.columns, nil
}

func (s *SQLiteSchema) tableSchema(table string) (*tableSchema, error) {
	s.mu.RLock()
	ts, ok := s.cache[strings.ToLower(table)]
	s.mu.RUnlock()
	if ok {
		return ts, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ts, ok := s.cache[strings.ToLower(table)]; ok {
		return ts, nil
	}

	ts, err := s.introspect(table)
	if err != nil {
		return nil, err
	}
	s.cache[strings.ToLower(table)] = ts
	return ts, nil
}

// introspect loads column, primary key, and unique index information.
func (s *SQLiteSchema) introspect(table string) (*tableSchema, error) {
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`

	rows, err := s.db.Query("PRAGMA table_info(" + quoted + ")")
	if err != nil {
		return nil, fmt.Errorf("introspecting table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	type pkColumn struct {
		name string
		rank int
		typ  string
	}
	ts := &tableSchema{}
	var pkCols []pkColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("introspecting table %q: %w", table, err)
		}
		ts.columns = append(ts.columns, name)
		if pk > 0 {
			pkCols = append(pkCols, pkColumn{name: name, rank: pk, typ: typ})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspecting table %q: %w", table, err)
	}
	if len(ts.columns) == 0 {
		return nil, fmt.Errorf("no such table: %s", table)
	}

	switch {
	case len(pkCols) == 0:
		// Implicit rowid table.
		ts.primaryKey = PrimaryKeyInfo{Columns: []string{"rowid"}, IsRowID: true}
	case len(pkCols) == 1 && strings.EqualFold(pkCols[0].typ, "INTEGER"):
		// INTEGER PRIMARY KEY is an alias for rowid.
		ts.primaryKey = PrimaryKeyInfo{Columns: []string{pkCols[0].name}, IsRowID: true}
	default:
		sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].rank < pkCols[j].rank })
		cols := make([]string, len(pkCols))
		for i, c := range pkCols {
			cols[i] = c.name
		}
		ts.primaryKey = PrimaryKeyInfo{Columns: cols}
	}

	uniqueKeys, err := s.uniqueIndexes(quoted)
	if err != nil {
		return nil, fmt.Errorf("introspecting table %q: %w", table, err)
	}
	ts.uniqueKeys = uniqueKeys
	return ts, nil
}

func (s *SQLiteSchema) uniqueIndexes(quotedTable string) ([][]string, error) {
	rows, err := s.db.Query("PRAGMA index_list(" + quotedTable + ")")
	if err != nil {
		return nil, err
	}
	var indexNames []string
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if unique == 1 && partial == 0 {
			indexNames = append(indexNames, name)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	keys := make([][]string, 0, len(indexNames))
	for _, idx := range indexNames {
		cols, err := s.indexColumns(idx)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			keys = append(keys, cols)
		}
	}
	return keys, nil
}

func (s *SQLiteSchema) indexColumns(index string) ([]string, error) {
	quoted := `"` + strings.ReplaceAll(index, `"`, `""`) + `"`
	rows, err := s.db.Query("PRAGMA index_info(" + quoted + ")")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if !name.Valid {
			// Expression index member, unusable for join resolution.
			return nil, nil
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}
