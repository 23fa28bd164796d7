package core

import (
	"context"
	"errors"
)

// Fetch executes the relation's SELECT and returns adapted rows, running
// one extra query per to-many inclusion.
func (db *DB) Fetch(ctx context.Context, r Relation) ([]Row, error) {
	return FetchRows(ctx, db.conn(), r, db.dialect, db.schema)
}

// Fetch executes the relation within the transaction.
func (tx *Tx) Fetch(ctx context.Context, r Relation) ([]Row, error) {
	return FetchRows(ctx, tx.conn(), r, tx.db.dialect, tx.db.schema)
}

// FetchOne executes the relation and returns its first row, or ErrNoRows.
func (db *DB) FetchOne(ctx context.Context, r Relation) (Row, error) {
	return fetchOne(ctx, db.conn(), r)
}

// FetchOne executes the relation within the transaction.
func (tx *Tx) FetchOne(ctx context.Context, r Relation) (Row, error) {
	return fetchOne(ctx, tx.conn(), r)
}

func fetchOne(ctx context.Context, c conn, r Relation) (Row, error) {
	rows, err := FetchRows(ctx, c, r.Limit(1), c.db.dialect, c.db.schema)
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, ErrNoRows
	}
	return rows[0], nil
}

// FetchAll executes the relation's SELECT and scans every row into dest,
// which must be a pointer to a slice of structs or struct pointers. Columns
// map to fields through db:"" tags. Prefetches are not applied on this path.
func (db *DB) FetchAll(ctx context.Context, r Relation, dest interface{}) error {
	return fetchAll(ctx, db.conn(), r, dest)
}

// FetchAll executes the relation within the transaction.
func (tx *Tx) FetchAll(ctx context.Context, r Relation, dest interface{}) error {
	return fetchAll(ctx, tx.conn(), r, dest)
}

func fetchAll(ctx context.Context, c conn, r Relation, dest interface{}) error {
	q, err := GenerateSelect(r, c.db.dialect, c.db.schema)
	if err != nil {
		return err
	}
	rows, err := c.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return globalScanner.scanStructs(rows, dest)
}

// FetchStruct executes the relation and scans its first row into dest, a
// pointer to a struct. Returns ErrNoRows when the query matches nothing.
func (db *DB) FetchStruct(ctx context.Context, r Relation, dest interface{}) error {
	return fetchStruct(ctx, db.conn(), r, dest)
}

// FetchStruct executes the relation within the transaction.
func (tx *Tx) FetchStruct(ctx context.Context, r Relation, dest interface{}) error {
	return fetchStruct(ctx, tx.conn(), r, dest)
}

func fetchStruct(ctx context.Context, c conn, r Relation, dest interface{}) error {
	q, err := GenerateSelect(r.Limit(1), c.db.dialect, c.db.schema)
	if err != nil {
		return err
	}
	rows, err := c.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrNoRows
	}
	return globalScanner.scanStruct(rows, dest)
}

// FetchCount executes a counting query for the relation.
func (db *DB) FetchCount(ctx context.Context, r Relation) (int64, error) {
	return fetchCount(ctx, db.conn(), r)
}

// FetchCount executes the counting query within the transaction.
func (tx *Tx) FetchCount(ctx context.Context, r Relation) (int64, error) {
	return fetchCount(ctx, tx.conn(), r)
}

func fetchCount(ctx context.Context, c conn, r Relation) (int64, error) {
	q, err := GenerateCount(r, c.db.dialect, c.db.schema)
	if err != nil {
		return 0, err
	}
	rows, err := c.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("count query returned no rows")
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteAll executes a DELETE for the relation and returns the number of
// deleted rows.
func (db *DB) DeleteAll(ctx context.Context, r Relation) (int64, error) {
	return deleteAll(ctx, db.conn(), r)
}

// DeleteAll executes the DELETE within the transaction.
func (tx *Tx) DeleteAll(ctx context.Context, r Relation) (int64, error) {
	return deleteAll(ctx, tx.conn(), r)
}

func deleteAll(ctx context.Context, c conn, r Relation) (int64, error) {
	q, err := GenerateDelete(r, c.db.dialect, c.db.schema)
	if err != nil {
		return 0, err
	}
	result, err := c.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
