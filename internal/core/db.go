// Package core implements the relational query model: composable
// expressions, relations with ordered join trees, SQL generation, row
// adaptation, and prefetching, together with connection management,
// statement caching, and result scanning.
package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/querel/internal/cache"
	"github.com/coregx/querel/internal/dialects"
	"github.com/coregx/querel/internal/logger"
	"github.com/coregx/querel/internal/tracer"
)

// DB wraps a *sql.DB with a dialect, a schema reader, a prepared statement
// cache, and observability hooks.
type DB struct {
	sqlDB      *sql.DB
	driverName string
	dialect    dialects.Dialect
	schema     SchemaReader
	stmtCache  *cache.StmtCache
	logger     logger.Logger
	sanitizer  *logger.Sanitizer
	tracer     tracer.Tracer
}

// Tx represents a database transaction. Queries executed through it bypass
// the statement cache.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// TxOptions specifies transaction isolation and read-only mode.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.New(capacity)
	}
}

// WithLogger enables structured query logging.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// WithSensitiveFields configures the parameter sanitizer's field list.
func WithSensitiveFields(fields []string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer enables distributed tracing of query execution.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		db.tracer = t
	}
}

// WithSchema overrides the schema reader used for primary key lookup and
// column enumeration.
func WithSchema(schema SchemaReader) Option {
	return func(db *DB) {
		db.schema = schema
	}
}

// NewDB opens a database connection for the given driver.
func NewDB(driverName, dsn string) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return WrapDB(driverName, sqlDB), nil
}

// WrapDB builds a DB around an already opened *sql.DB.
func WrapDB(driverName string, sqlDB *sql.DB, opts ...Option) *DB {
	db := &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		dialect:    dialects.GetDialect(driverName),
		stmtCache:  cache.New(0),
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.schema == nil && isSQLiteDriver(driverName) {
		db.schema = NewSQLiteSchema(sqlDB)
	}
	return db
}

// Open opens a database connection with options.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return WrapDB(driverName, sqlDB, opts...), nil
}

func isSQLiteDriver(name string) bool {
	return name == "sqlite" || name == "sqlite3"
}

// Close releases cached statements and the underlying connection pool.
func (db *DB) Close() error {
	db.stmtCache.Clear()
	return db.sqlDB.Close()
}

// Dialect returns the SQL dialect the connection renders with.
func (db *DB) Dialect() dialects.Dialect {
	return db.dialect
}

// Schema returns the schema reader.
func (db *DB) Schema() SchemaReader {
	return db.schema
}

// SQLDB exposes the underlying *sql.DB for raw access.
func (db *DB) SQLDB() *sql.DB {
	return db.sqlDB
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with the given options.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly}
	}
	tx, err := db.sqlDB.BeginTx(ctx, sqlOpts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: db}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

// ExecContext executes a raw SQL statement (DDL, INSERT, UPDATE, DELETE).
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.sqlDB.ExecContext(ctx, query, args...)
}

// QueryContext executes a raw SQL query and returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.sqlDB.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a raw SQL query expected to return at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.sqlDB.QueryRowContext(ctx, query, args...)
}

// ExecContext executes a raw SQL statement within the transaction.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return tx.tx.ExecContext(ctx, query, args...)
}

// QueryContext executes a raw SQL query within the transaction.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return tx.tx.QueryContext(ctx, query, args...)
}

// Transactional runs fn inside a transaction, committing on nil return and
// rolling back on error or panic.
func (db *DB) Transactional(ctx context.Context, fn func(tx *Tx) error) error {
	return db.TransactionalTx(ctx, nil, fn)
}

// TransactionalTx is Transactional with explicit transaction options.
func (db *DB) TransactionalTx(ctx context.Context, opts *TxOptions, fn func(tx *Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// conn is the execution seam shared by DB and Tx: it prepares statements
// (cached for DB, per-call for Tx), executes, logs, and traces.
type conn struct {
	db *DB
	tx *sql.Tx
}

func (db *DB) conn() conn { return conn{db: db} }
func (tx *Tx) conn() conn { return conn{db: tx.db, tx: tx.tx} }

// prepare returns a statement and a release callback the caller must run
// once done with it. Transactions bypass the statement cache.
func (c conn) prepare(ctx context.Context, query string) (*sql.Stmt, func(), error) {
	if c.tx != nil {
		stmt, err := c.tx.PrepareContext(ctx, query)
		if err != nil {
			return nil, nil, err
		}
		return stmt, func() { _ = stmt.Close() }, nil
	}
	if held, ok := c.db.stmtCache.Acquire(query); ok {
		return held.Stmt, held.Release, nil
	}
	stmt, err := c.db.sqlDB.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	held := c.db.stmtCache.Put(query, stmt)
	return held.Stmt, held.Release, nil
}

// QueryContext implements Executor.
func (c conn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := c.db.tracer.StartSpan(ctx, tracer.SpanQueryRows)
	defer span.End()

	start := time.Now()
	stmt, release, err := c.prepare(ctx, query)
	if err != nil {
		c.observe(span, query, args, time.Since(start), -1, err)
		return nil, err
	}
	defer release()

	rows, err := stmt.QueryContext(ctx, args...)
	c.observe(span, query, args, time.Since(start), -1, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecContext prepares and executes a statement that returns no rows.
func (c conn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := c.db.tracer.StartSpan(ctx, tracer.SpanQueryExec)
	defer span.End()

	start := time.Now()
	stmt, release, err := c.prepare(ctx, query)
	if err != nil {
		c.observe(span, query, args, time.Since(start), 0, err)
		return nil, err
	}
	defer release()

	result, err := stmt.ExecContext(ctx, args...)

	var rowsAffected int64
	if result != nil {
		rowsAffected, _ = result.RowsAffected()
	}
	c.observe(span, query, args, time.Since(start), rowsAffected, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// observe records a finished (or failed) statement on the span and the
// logger. rows is -1 for row-set queries, where the count is unknown until
// the caller drains the rows.
func (c conn) observe(span tracer.Span, query string, args []interface{}, elapsed time.Duration, rows int64, err error) {
	tracer.Annotate(span, tracer.Query{
		SQL:     query,
		Driver:  c.db.driverName,
		Elapsed: elapsed,
		Rows:    rows,
		Err:     err,
	})
	logger.LogQuery(c.db.logger, c.db.sanitizer, logger.QueryEvent{
		SQL:     query,
		Params:  args,
		Driver:  c.db.driverName,
		Elapsed: elapsed,
		Rows:    rows,
		Err:     err,
	})
}
