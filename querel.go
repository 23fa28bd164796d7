// Package querel provides a composable, type-safe SQL query construction
// and execution layer for Go with support for PostgreSQL, MySQL, and
// SQLite. Queries are built as immutable relation values with associations,
// joins, and to-many prefetching, and executed with reflection-based struct
// scanning, prepared statement caching, and OpenTelemetry tracing out of
// the box.
package querel

import (
	"github.com/coregx/querel/internal/core"
	"github.com/coregx/querel/internal/dialects"
	"github.com/coregx/querel/internal/logger"
	"github.com/coregx/querel/internal/tracer"
)

type (
	// DB represents the main database connection with caching and tracing capabilities.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Tx represents a database transaction.
	Tx = core.Tx
	// TxOptions represents transaction options including isolation level.
	TxOptions = core.TxOptions

	// Relation is an immutable description of a query: a table, a
	// selection, filters, ordering, joins, and prefetched associations.
	Relation = core.Relation
	// Association describes a foreign-key relationship between two tables.
	Association = core.Association
	// TableAlias names a table occurrence so that several references to
	// the same table can be told apart.
	TableAlias = core.TableAlias
	// JoinOperator selects between required (inner) and optional (left) joins.
	JoinOperator = core.JoinOperator

	// Expr is a composable SQL expression.
	Expr = core.Expr
	// Selectable is one term of a relation's selection.
	Selectable = core.Selectable
	// OrderingTerm is one term of an ORDER BY clause.
	OrderingTerm = core.OrderingTerm

	// Row is one adapted record of an executed query.
	Row = core.Row
	// ScopeLayout maps a join tree onto flat result columns.
	ScopeLayout = core.ScopeLayout
	// GeneratedQuery is parameterized SQL plus its arguments and row layout.
	GeneratedQuery = core.GeneratedQuery

	// SchemaReader supplies primary key and column metadata.
	SchemaReader = core.SchemaReader
	// PrimaryKeyInfo describes a table's primary key.
	PrimaryKeyInfo = core.PrimaryKeyInfo
	// SQLiteSchema reads schema metadata from a live SQLite connection.
	SQLiteSchema = core.SQLiteSchema

	// ConfigError reports a query construction bug, such as an alias used
	// for two tables or a DELETE on a grouped relation.
	ConfigError = core.ConfigError
	// ConfigKind categorizes configuration errors.
	ConfigKind = core.ConfigKind

	// Dialect abstracts identifier quoting and parameter placeholders per
	// database engine.
	Dialect = dialects.Dialect

	// Logger is the structured logging interface query execution reports to.
	Logger = logger.Logger
	// Tracer is the tracing interface query execution reports to.
	Tracer = tracer.Tracer
)

// Join operators.
const (
	JoinRequired = core.JoinRequired
	JoinOptional = core.JoinOptional
)

// Configuration error kinds.
const (
	ReusedAlias                = core.ReusedAlias
	AmbiguousAliasName         = core.AmbiguousAliasName
	AmbiguousForeignKey        = core.AmbiguousForeignKey
	CompositeKeyFilter         = core.CompositeKeyFilter
	RequiredJoinBehindOptional = core.RequiredJoinBehindOptional
	UnmergeableJoin            = core.UnmergeableJoin
	UngroupableDelete          = core.UngroupableDelete
	EmptySelection             = core.EmptySelection
	ColumnNotSelected          = core.ColumnNotSelected
	MissingPrimaryKey          = core.MissingPrimaryKey
	UnknownTerm                = core.UnknownTerm
)

// Sentinel errors.
var (
	ErrNoRows             = core.ErrNoRows
	ErrTxDone             = core.ErrTxDone
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
)

// Re-export core functions.
var (
	Open                  = core.Open
	NewDB                 = core.NewDB
	WrapDB                = core.WrapDB
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithSensitiveFields   = core.WithSensitiveFields
	WithTracer            = core.WithTracer
	WithSchema            = core.WithSchema

	// Relation construction
	Table    = core.Table
	Subquery = core.Subquery
	NewAlias = core.NewAlias

	// Associations
	BelongsTo = core.BelongsTo
	HasMany   = core.HasMany

	// Selection and ordering
	All   = core.All
	Sel   = core.Sel
	SelAs = core.SelAs
	Asc   = core.Asc
	Desc  = core.Desc

	// Expression builders
	Col            = core.Col
	Val            = core.Val
	Raw            = core.Raw
	Eq             = core.Eq
	NotEq          = core.NotEq
	GreaterThan    = core.GreaterThan
	LessThan       = core.LessThan
	GreaterOrEqual = core.GreaterOrEqual
	LessOrEqual    = core.LessOrEqual
	Like           = core.Like
	NotLike        = core.NotLike
	And            = core.And
	Or             = core.Or
	Not            = core.Not
	In             = core.In
	NotIn          = core.NotIn
	Between        = core.Between
	NotBetween     = core.NotBetween
	Exists         = core.Exists
	NotExists      = core.NotExists
	Fn             = core.Fn
	Collate        = core.Collate
	Tuple          = core.Tuple

	// SQL generation without a connection
	GenerateSelect = core.GenerateSelect
	GenerateDelete = core.GenerateDelete
	GenerateCount  = core.GenerateCount
	SQLLiteral     = core.SQLLiteral

	// Schema and errors
	NewSQLiteSchema = core.NewSQLiteSchema
	IsConfigError   = core.IsConfigError

	// Dialect registry
	GetDialect      = dialects.GetDialect
	RegisterDialect = dialects.RegisterDialect

	// Observability adapters
	NewSlogAdapter = logger.NewSlogAdapter
	NewOtelTracer  = tracer.NewOtelTracer
)
