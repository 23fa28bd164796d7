package core

import (
	"errors"
	"fmt"
)

// Predefined errors returned by querel database operations.
var (
	// ErrNoRows is returned when a query that expects rows returns no results.
	ErrNoRows = errors.New("no rows in result set")
	// ErrTxDone is returned when operating on an already committed or rolled back transaction.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
	// ErrUnsupportedDialect is returned when an unsupported database dialect is specified.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
)

// ConfigKind categorizes configuration errors: bugs in the calling code
// surfaced during SQL generation. They are not data-dependent runtime
// failures and are not meant to be retried.
type ConfigKind int

// Configuration error categories.
const (
	// ReusedAlias: one alias object was used to denote two different tables.
	ReusedAlias ConfigKind = iota
	// AmbiguousAliasName: two user-chosen alias names collide in one query.
	AmbiguousAliasName
	// AmbiguousForeignKey: no foreign key could be inferred, or several could.
	AmbiguousForeignKey
	// CompositeKeyFilter: a single-column key filter was applied to a table
	// with a composite primary key.
	CompositeKeyFilter
	// RequiredJoinBehindOptional: a required join was chained behind an
	// optional join, which has no valid SQL rendering.
	RequiredJoinBehindOptional
	// UnmergeableJoin: two joins under the same association key carry
	// different join conditions.
	UnmergeableJoin
	// UngroupableDelete: DELETE was requested on a relation with GROUP BY,
	// HAVING, joins, or an unsupported LIMIT.
	UngroupableDelete
	// EmptySelection: a relation reached SQL generation with nothing selected.
	EmptySelection
	// ColumnNotSelected: a column required for prefetch grouping is missing
	// from the statement's selected columns.
	ColumnNotSelected
	// MissingPrimaryKey: foreign key inference found no usable destination key.
	MissingPrimaryKey
	// UnknownTerm: a renderer met an expression, selection, or ordering term
	// outside the closed variant set. Indicates a bug in this package, not in
	// the caller's query.
	UnknownTerm
)

// ConfigError reports a caller/configuration mistake detected while building
// or generating SQL. Distinct from execution errors, which are propagated
// unchanged from the driver.
type ConfigError struct {
	Kind    ConfigKind
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// configErrorf builds a ConfigError with a formatted message.
func configErrorf(kind ConfigKind, format string, args ...interface{}) error {
	return &ConfigError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a configuration error, optionally of a
// specific kind.
func IsConfigError(err error, kind ConfigKind) bool {
	var ce *ConfigError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
