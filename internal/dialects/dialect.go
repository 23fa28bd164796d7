// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling identifier quoting, parameter
// placeholders, and literal value rendering.
package dialects

// Dialect defines database-specific behaviors used during SQL generation.
type Dialect interface {
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(string) string
	// Placeholder returns the positional parameter placeholder for the n-th
	// bound value (1-based).
	Placeholder(n int) string
	// QuoteLiteral renders a value as a freestanding SQL literal.
	// Used when a fragment must be rendered without parameter bindings.
	QuoteLiteral(value interface{}) (string, error)
	// SupportsDeleteLimit reports whether DELETE ... ORDER BY ... LIMIT is
	// accepted by the engine.
	SupportsDeleteLimit() bool
}

var dialects = make(map[string]Dialect)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := dialects[name]; ok {
		return d
	}
	panic("unsupported dialect: " + name)
}
