package dialects

import (
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// QuoteLiteral renders a value as a SQLite literal.
func (d *SQLiteDialect) QuoteLiteral(value interface{}) (string, error) {
	return quoteLiteral(value)
}

// SupportsDeleteLimit reports false: DELETE ... LIMIT requires the optional
// SQLITE_ENABLE_UPDATE_DELETE_LIMIT compile flag, absent from stock builds.
func (d *SQLiteDialect) SupportsDeleteLimit() bool {
	return false
}
