package dialects

import (
	"strings"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// QuoteLiteral renders a value as a MySQL literal.
func (d *MySQLDialect) QuoteLiteral(value interface{}) (string, error) {
	return quoteLiteral(value)
}

// SupportsDeleteLimit reports true: MySQL accepts DELETE ... ORDER BY ... LIMIT.
func (d *MySQLDialect) SupportsDeleteLimit() bool {
	return true
}
