package dialects

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("pgx", &PostgresDialect{})
}

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, ...).
func (d *PostgresDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// QuoteLiteral renders a value as a PostgreSQL literal.
func (d *PostgresDialect) QuoteLiteral(value interface{}) (string, error) {
	switch v := value.(type) {
	case []byte:
		return `'\x` + hex.EncodeToString(v) + "'", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return quoteLiteral(value)
}

// SupportsDeleteLimit reports false: PostgreSQL has no DELETE ... LIMIT.
func (d *PostgresDialect) SupportsDeleteLimit() bool {
	return false
}
