package logger

import (
	"fmt"
	"strings"
)

// masked replaces sensitive parameter values in log output.
const masked = "[redacted]"

// maxLoggedValueLen truncates long parameter values before logging.
const maxLoggedValueLen = 64

// defaultSensitiveFields cover the column names that most commonly hold
// secrets. Callers with their own naming conventions supply their own list.
var defaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"secret", "token", "apikey", "api_key",
	"auth", "authorization",
	"ssn", "card_number", "cvv",
}

// Sanitizer masks bound parameters of statements that touch sensitive
// columns. The generator quotes every column name, so a sensitive column
// appearing in the SQL text means a bound value may be a secret; because
// parameter positions cannot be attributed to columns without parsing, all
// string parameters of such a statement are masked.
type Sanitizer struct {
	fields []string // lower-cased column names
}

// NewSanitizer builds a sanitizer for the given column names, or the
// default set when none are given. Matching is case-insensitive.
func NewSanitizer(fields []string) *Sanitizer {
	if len(fields) == 0 {
		fields = defaultSensitiveFields
	}
	lowered := make([]string, len(fields))
	for i, f := range fields {
		lowered[i] = strings.ToLower(f)
	}
	return &Sanitizer{fields: lowered}
}

// MaskParams returns params with string values masked when sql references a
// sensitive column. The input slice is never modified.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.referencesSensitiveColumn(sql) {
		return params
	}
	out := make([]interface{}, len(params))
	for i, p := range params {
		switch p.(type) {
		case string, []byte:
			out[i] = masked
		default:
			out[i] = p
		}
	}
	return out
}

// referencesSensitiveColumn reports whether the statement names one of the
// sensitive columns as a whole identifier.
func (s *Sanitizer) referencesSensitiveColumn(sql string) bool {
	lowered := strings.ToLower(sql)
	for _, f := range s.fields {
		for at := 0; ; {
			i := strings.Index(lowered[at:], f)
			if i < 0 {
				break
			}
			start := at + i
			end := start + len(f)
			if !isIdentChar(byteAt(lowered, start-1)) && !isIdentChar(byteAt(lowered, end)) {
				return true
			}
			at = end
		}
	}
	return false
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func isIdentChar(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// FormatParams renders parameters for a log field, truncating long values.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		if p == nil {
			parts[i] = "NULL"
			continue
		}
		v := fmt.Sprintf("%v", p)
		if len(v) > maxLoggedValueLen {
			v = v[:maxLoggedValueLen] + "..."
		}
		parts[i] = v
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
