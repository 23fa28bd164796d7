package dialects

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// quoteString renders a string literal with single quotes, doubling embedded
// quotes per the SQL standard.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteLiteral renders common Go values as SQL literals shared by all dialects.
// NULL is fast-pathed; strings and blobs go through engine-safe quoting.
func quoteLiteral(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return quoteString(v), nil
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'", nil
	case time.Time:
		return quoteString(v.UTC().Format("2006-01-02 15:04:05.999")), nil
	case fmt.Stringer:
		return quoteString(v.String()), nil
	default:
		return "", fmt.Errorf("cannot render %T as a SQL literal", value)
	}
}
