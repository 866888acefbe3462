package db

import (
	"fmt"
	"strings"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

// IsReservedWord reports whether s collides with a SQL keyword. Quoting makes
// these safe to execute, but the API rejects them up front to keep raw queries
// against user tables painless.
func IsReservedWord(s string) bool {
	_, ok := reserved[strings.ToLower(s)]
	return ok
}

func pgIdent(s string) string { return `"` + strings.ToLower(s) + `"` }
func myIdent(s string) string { return "`" + strings.ToLower(s) + "`" }

// Expr marks a value that is already a SQL expression (e.g. a default read
// back from the inspector) and must not be quoted again.
type Expr string

// quoteDefault renders a default value as a SQL literal. Strings are quoted
// with doubled single quotes; numbers and bools pass through.
func quoteDefault(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case Expr:
		return string(t)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", t)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", t), "'", "''") + "'"
	}
}
