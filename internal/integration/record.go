package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Record is one result row keyed by upper-case column name.
type Record map[string]any

// String returns the field as text. Missing and NULL fields report false.
func (r Record) String(field string) (string, bool) {
	switch v := r[field].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case time.Time:
		return v.Format(time.DateOnly), true
	case pgtype.Text:
		return v.String, v.Valid
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// StringOr returns the field as text, or orElse when it is NULL.
func (r Record) StringOr(field, orElse string) string {
	if s, ok := r.String(field); ok {
		return s
	}
	return orElse
}

// Number returns the field as a float. Missing, NULL and non-numeric fields report false.
func (r Record) Number(field string) (float64, bool) {
	switch v := r[field].(type) {
	case int:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	default:
		return 0, false
	}
}

// YesNo reports whether the field holds "Y" in any case.
func (r Record) YesNo(field string) bool {
	s, ok := r.String(field)
	return ok && strings.EqualFold(strings.TrimSpace(s), "Y")
}
