// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/rulesmith/internal/types"
)

/*
 * Type coercion for rule evaluation.
 *
 * Fact rows come from CSV-like sources, so most cells arrive as strings even
 * when they hold numbers. Two modes cover every comparison:
 *
 *   - numeric: strict. Strings are trimmed then parsed as float64; booleans
 *     and blank strings fail with ErrCoercionFailed. Used by aggregation.
 *   - value: lenient. Numeric-looking strings become float64, everything
 *     else keeps its text form. Used for row cells and rule targets, so
 *     "1000" in a rule and 1000.0 in a row compare numerically.
 *
 * Null values are kept distinct from coercion failures: a nil cell is
 * returned as nil and never matches, a malformed number is skipped by
 * aggregation.
 */

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// coerceNumeric converts value to float64.
func coerceNumeric(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, types.ErrCoercionFailed
		}
		return f, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, types.ErrCoercionFailed
		}
		return f, nil
	default:
		return 0, types.ErrCoercionFailed
	}
}

// coerceValue returns a float64 for anything numeric, nil for nil, and the
// text form otherwise.
func coerceValue(value any) any {
	if value == nil {
		return nil
	}
	if f, err := coerceNumeric(value); err == nil {
		return f
	}
	return textOf(value)
}

// textOf renders a scalar as text.
func textOf(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// parseDate accepts the date layouts common in tabular exports.
func parseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
