// internal/rules/operators.go
package rules

import (
	"strings"

	"github.com/solatis/rulesmith/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the seven rule operators with type-aware comparison rules.
 * Values should already be coerced via coerceValue() before reaching Compare().
 *
 * Operators:
 *   - = / !=: numeric equality when both sides are numbers, otherwise
 *     case-insensitive string equality
 *   - < / <= / > / >=: numeric ordering; two non-numeric strings fall back to
 *     lexical ordering so ISO dates compare correctly
 *   - contains: case-insensitive substring on the text form of both sides
 *
 * Incomparable operands (a number against a non-numeric string for ordering)
 * never match.
 */

// Compare applies op to compare value against target.
func Compare(op types.Operator, value, target any) bool {
	switch op {
	case types.OpEq:
		return compareEqual(value, target)
	case types.OpNeq:
		return !compareEqual(value, target)
	case types.OpLt:
		c, ok := compareOrdered(value, target)
		return ok && c < 0
	case types.OpLte:
		c, ok := compareOrdered(value, target)
		return ok && c <= 0
	case types.OpGt:
		c, ok := compareOrdered(value, target)
		return ok && c > 0
	case types.OpGte:
		c, ok := compareOrdered(value, target)
		return ok && c >= 0
	case types.OpContains:
		return compareContains(value, target)
	default:
		return false
	}
}

// compareEqual performs equality comparison with numeric type coercion.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if a == nil || b == nil {
		return a == b
	}
	return strings.EqualFold(textOf(a), textOf(b))
}

// compareOrdered performs three-way comparison (-1/0/1).
// Returns ok=false for incomparable operands.
func compareOrdered(a, b any) (int, bool) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	if !oka || !okb {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareContains checks case-insensitive substring containment.
func compareContains(value, needle any) bool {
	if value == nil || needle == nil {
		return false
	}
	return strings.Contains(strings.ToLower(textOf(value)), strings.ToLower(textOf(needle)))
}
