package rules

import (
	"fmt"
	"strings"
)

// Alias rewrites a field whose lower-cased name contains Match to Field.
type Alias struct {
	Match string
	Field string
}

// DefaultAliases returns the built-in alias table in priority order.
func DefaultAliases() []Alias {
	return []Alias{
		{Match: "amount", Field: "payment_amount"},
		{Match: "status", Field: "account_status"},
		{Match: "score", Field: "credit_score"},
	}
}

// ParseAliases reads "match:field" entries, keeping their order.
func ParseAliases(entries []string) ([]Alias, error) {
	out := make([]Alias, 0, len(entries))
	for _, e := range entries {
		match, field, ok := strings.Cut(e, ":")
		match = strings.ToLower(strings.TrimSpace(match))
		field = strings.TrimSpace(field)
		if !ok || match == "" || field == "" {
			return nil, fmt.Errorf("invalid alias %q: want match:field", e)
		}
		out = append(out, Alias{Match: match, Field: field})
	}
	return out, nil
}

// lookupAlias returns the target of the first alias whose Match is a
// substring of the lower-cased field.
func lookupAlias(aliases []Alias, field string) (string, bool) {
	lower := strings.ToLower(field)
	for _, a := range aliases {
		if strings.Contains(lower, strings.ToLower(a.Match)) {
			return a.Field, true
		}
	}
	return "", false
}
