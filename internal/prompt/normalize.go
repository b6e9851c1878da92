// Package prompt builds model instructions from a user requirement and the
// schema registry, and repairs inbound user text before it is stored.
package prompt

import "strings"

// Spaced-out renderings of keywords that chat inputs occasionally produce
// ("A N D" for "AND"). Matched case-sensitively as whole tokens.
var spacedWords = [][]string{
	{"A", "N", "D"},
	{"O", "R"},
	{"o", "n"},
}

// NormalizeText collapses whitespace runs to single spaces, trims the ends,
// and rejoins letter-per-token keywords. Applying it twice is a no-op.
func NormalizeText(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ""
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if word, n := matchSpaced(tokens[i:]); n > 0 {
			out = append(out, word)
			i += n
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return strings.Join(out, " ")
}

func matchSpaced(tokens []string) (string, int) {
	for _, letters := range spacedWords {
		if len(tokens) < len(letters) {
			continue
		}
		ok := true
		for j, l := range letters {
			if tokens[j] != l {
				ok = false
				break
			}
		}
		if ok {
			return strings.Join(letters, ""), len(letters)
		}
	}
	return "", 0
}
