package rules

import "strings"

// ExtractJSONObject returns the span from the first '{' to the last '}' of
// text. Prose and code fences around the object are dropped.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
