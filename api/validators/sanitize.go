package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims, folds runs of whitespace and control characters into
// single spaces, and truncates to maxLen runes so multi-byte text is never
// split mid-character. maxLen <= 0 disables truncation.
func SanitizeString(input string, maxLen int) string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	cleaned := strings.Join(fields, " ")
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
