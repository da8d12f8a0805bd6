package validators

import (
	"strings"
	"unicode"
)

// SanitizeString prepares free text from third parties for storage: control characters
// become spaces, surrounding space is trimmed, and the result is cut to maxLen runes.
// maxLen <= 0 disables the cut.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input))
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
