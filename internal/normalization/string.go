package normalization

import "strings"

// ParseInputString is the canonical key form for free-text enum values.
func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
