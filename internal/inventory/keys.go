package inventory

import "strings"

// DefaultPlaceholder marks a code that is not known yet.
const DefaultPlaceholder = "pendiente"

// Normalize canonicalizes a code for matching: trims and upper-cases.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Keys decides which codes may be used as match keys.
type Keys struct {
	Placeholder string
}

// NewKeys returns Keys for placeholder, falling back to DefaultPlaceholder.
func NewKeys(placeholder string) Keys {
	if strings.TrimSpace(placeholder) == "" {
		placeholder = DefaultPlaceholder
	}
	return Keys{Placeholder: strings.TrimSpace(placeholder)}
}

// IsUnknown reports whether code is blank or the placeholder.
func (k Keys) IsUnknown(code string) bool {
	n := Normalize(code)
	return n == "" || n == Normalize(k.Placeholder)
}

// MatchKey returns the normalized key for code, or false when the code must
// never take part in matching.
func (k Keys) MatchKey(code string) (string, bool) {
	if k.IsUnknown(code) {
		return "", false
	}
	return Normalize(code), true
}

// OrPlaceholder returns code trimmed, or the placeholder when code is unknown.
func (k Keys) OrPlaceholder(code string) string {
	if k.IsUnknown(code) {
		return k.Placeholder
	}
	return strings.TrimSpace(code)
}
