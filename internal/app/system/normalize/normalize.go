// Package normalize canonicalizes user-supplied values before validation
// and storage, so lookups and uniqueness checks compare like with like.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role lowercases and trims a role string ("user", "admin").
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
