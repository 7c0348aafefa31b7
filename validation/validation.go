// Package validation provides local input validation for checkout data:
// email grammar, session-id charset, and markup sanitization. Everything
// here runs before any network call.
package validation

import (
	"regexp"
	"strings"
)

var (
	// emailRegex matches standard email addresses.
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// sessionIDRegex matches opaque session tokens. A malformed id is a
	// tampering signal and is rejected rather than sanitized.
	sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// tagRegex matches markup tags stripped during sanitization.
	tagRegex = regexp.MustCompile(`<[^>]*>`)
)

// ValidEmail reports whether s is a well-formed email address.
func ValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ValidSessionID reports whether s is a non-empty token of
// [A-Za-z0-9_-] characters.
func ValidSessionID(s string) bool {
	return sessionIDRegex.MatchString(s)
}

// Sanitize strips markup tags and surrounding whitespace from user input
// before it is sent downstream.
func Sanitize(s string) string {
	return strings.TrimSpace(tagRegex.ReplaceAllString(s, ""))
}
