// Package security masks credentials before they reach logs or chat output.
package security

import (
	"regexp"
	"strings"
)

// sensitivePatterns match credentials embedded in URLs and error strings.
// The first capture group is kept, the second is masked.
var sensitivePatterns = []*regexp.Regexp{
	// https://api.telegram.org/bot123456:ABC.../sendMessage
	regexp.MustCompile(`(/bot)(\d+:[A-Za-z0-9_-]+)`),
	regexp.MustCompile(`(?i)([?&](?:apikey|api_key|access_token|token)=)([^&\s"']+)`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|access[_-]?token|bot[_-]?token|bearer)[=:\s]+["']?)([^\s"'&]+)`),
}

// MaskCredential keeps the first and last four characters of a credential.
func MaskCredential(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// Redact masks every credential found in s.
func Redact(s string) string {
	for _, p := range sensitivePatterns {
		s = p.ReplaceAllStringFunc(s, func(match string) string {
			m := p.FindStringSubmatch(match)
			return m[1] + MaskCredential(m[2])
		})
	}
	return s
}

// ContainsSensitiveData reports whether s holds something Redact would mask.
func ContainsSensitiveData(s string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// RedactedError hides credentials in the message of the wrapped error while
// keeping it available to errors.Is and errors.As.
type RedactedError struct {
	err error
}

// RedactError wraps err so its message is redacted. It returns nil for nil.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	return &RedactedError{err: err}
}

func (e *RedactedError) Error() string { return Redact(e.err.Error()) }

func (e *RedactedError) Unwrap() error { return e.err }
