package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value and header formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(x-goog-api-key|api[_-]?key|gemini[_-]?api[_-]?key|key)\b\s*[:=]\s*[^\s"'&]+`)

	// Google API keys are "AIza" followed by 35 URL-safe characters.
	googleKeyRe = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = googleKeyRe.ReplaceAllString(out, "<redacted_key>")
	return strings.TrimSpace(out)
}
