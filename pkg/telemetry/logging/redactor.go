package logging

import (
	"regexp"
	"strings"
)

// Redactor scrubs secret material from log fields. Redaction happens in
// two layers: values under sensitive key names are truncated to a short
// prefix, and string values anywhere are run through secret-shaped
// regexes.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in secret patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}

	add := func(name, expr, replacement string) {
		r.patterns = append(r.patterns, &redactPattern{
			name:        name,
			regex:       regexp.MustCompile(expr),
			replacement: replacement,
		})
	}

	// Google API keys (AIza prefix, 39 chars total).
	add("google_api_key", `AIza[0-9A-Za-z\-_]{35}`, "AIza***")

	// Generic api_key / apikey / api-key assignments.
	add("api_key", `(?i)(api[-_]?key[-_:=]\s*)[a-zA-Z0-9\-_]+`, "${1}***")

	// Bearer tokens.
	add("bearer_token", `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***")

	// Keys passed as URL query parameters.
	add("url_key_param", `([?&]key=)[^&\s]+`, "${1}***")

	// Generic password fields.
	add("password", `(?i)(password|passwd|pwd)[:=]\s*\S+`, "${1}: ***")

	return r
}

// RedactString scrubs secret-shaped substrings from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	redacted := value
	for _, p := range r.patterns {
		redacted = p.regex.ReplaceAllString(redacted, p.replacement)
	}
	return redacted
}

// IsSensitiveKey reports whether a log attribute key names secret data.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := []string{
		"secret", "token", "api_key", "apikey",
		"password", "passwd", "pwd",
		"auth", "authorization",
		"private_key", "privatekey",
		"credential_key",
	}

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactValue redacts a value under a sensitive key, keeping a short
// prefix for identification.
func (r *Redactor) RedactValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "***"
	}
	return value[:4] + "***"
}
