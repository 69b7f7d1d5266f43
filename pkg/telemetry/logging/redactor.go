package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// RedactedValue replaces sensitive attribute values.
const RedactedValue = "[REDACTED]"

var defaultSensitiveKeys = []string{
	"token",
	"password",
	"secret",
	"api_key",
	"apikey",
	"authorization",
	"credentials",
}

var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9\-._~+/]+=*`)

// Redactor scrubs credential-like values from log attributes. Session
// metadata is caller-supplied and ends up in logs, so it is the main source.
type Redactor struct {
	keys []string
}

// NewRedactor creates a redactor matching the built-in keys plus extra.
// Keys match case-insensitively as substrings of the attribute key.
func NewRedactor(extra []string) *Redactor {
	keys := make([]string, 0, len(defaultSensitiveKeys)+len(extra))
	keys = append(keys, defaultSensitiveKeys...)
	for _, k := range extra {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keys = append(keys, k)
		}
	}
	return &Redactor{keys: keys}
}

// sensitive reports whether key names a credential.
func (r *Redactor) sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}

// ReplaceAttr implements slog.HandlerOptions.ReplaceAttr.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if r.sensitive(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); bearerPattern.MatchString(s) {
			return slog.String(a.Key, bearerPattern.ReplaceAllString(s, "Bearer "+RedactedValue))
		}
	case slog.KindAny:
		if m, ok := v.Any().(map[string]any); ok {
			return slog.Any(a.Key, r.RedactMap(m))
		}
	}
	return a
}

// RedactMap returns a copy of m with sensitive entries replaced. Nested maps
// are walked.
func (r *Redactor) RedactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case r.sensitive(k):
			out[k] = RedactedValue
		default:
			if nested, ok := v.(map[string]any); ok {
				out[k] = r.RedactMap(nested)
			} else {
				out[k] = v
			}
		}
	}
	return out
}
