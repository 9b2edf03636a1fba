package logger

import (
	"log/slog"
	"strings"

	"github.com/Hommy-master/browserbox/pkg/token"
)

// Key fragments whose values are always hidden.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
}

const redactedValue = "***REDACTED***"

// redactSensitive masks API keys wherever they appear and hides values of
// sensitive-looking keys.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if IsSensitiveValue(s) {
			return slog.String(a.Key, token.Mask(s))
		}
		if s != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// RedactString masks s if it is an API key.
func RedactString(s string) string {
	if IsSensitiveValue(s) {
		return token.Mask(s)
	}
	return s
}

// IsSensitiveKey reports whether a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether s looks like an API key.
func IsSensitiveValue(s string) bool {
	return strings.HasPrefix(s, token.Prefix)
}
