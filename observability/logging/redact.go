package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces credentials in vaultd logs.
const RedactedValue = "[REDACTED]"

// secretKeys always carry credentials: bearer tokens from the Authorization
// header, the JWT HMAC secret and OTLP exporter headers.
var secretKeys = map[string]struct{}{
	"authorization": {},
	"bearer":        {},
	"token":         {},
	"hmac_secret":   {},
	"secret":        {},
	"otlp_headers":  {},
}

// safeKeys may be logged verbatim through MaskField.
var safeKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"op":        {},
	"outcome":   {},
	"reason":    {},
	"component": {},
	"pool":      {},
	"address":   {},
	"header":    {},
}

func normalize(key string) string { return strings.ToLower(strings.TrimSpace(key)) }

// IsSecret reports whether key names a credential that must never be logged.
func IsSecret(key string) bool {
	_, ok := secretKeys[normalize(key)]
	return ok
}

// MaskField logs value under key only when the key is known safe. Anything
// else, caller-supplied strings from requests included, is redacted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	if _, ok := safeKeys[normalize(key)]; ok && !looksLikeBearer(value) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// scrub is applied to every attribute the handler writes, so a secret passed
// with plain slog.String is still masked.
func scrub(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || attr.Value.String() == "" {
		return attr
	}
	if IsSecret(attr.Key) || looksLikeBearer(attr.Value.String()) {
		return slog.String(attr.Key, RedactedValue)
	}
	return attr
}

func looksLikeBearer(value string) bool {
	return len(value) > 7 && strings.EqualFold(value[:7], "bearer ")
}
