package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Header names whose values never reach logs or the audit trail.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
}

// JSON keys (and query parameters) containing any of these fragments are redacted.
var sensitiveFields = []string{
	"password",
	"senha",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"certificado",
}

const redactedValue = "[REDACTED]"

// MaskToken keeps the first 6 and last 4 characters of a credential.
// Tokens too short to mask that way are fully redacted.
func MaskToken(token string) string {
	if len(token) <= 10 {
		return redactedValue
	}
	return token[:6] + strings.Repeat("*", len(token)-10) + token[len(token)-4:]
}

// SanitizeHeaders flattens headers into a map with sensitive values redacted.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
			continue
		}
		sanitized[key] = strings.Join(values, ", ")
	}
	return sanitized
}

// SanitizeBody redacts sensitive JSON fields and truncates oversized bodies.
// Non-JSON text is wrapped so the result is always valid JSON.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	if !utf8.Valid(body) {
		return mustJSON(map[string]any{"_binary": true, "_size": len(body)})
	}

	if maxSize > 0 && len(body) > maxSize {
		return mustJSON(map[string]any{
			"_truncated": true,
			"_size":      len(body),
			"_preview":   string(body[:maxSize]),
		})
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return mustJSON(map[string]any{"_raw": string(body), "_format": "text"})
	}

	return mustJSON(sanitizeValue(data))
}

func mustJSON(v any) json.RawMessage {
	out, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"_format":"unencodable"}`)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, value := range val {
			if isSensitive(key) {
				out[key] = redactedValue
				continue
			}
			out[key] = sanitizeValue(value)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, value := range val {
			out[i] = sanitizeValue(value)
		}
		return out
	default:
		return val
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// SanitizeURL redacts userinfo and sensitive query parameters.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User != nil {
		u.User = url.User(redactedValue)
	}
	query := u.Query()
	changed := false
	for key := range query {
		if isSensitive(key) {
			query.Set(key, redactedValue)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
