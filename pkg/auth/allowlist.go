package auth

import "strings"

// HeaderAuthorization is the one header a stored credential cannot do without.
const HeaderAuthorization = "authorization"

// allowedHeaderNames are the only request headers persisted on import.
var allowedHeaderNames = map[string]struct{}{
	HeaderAuthorization:       {},
	"user-agent":              {},
	"accept":                  {},
	"referer":                 {},
	"oai-device-id":           {},
	"oai-client-version":      {},
	"oai-client-build-number": {},
}

// AllowedHeaderNames returns the allow-listed header names in a stable order.
func AllowedHeaderNames() []string {
	return []string{
		HeaderAuthorization,
		"user-agent",
		"accept",
		"referer",
		"oai-device-id",
		"oai-client-version",
		"oai-client-build-number",
	}
}

// IsAllowedHeader reports whether name, after normalization, may be persisted.
func IsAllowedHeader(name string) bool {
	_, ok := allowedHeaderNames[NormalizeHeaderName(name)]
	return ok
}

// NormalizeHeaderName trims and lower-cases a header name.
func NormalizeHeaderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FilterAllowedHeaders keeps allow-listed headers with non-blank values.
// Names are normalized and values trimmed in the result.
func FilterAllowedHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		name := NormalizeHeaderName(k)
		if _, ok := allowedHeaderNames[name]; !ok {
			continue
		}
		value := strings.TrimSpace(v)
		if value == "" {
			continue
		}
		out[name] = value
	}
	return out
}
