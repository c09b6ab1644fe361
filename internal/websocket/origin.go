package websocket

import (
	"net/http"
	"net/url"
	"strings"
)

// AnyOrigin disables the origin check
const AnyOrigin = "*"

// NormalizeOrigin reduces an origin to lower-case scheme://host[:port]
func NormalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == AnyOrigin {
		return origin
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(strings.ToLower(origin), "/")
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// OriginChecker returns an upgrade origin check for the allowed origin.
// Requests without an Origin header are not from browsers and are accepted.
func OriginChecker(allowed string) func(r *http.Request) bool {
	allowed = NormalizeOrigin(allowed)
	return func(r *http.Request) bool {
		if allowed == "" || allowed == AnyOrigin {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return NormalizeOrigin(origin) == allowed
	}
}
