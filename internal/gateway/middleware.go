package gateway

import (
	"net/http"
	"strings"
)

// BearerAuth guards a handler with a shared bearer token. An empty token
// disables the check entirely, so local deployments can skip auth without a
// separate code path. Requests whose Authorization header does not carry the
// exact token get 401 with no body.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokenMatches(r.Header.Get("Authorization"), token) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tokenMatches reports whether header is a well-formed "Bearer <token>"
// value carrying exactly token.
func tokenMatches(header, token string) bool {
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return false
	}
	return strings.TrimSpace(header[len(scheme):]) == token
}
