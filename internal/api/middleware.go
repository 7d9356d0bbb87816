// Package api implements the Taxon action API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenValid reports whether r carries "Authorization: Bearer <token>".
func tokenValid(r *http.Request, token string) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(token)) == 1
}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled && !tokenValid(r, token) {
				writeJSON(w, http.StatusForbidden, errorBody("", errTypeAuth, "Access denied", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
