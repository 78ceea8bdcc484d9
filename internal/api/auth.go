package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// KeyAuth guards the out-of-band notification endpoints with the shared
// API key, accepted as a bearer token or an X-Api-Key header.
func KeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get("X-Api-Key")
			if supplied == "" {
				const prefix = "Bearer "
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
					supplied = auth[len(prefix):]
				}
			}
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
