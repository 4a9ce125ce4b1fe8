package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth requires the status token as "Authorization: Bearer <token>" or,
// for browser websockets that cannot set headers, a "token" query parameter.
// An empty token disables the check.
func TokenAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// health checks stay open
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		presented := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			presented = strings.TrimPrefix(auth, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="calendarcam"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
