package middleware

import (
	"net/http"
	"strings"
)

// CORS returns middleware that sets CORS headers for the allowed origins.
// Only an origin listed explicitly gets credentialed access, so the session
// cookie travels with its calls. An empty list or "*" admits any origin
// without credentials; such callers carry the session as a Bearer token.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				switch {
				case originListed(allowedOrigins, origin):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
					setCORSCommon(h)
				case wildcard:
					h.Set("Access-Control-Allow-Origin", "*")
					setCORSCommon(h)
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setCORSCommon(h http.Header) {
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Expose-Headers", SessionHeader)
	h.Set("Access-Control-Max-Age", "86400")
	h.Add("Vary", "Origin")
}

func originListed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o != "*" && strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
