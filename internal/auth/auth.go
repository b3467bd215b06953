// Package auth enforces Bearer-token authentication on mutating endpoints.
// Read-only endpoints (frames, orbit paths, diagnostics, probes, metrics)
// stay public; only scenario loads are protected, and only when a token is
// configured.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	// Token enables auth when non-empty.
	Token string
}

// Enabled reports whether a token is configured.
func (c Config) Enabled() bool {
	return c.Token != ""
}

// Middleware returns an HTTP middleware that enforces Bearer token auth on
// mutating methods (everything except GET/HEAD/OPTIONS) when enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() || readOnly(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")

			if header == "" || token == header || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
