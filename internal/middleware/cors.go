// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// Storefront defaults for browser clients. Idempotency-Key must be
// listed or the checkout frontend cannot send it cross-origin.
var (
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodDelete, http.MethodOptions,
	}
	defaultCORSHeaders = []string{
		"Content-Type", "Authorization", RequestIDHeader, IdempotencyKeyHeader,
	}
)

// CORSConfig holds the configuration for the CORS middleware. An empty
// AllowedOrigins list disables CORS handling entirely. Wildcards are
// never honored: an origin is either listed or rejected.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string // Defaults to GET, POST, PUT, DELETE, OPTIONS
	AllowedHeaders   []string // Defaults to Content-Type, Authorization, X-Request-ID, Idempotency-Key
	AllowCredentials bool
	MaxAge           int // Preflight cache duration in seconds
}

// CORS returns a middleware enforcing the origin allowlist. Requests
// without an Origin header are same-origin and pass through untouched; a
// listed origin gets the CORS response headers, an unlisted one is
// rejected with 403 before reaching the handler. Preflight OPTIONS
// requests are answered directly with 204.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	methodList := strings.Join(methods, ", ")
	headerList := strings.Join(headers, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; !ok {
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			// The response differs per origin, so caches must key on it.
			h.Add("Vary", "Origin")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Allow-Methods", methodList)
			h.Set("Access-Control-Allow-Headers", headerList)

			if r.Method == http.MethodOptions {
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
