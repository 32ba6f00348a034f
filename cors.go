package engineio

import (
	"net/http"

	"github.com/kosmic-labs/engineio/config"
)

// applyCORS echoes back the request's Origin when allowed, and handles the
// OPTIONS preflight. It returns false when the request must be rejected
// outright (origin present but not allowed).
func applyCORS(w http.ResponseWriter, r *http.Request, cfg *config.ServerConfig) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if !checkOrigin(origin, cfg.CorsAllowedOrigins) {
		return false
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	if cfg.CorsCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if r.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", "OPTIONS, GET, POST")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		h.Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
	}

	return true
}

// checkOrigin reports whether origin is allowed under the configured
// policy: unset or "*" allows anything (echoed back, never answered with a
// literal "*", since an Origin header is present), a string compares for an
// exact match, and an OriginMatcher decides by predicate.
func checkOrigin(origin string, allowed any) bool {
	switch v := allowed.(type) {
	case nil:
		return true
	case string:
		return v == "*" || v == origin
	case config.OriginMatcher:
		return v == nil || v(origin)
	default:
		return true
	}
}
