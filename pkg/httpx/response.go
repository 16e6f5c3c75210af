package httpx

import (
	"encoding/json"
	"net/http"
)

// Error codes written in the {"error": ...} envelope.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeBadCSRF          = "bad_csrf"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeServerError      = "server_error"
)

// ReasonBadOrigin is the reason attached to a forbidden origin.
const ReasonBadOrigin = "bad_origin"

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": code}.
func WriteError(w http.ResponseWriter, status int, code string) {
	WriteJSON(w, status, map[string]string{"error": code})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Every response of this service is per-user, so this is always applied.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
