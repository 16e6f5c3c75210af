package authsdk

// LoginRequest is the body of POST /api/session. The CSRF value must equal
// the g_csrf_token cookie Google Sign-In sets alongside the credential.
type LoginRequest struct {
	// Credential is the Google ID token
	Credential string `json:"credential"`

	// CSRFToken is the double-submit value
	CSRFToken string `json:"g_csrf_token"`
}

// MeResponse is returned by GET /api/me.
type MeResponse struct {
	UserID string `json:"userId"`
}

// OKResponse is returned by GET /health.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains individual component health checks (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Store is the refresh session store status
	Store string `json:"store"`

	// KeySet reports whether Google's signing keys have been loaded. A cold
	// cache is "pending", which does not fail readiness.
	KeySet string `json:"keySet"`
}
