package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/vellum/pkg/httpx"
)

const (
	ErrorCodeBadRequest       = httpx.ErrCodeBadRequest
	ErrorCodeBadCSRF          = httpx.ErrCodeBadCSRF
	ErrorCodeUnauthorized     = httpx.ErrCodeUnauthorized
	ErrorCodeForbidden        = httpx.ErrCodeForbidden
	ErrorCodeNotFound         = httpx.ErrCodeNotFound
	ErrorCodeMethodNotAllowed = httpx.ErrCodeMethodNotAllowed
	ErrorCodeRateLimited      = httpx.ErrCodeRateLimited
	ErrorCodeServerError      = httpx.ErrCodeServerError
)

// ReasonBadOrigin accompanies ErrorCodeForbidden when the Origin header is
// not allow-listed.
const ReasonBadOrigin = httpx.ReasonBadOrigin

// APIError is the error envelope of the session API. It implements the
// error interface and is used both by the server (to write responses) and
// by the client (to report them).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error code, e.g. "bad_csrf"
	Code string `json:"error"`

	// Reason refines Code where one code covers several causes
	Reason string `json:"reason,omitempty"`

	// RetryAfterSeconds is set on rate_limited responses
	RetryAfterSeconds int `json:"retryAfterSeconds,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Reason)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
}

// Is matches another *APIError with the same status and code, so callers
// can write errors.Is(err, authsdk.ErrUnauthorized).
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes this error to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

var (
	// ErrBadRequest is returned when the body cannot be parsed or the
	// credential is missing.
	ErrBadRequest = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeBadRequest,
	}

	// ErrBadCSRF is returned when the double-submit tokens are missing or
	// differ.
	ErrBadCSRF = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeBadCSRF,
	}

	// ErrUnauthorized covers every failed credential check. The specific
	// cause is logged, never returned.
	ErrUnauthorized = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeUnauthorized,
	}

	// ErrBadOrigin is returned for state-changing requests from an origin
	// outside the allow-list.
	ErrBadOrigin = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       ErrorCodeForbidden,
		Reason:     ReasonBadOrigin,
	}

	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       ErrorCodeNotFound,
	}

	ErrMethodNotAllowed = &APIError{
		StatusCode: http.StatusMethodNotAllowed,
		Code:       ErrorCodeMethodNotAllowed,
	}

	// ErrRateLimited matches any rate_limited response regardless of its
	// retry hint.
	ErrRateLimited = &APIError{
		StatusCode: http.StatusTooManyRequests,
		Code:       ErrorCodeRateLimited,
	}

	ErrServerError = &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrorCodeServerError,
	}
)

// parseErrorResponse turns a non-success response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	// Fallback: create generic error from status code
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
		Reason:     http.StatusText(resp.StatusCode),
	}
}
