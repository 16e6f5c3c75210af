package http

import (
	"net/http"

	"github.com/aussiebroadwan/vellum/pkg/authsdk"
	"github.com/aussiebroadwan/vellum/pkg/httpx"
)

// HealthHandler godoc
//
//	@Summary		Health
//	@Description	Always {"ok":true} while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.OKResponse
//	@Router			/health [get].
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
	}
}

// NotFoundHandler answers every unrouted path.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authsdk.ErrNotFound.WriteError(w)
	}
}

// MethodNotAllowedHandler answers known paths hit with the wrong method.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authsdk.ErrMethodNotAllowed.WriteError(w)
	}
}
