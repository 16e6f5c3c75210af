package http

import (
	"net/http"

	"github.com/aussiebroadwan/vellum/pkg/authsdk"
	"github.com/aussiebroadwan/vellum/pkg/httpx"
)

// MeHandler godoc
//
//	@Summary		Current user
//	@Description	Returns the user id carried by the access cookie.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse	"userId"
//	@Failure		401	{object}	authsdk.APIError	"unauthorized"
//	@Router			/api/me [get].
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := httpx.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			authsdk.ErrUnauthorized.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{UserID: userID})
	}
}
