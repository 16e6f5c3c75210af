package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/vellum/internal/auth/domain"
	"github.com/aussiebroadwan/vellum/internal/auth/service"
	"github.com/aussiebroadwan/vellum/pkg/authsdk"
	"github.com/aussiebroadwan/vellum/pkg/httpx"
	"github.com/aussiebroadwan/vellum/pkg/slogx"
)

const (
	AccessCookieName  = authsdk.AccessCookieName
	RefreshCookieName = authsdk.RefreshCookieName
	CSRFCookieName    = authsdk.CSRFCookieName

	maxLoginBodyBytes = 64 << 10
)

type SessionHandler struct {
	Sessions *service.SessionService
}

// loginBody accepts the CSRF value under Google's field name and under
// csrfToken.
type loginBody struct {
	Credential string `json:"credential"`
	GCSRFToken string `json:"g_csrf_token"`
	CSRFToken  string `json:"csrfToken"`
}

func (b loginBody) csrf() string {
	if b.GCSRFToken != "" {
		return b.GCSRFToken
	}
	return b.CSRFToken
}

// HandleLogin handles POST /api/session.
//
//	@Summary		Sign in with Google
//	@Description	Verifies a Google ID token and opens a session. The g_csrf_token cookie must equal the body's g_csrf_token (or csrfToken).
//	@Description	On success the access and refresh cookies are set.
//	@Tags			Session
//	@Accept			json
//	@Param			Origin	header	string					true	"Allow-listed origin"
//	@Param			body	body	authsdk.LoginRequest	true	"Google credential and CSRF token"
//	@Success		204		"Session cookies set"
//	@Failure		400		{object}	authsdk.APIError	"bad_request or bad_csrf"
//	@Failure		401		{object}	authsdk.APIError	"unauthorized"
//	@Failure		403		{object}	authsdk.APIError	"forbidden (bad_origin)"
//	@Failure		429		{object}	authsdk.APIError	"rate_limited"
//	@Router			/api/session [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body loginBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)).Decode(&body); err != nil {
		authsdk.ErrBadRequest.WriteError(w)
		return
	}
	if strings.TrimSpace(body.Credential) == "" {
		authsdk.ErrBadRequest.WriteError(w)
		return
	}

	if !httpx.VerifyDoubleSubmit(httpx.CookieValue(r, CSRFCookieName), body.csrf()) {
		log.Warn("csrf double-submit mismatch")
		authsdk.ErrBadCSRF.WriteError(w)
		return
	}

	creds, err := h.Sessions.Login(ctx, body.Credential)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnauthorized):
		authsdk.ErrUnauthorized.WriteError(w)
		return
	case errors.Is(err, service.ErrBadRequest):
		authsdk.ErrBadRequest.WriteError(w)
		return
	default:
		log.Error("login failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	setCredentialCookies(w, r, creds)
	noContent(w)
}

// HandleRefresh handles POST /api/session/refresh.
//
//	@Summary		Rotate the refresh token
//	@Description	Consumes the refresh cookie and sets a new access and refresh cookie. Each refresh token works once.
//	@Tags			Session
//	@Param			Origin	header	string	true	"Allow-listed origin"
//	@Success		204		"Session cookies rotated"
//	@Failure		401		{object}	authsdk.APIError	"unauthorized"
//	@Failure		403		{object}	authsdk.APIError	"forbidden (bad_origin)"
//	@Failure		429		{object}	authsdk.APIError	"rate_limited"
//	@Router			/api/session/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	creds, err := h.Sessions.Refresh(ctx, httpx.CookieValue(r, RefreshCookieName))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			authsdk.ErrUnauthorized.WriteError(w)
			return
		}
		slogx.FromContext(ctx).Error("refresh failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	setCredentialCookies(w, r, creds)
	noContent(w)
}

// HandleLogout handles DELETE /api/session.
//
//	@Summary		Sign out
//	@Description	Revokes the refresh session if there is one and clears both cookies. Always succeeds.
//	@Tags			Session
//	@Param			Origin	header	string	true	"Allow-listed origin"
//	@Success		204		"Cookies cleared"
//	@Failure		403		{object}	authsdk.APIError	"forbidden (bad_origin)"
//	@Failure		429		{object}	authsdk.APIError	"rate_limited"
//	@Router			/api/session [delete].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Logout(r.Context(), httpx.CookieValue(r, RefreshCookieName))

	httpx.ClearSessionCookie(w, r, AccessCookieName)
	httpx.ClearSessionCookie(w, r, RefreshCookieName)
	noContent(w)
}

func setCredentialCookies(w http.ResponseWriter, r *http.Request, creds domain.Credentials) {
	httpx.SetSessionCookie(w, r, AccessCookieName, creds.AccessToken, creds.AccessTTL)
	httpx.SetSessionCookie(w, r, RefreshCookieName, creds.RefreshToken, creds.RefreshTTL)
}

func noContent(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
