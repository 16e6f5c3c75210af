package authsdk

import (
	"context"
	"net/http"
)

// Login exchanges a Google credential for session cookies. csrfToken is
// sent both as the g_csrf_token cookie and in the body, as Google Sign-In
// does.
func (c *SDKClient) Login(ctx context.Context, credential, csrfToken string) error {
	c.SetCookie(CSRFCookieName, csrfToken)
	return c.LoginWithRequest(ctx, LoginRequest{Credential: credential, CSRFToken: csrfToken})
}

// LoginWithRequest posts req as-is, using whatever CSRF cookie the jar
// currently holds.
func (c *SDKClient) LoginWithRequest(ctx context.Context, req LoginRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/session", req)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Refresh rotates the refresh cookie and renews the access cookie.
func (c *SDKClient) Refresh(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/session/refresh", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Logout revokes the refresh session and clears both cookies.
func (c *SDKClient) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/api/session", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Me returns the user the access cookie belongs to.
func (c *SDKClient) Me(ctx context.Context) (*MeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/me", nil)
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}
