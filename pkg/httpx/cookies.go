package httpx

import (
	"net/http"
	"strings"
	"time"
)

// IsSecureRequest reports whether the request reached us over TLS, either
// directly or through a proxy that sets X-Forwarded-Proto.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// SessionCookie builds an HttpOnly, SameSite=Lax cookie scoped to "/".
func SessionCookie(r *http.Request, name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSessionCookie writes a session cookie that lives for ttl.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, SessionCookie(r, name, value, ttl))
}

// ClearSessionCookie expires the cookie immediately. Max-Age=0 on the wire
// needs a negative MaxAge in net/http.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request, name string) {
	c := SessionCookie(r, name, "", 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// CookieValue returns the named cookie's value or "".
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
