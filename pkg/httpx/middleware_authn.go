package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/vellum/pkg/jwtx"
	"github.com/aussiebroadwan/vellum/pkg/slogx"
)

// AccessVerifier checks an access token and returns its claims.
type AccessVerifier interface {
	Verify(token string) (jwtx.AccessClaims, error)
}

// RequireUser verifies the access token carried in cookieName and puts the
// user id on the request context. Any failure is a 401 unauthorized.
func RequireUser(v AccessVerifier, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			claims, err := v.Verify(CookieValue(r, cookieName))
			if err != nil {
				slogx.FromContext(ctx).Debug("access token rejected",
					"reason", jwtx.ReasonOf(err),
				)
				WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized)
				return
			}

			ctx = WithUserID(ctx, claims.UserID)
			ctx = slogx.With(ctx, "user_id", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
