package httpx

import (
	"net/http"
	"slices"

	"github.com/aussiebroadwan/vellum/pkg/slogx"
)

// OriginMiddleware rejects state-changing requests whose Origin header is
// missing or not exactly one of allowed. Safe methods pass untouched.
func OriginMiddleware(allowed []string) Middleware {
	allowed = slices.Clone(allowed)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" || !slices.Contains(allowed, origin) {
				slogx.FromContext(r.Context()).Warn("origin rejected",
					"origin", origin,
					"endpoint", r.URL.Path,
				)
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":  ErrCodeForbidden,
					"reason": ReasonBadOrigin,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
