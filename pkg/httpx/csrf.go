package httpx

import "github.com/aussiebroadwan/vellum/pkg/cryptox"

// VerifyDoubleSubmit checks the double-submit pattern: the token echoed in
// the body must equal the one the browser sent as a cookie. Either side
// missing is a failure.
func VerifyDoubleSubmit(cookieToken, bodyToken string) bool {
	return cryptox.EqualTokens(cookieToken, bodyToken)
}
