/*
Package authsdk provides the wire types of the vellum session API and a
small client for it.

# Error envelope

Every failure the service returns is a JSON object with an "error" code,
optionally a "reason" and, for rate limiting, "retryAfterSeconds":

	{"error":"forbidden","reason":"bad_origin"}
	{"error":"rate_limited","retryAfterSeconds":5}

APIError models that envelope. The server writes it with WriteError and the
client returns it from every call that does not succeed, so callers can
match on the code:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeUnauthorized {
		// sign in again
	}

# Client

SDKClient keeps session cookies in a cookie jar, the same way a browser
would, and sends the configured Origin on every request:

	client, err := authsdk.NewSDKClient("https://app.example.com", "https://app.example.com")

	err = client.Login(ctx, googleCredential, csrfToken)
	me, err := client.Me(ctx)
	err = client.Refresh(ctx)
	err = client.Logout(ctx)
*/
package authsdk
