//go:build integration

package session_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/app"
	"github.com/aussiebroadwan/vellum/pkg/authsdk"
	"github.com/aussiebroadwan/vellum/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for session service end-to-end
 * tests. The service runs in-process with the redis store against a real
 * Redis container, and a local JWKS endpoint stands in for Google.
 */

const (
	testOrigin   = "https://app.example.com"
	testClientID = "client-1"
	testKid      = "e2e-kid-1"
	testUser     = "u_123"
)

// googleIssuer signs ID tokens and serves the matching JWKS.
type googleIssuer struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newGoogleIssuer(t *testing.T) *googleIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	g := &googleIssuer{key: key}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwtx.JWKS{Keys: []jwtx.JWK{
			jwtx.NewRSAJWK(testKid, "sig", "RS256", &key.PublicKey),
		}})
	}))
	t.Cleanup(g.server.Close)
	return g
}

// credential returns a Google style ID token for sub issued to aud.
func (g *googleIssuer) credential(t *testing.T, sub, aud string) string {
	t.Helper()
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"iss": "https://accounts.google.com",
		"aud": aud,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = testKid
	signed, err := tok.SignedString(g.key)
	require.NoError(t, err)
	return signed
}

// setupRedisContainer starts a real Redis and returns its URL.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, mappedPort.Port())
}

// setupSessionService configures the service through its environment,
// exactly as a deployment would, and serves it on a local port. env
// entries override the defaults below.
func setupSessionService(t *testing.T, env map[string]string) (string, *googleIssuer) {
	t.Helper()

	google := newGoogleIssuer(t)

	defaults := map[string]string{
		"APP_ORIGINS":         testOrigin,
		"GOOGLE_CLIENT_IDS":   testClientID,
		"GOOGLE_JWKS_URL":     google.server.URL,
		"SESSION_HMAC_SECRET": "e2e-session-secret",
		"STORE_DRIVER":        "redis",
		"REDIS_URL":           setupRedisContainer(t),
		"ENV":                 "test",
		"LOG_LEVEL":           "warn",
		"LOG_FORMAT":          "json",
		// Relaxed limits so the flows below never trip the limiter
		"RATELIMIT_SESSION_CAPACITY":       "1000",
		"RATELIMIT_SESSION_REFILL_PER_SEC": "100",
	}
	for k, v := range env {
		defaults[k] = v
	}
	for k, v := range defaults {
		t.Setenv(k, v)
	}

	application, err := app.New(app.LoadConfig())
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		if err := application.Shutdown(); err != nil {
			t.Logf("failed to shut down application: %v", err)
		}
	})

	return srv.URL, google
}

func newClient(t *testing.T, baseURL string) *authsdk.SDKClient {
	t.Helper()
	client, err := authsdk.NewSDKClient(baseURL, testOrigin)
	require.NoError(t, err)
	return client
}

// performLogin signs in as sub and checks both session cookies were set.
func performLogin(t *testing.T, client *authsdk.SDKClient, google *googleIssuer, sub string) {
	t.Helper()

	err := client.Login(t.Context(), google.credential(t, sub, testClientID), "e2e-csrf")
	require.NoError(t, err, "Login should succeed")
	require.NotEmpty(t, client.Cookie(authsdk.AccessCookieName), "Access cookie should be set")
	require.NotEmpty(t, client.Cookie(authsdk.RefreshCookieName), "Refresh cookie should be set")
}

// assertUnauthorized checks that an error is a 401 unauthorized response.
func assertUnauthorized(t *testing.T, err error, context string) {
	t.Helper()
	require.ErrorIs(t, err, authsdk.ErrUnauthorized, context)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
