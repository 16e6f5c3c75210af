//go:build integration

package session_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/vellum/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLoginRefreshLogout walks a full session:
// 1. Sign in with a Google credential
// 2. Read the current user
// 3. Rotate the refresh token and check the old one is dead
// 4. Sign out and check both tokens stop working
func TestLoginRefreshLogout(t *testing.T) {
	baseURL, google := setupSessionService(t, nil)
	client := newClient(t, baseURL)
	ctx := t.Context()

	performLogin(t, client, google, testUser)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, testUser, me.UserID)

	oldRefresh := client.Cookie(authsdk.RefreshCookieName)
	require.NoError(t, client.Refresh(ctx))
	newRefresh := client.Cookie(authsdk.RefreshCookieName)
	require.NotEqual(t, oldRefresh, newRefresh, "Refresh token should be rotated")

	client.SetCookie(authsdk.RefreshCookieName, oldRefresh)
	assertUnauthorized(t, client.Refresh(ctx), "Replayed refresh token")

	client.SetCookie(authsdk.RefreshCookieName, newRefresh)
	require.NoError(t, client.Logout(ctx))

	_, err = client.Me(ctx)
	assertUnauthorized(t, err, "Me after logout")

	client.SetCookie(authsdk.RefreshCookieName, newRefresh)
	assertUnauthorized(t, client.Refresh(ctx), "Refresh after logout")
}

// TestConcurrentRefresh races many clients holding the same refresh
// cookie. Exactly one of them may rotate it.
func TestConcurrentRefresh(t *testing.T) {
	baseURL, google := setupSessionService(t, nil)
	owner := newClient(t, baseURL)
	performLogin(t, owner, google, testUser)
	refresh := owner.Cookie(authsdk.RefreshCookieName)

	const racers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := authsdk.NewSDKClient(baseURL, testOrigin)
			if err != nil {
				return
			}
			c.SetCookie(authsdk.RefreshCookieName, refresh)
			if c.Refresh(t.Context()) == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), winners.Load())
}

// TestSessionsAreIndependent checks two users signing in get separate
// sessions and logging one out leaves the other alone.
func TestSessionsAreIndependent(t *testing.T) {
	baseURL, google := setupSessionService(t, nil)
	ctx := t.Context()

	alice := newClient(t, baseURL)
	bob := newClient(t, baseURL)
	performLogin(t, alice, google, "u_alice")
	performLogin(t, bob, google, "u_bob")

	require.NoError(t, alice.Logout(ctx))
	require.NoError(t, bob.Refresh(ctx))

	me, err := bob.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "u_bob", me.UserID)
}
