// Package storetest holds the behaviour every refresh session driver must
// share. Driver packages call RunRefreshSessions from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/domain"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Epoch is the starting point of every Clock.
var Epoch = time.UnixMilli(1_700_000_000_000).UTC()

// Clock is a manually advanced clock that is safe for concurrent readers.
type Clock struct{ ms atomic.Int64 }

func NewClock() *Clock {
	c := &Clock{}
	c.ms.Store(Epoch.UnixMilli())
	return c
}

func (c *Clock) Now() time.Time          { return time.UnixMilli(c.ms.Load()).UTC() }
func (c *Clock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

// Harness is one freshly opened driver. Advance moves the driver's notion
// of time forward.
type Harness struct {
	Store   store.Store
	Now     func() time.Time
	Advance func(time.Duration)
}

// RunRefreshSessions runs the shared refresh session suite. newHarness must
// return an empty store each time it is called.
func RunRefreshSessions(t *testing.T, newHarness func(t *testing.T) Harness) {
	ctx := context.Background()

	session := func(h Harness, user string) domain.RefreshSession {
		return domain.RefreshSession{UserID: user, SessionID: idx.New(), CreatedAt: h.Now()}
	}

	t.Run("put then get", func(t *testing.T) {
		h := newHarness(t)
		repo := h.Store.RefreshSessions()

		want := session(h, "google-sub-1")
		require.NoError(t, repo.PutRefreshSession(ctx, "tok-a", want, time.Hour))

		got, err := repo.GetRefreshSession(ctx, "tok-a")
		require.NoError(t, err)
		require.Equal(t, want.UserID, got.UserID)
		require.Equal(t, want.SessionID, got.SessionID)
		require.True(t, want.CreatedAt.Equal(got.CreatedAt), "created %v, got %v", want.CreatedAt, got.CreatedAt)
	})

	t.Run("unknown token", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.Store.RefreshSessions().GetRefreshSession(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("put replaces", func(t *testing.T) {
		h := newHarness(t)
		repo := h.Store.RefreshSessions()

		require.NoError(t, repo.PutRefreshSession(ctx, "tok-a", session(h, "first"), time.Hour))
		require.NoError(t, repo.PutRefreshSession(ctx, "tok-a", session(h, "second"), time.Hour))

		got, err := repo.GetRefreshSession(ctx, "tok-a")
		require.NoError(t, err)
		require.Equal(t, "second", got.UserID)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		h := newHarness(t)
		repo := h.Store.RefreshSessions()

		require.NoError(t, repo.PutRefreshSession(ctx, "tok-a", session(h, "u"), time.Hour))
		require.NoError(t, repo.DeleteRefreshSession(ctx, "tok-a"))
		require.NoError(t, repo.DeleteRefreshSession(ctx, "tok-a"))
		require.NoError(t, repo.DeleteRefreshSession(ctx, "never-existed"))

		_, err := repo.GetRefreshSession(ctx, "tok-a")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired records are gone", func(t *testing.T) {
		h := newHarness(t)
		repo := h.Store.RefreshSessions()

		require.NoError(t, repo.PutRefreshSession(ctx, "short", session(h, "u"), time.Minute))
		require.NoError(t, repo.PutRefreshSession(ctx, "long", session(h, "u"), time.Hour))

		h.Advance(59 * time.Second)
		_, err := repo.GetRefreshSession(ctx, "short")
		require.NoError(t, err)

		h.Advance(2 * time.Second)
		_, err = repo.GetRefreshSession(ctx, "short")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = repo.RotateRefreshSession(ctx, "short", "short-next", h.Now(), time.Hour)
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = repo.DeleteExpiredRefreshSessions(ctx)
		require.NoError(t, err)

		_, err = repo.GetRefreshSession(ctx, "long")
		require.NoError(t, err)
	})

	t.Run("rotate consumes the old token", func(t *testing.T) {
		h := newHarness(t)
		repo := h.Store.RefreshSessions()

		orig := session(h, "google-sub-1")
		require.NoError(t, repo.PutRefreshSession(ctx, "r1", orig, time.Hour))

		h.Advance(time.Minute)
		rotatedAt := h.Now()

		got, err := repo.RotateRefreshSession(ctx, "r1", "r2", rotatedAt, time.Hour)
		require.NoError(t, err)
		require.Equal(t, orig.UserID, got.UserID)
		require.Equal(t, orig.SessionID, got.SessionID)
		require.True(t, rotatedAt.Equal(got.CreatedAt))

		_, err = repo.GetRefreshSession(ctx, "r1")
		require.ErrorIs(t, err, store.ErrNotFound)

		live, err := repo.GetRefreshSession(ctx, "r2")
		require.NoError(t, err)
		require.Equal(t, orig.SessionID, live.SessionID)
		require.True(t, rotatedAt.Equal(live.CreatedAt))

		// Replay of the consumed token.
		_, err = repo.RotateRefreshSession(ctx, "r1", "r3", h.Now(), time.Hour)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = repo.GetRefreshSession(ctx, "r3")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("rotated token gets a fresh ttl", func(t *testing.T) {
		h := newHarness(t)
		repo := h.Store.RefreshSessions()

		require.NoError(t, repo.PutRefreshSession(ctx, "r1", session(h, "u"), time.Minute))
		h.Advance(50 * time.Second)

		_, err := repo.RotateRefreshSession(ctx, "r1", "r2", h.Now(), time.Minute)
		require.NoError(t, err)

		h.Advance(50 * time.Second)
		_, err = repo.GetRefreshSession(ctx, "r2")
		require.NoError(t, err)
	})

	t.Run("concurrent rotation has one winner", func(t *testing.T) {
		h := newHarness(t)
		repo := h.Store.RefreshSessions()

		require.NoError(t, repo.PutRefreshSession(ctx, "shared", session(h, "u"), time.Hour))

		const workers = 16
		var (
			wg     sync.WaitGroup
			start  = make(chan struct{})
			wins   atomic.Int32
			winner atomic.Value
		)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				next := fmt.Sprintf("next-%d", i)
				_, err := repo.RotateRefreshSession(ctx, "shared", next, h.Now(), time.Hour)
				switch {
				case err == nil:
					wins.Add(1)
					winner.Store(next)
				case !errors.Is(err, store.ErrNotFound):
					t.Errorf("worker %d: unexpected error %v", i, err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), wins.Load())

		for i := range workers {
			next := fmt.Sprintf("next-%d", i)
			_, err := repo.GetRefreshSession(ctx, next)
			if next == winner.Load().(string) {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, store.ErrNotFound, next)
			}
		}
	})

	t.Run("ping", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Store.Ping(ctx))
	})
}
