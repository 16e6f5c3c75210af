package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/vellum/internal/auth/domain"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/vellum/internal/auth/store/storetest"
	"github.com/aussiebroadwan/vellum/pkg/idx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := redis.NewStore(rdb, "")
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestRefreshSessions(t *testing.T) {
	storetest.RunRefreshSessions(t, func(t *testing.T) storetest.Harness {
		mr, s := newMiniredis(t)
		clk := storetest.NewClock()
		return storetest.Harness{
			Store: s,
			Now:   clk.Now,
			Advance: func(d time.Duration) {
				clk.Advance(d)
				mr.FastForward(d)
			},
		}
	})
}

func TestKeysAreFingerprints(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniredis(t)

	sess := domain.RefreshSession{UserID: "u", SessionID: idx.New(), CreatedAt: storetest.Epoch}
	require.NoError(t, s.RefreshSessions().PutRefreshSession(ctx, "raw-secret-token", sess, time.Hour))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], redis.DefaultPrefix))
	require.NotContains(t, keys[0], "raw-secret-token")
	require.Equal(t, time.Hour, mr.TTL(keys[0]))
}

func TestRotateSetsTTL(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniredis(t)
	repo := s.RefreshSessions()

	sess := domain.RefreshSession{UserID: "u", SessionID: idx.New(), CreatedAt: storetest.Epoch}
	require.NoError(t, repo.PutRefreshSession(ctx, "r1", sess, time.Minute))

	_, err := repo.RotateRefreshSession(ctx, "r1", "r2", storetest.Epoch.Add(time.Second), 2*time.Hour)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Equal(t, 2*time.Hour, mr.TTL(keys[0]))
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	s := redis.NewStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1}), "")
	t.Cleanup(func() { _ = s.Close() })
	mr.Close()

	_, err = s.RefreshSessions().GetRefreshSession(ctx, "tok")
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrNotFound)
	require.Error(t, s.Ping(ctx))
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := redis.Open(context.Background(), "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(context.Background()))

	_, err = redis.Open(context.Background(), "not a url", "")
	require.Error(t, err)
}
