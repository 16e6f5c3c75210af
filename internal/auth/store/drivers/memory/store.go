// Package memory is a process-local refresh session store for tests and
// single-node development. Nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/domain"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/pkg/cryptox"
	"github.com/patrickmn/go-cache"
)

const cleanupInterval = 10 * time.Minute

type Store struct {
	repo *refreshSessionsRepo
}

// Option configures a Store.
type Option func(*refreshSessionsRepo)

// WithClock overrides the clock used for expiry checks. go-cache still
// evicts on wall-clock time, so entries may linger but are never served
// past their expiry on the injected clock.
func WithClock(now func() time.Time) Option {
	return func(r *refreshSessionsRepo) {
		if now != nil {
			r.now = now
		}
	}
}

func NewStore(opts ...Option) *Store {
	r := &refreshSessionsRepo{
		items: cache.New(cache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return &Store{repo: r}
}

func (s *Store) RefreshSessions() store.RefreshSessions { return s.repo }
func (s *Store) ApplyMigrations() error                 { return nil }
func (s *Store) Ping(context.Context) error             { return nil }

func (s *Store) Close() error {
	s.repo.items.Flush()
	return nil
}

type entry struct {
	session   domain.RefreshSession
	expiresAt time.Time
}

// refreshSessionsRepo serialises writers with mu so a rotation's read and
// delete cannot interleave with another rotation of the same token.
type refreshSessionsRepo struct {
	mu    sync.Mutex
	items *cache.Cache
	now   func() time.Time
}

var _ store.RefreshSessions = (*refreshSessionsRepo)(nil)

func (r *refreshSessionsRepo) live(key string, now time.Time) (entry, bool) {
	v, ok := r.items.Get(key)
	if !ok {
		return entry{}, false
	}
	e := v.(entry)
	if !now.Before(e.expiresAt) {
		r.items.Delete(key)
		return entry{}, false
	}
	return e, true
}

func (r *refreshSessionsRepo) GetRefreshSession(_ context.Context, token string) (domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.live(cryptox.FingerprintToken(token), r.now())
	if !ok {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	return e.session, nil
}

func (r *refreshSessionsRepo) PutRefreshSession(_ context.Context, token string, s domain.RefreshSession, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items.Set(cryptox.FingerprintToken(token), entry{session: s, expiresAt: r.now().Add(ttl)}, ttl)
	return nil
}

func (r *refreshSessionsRepo) DeleteRefreshSession(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items.Delete(cryptox.FingerprintToken(token))
	return nil
}

func (r *refreshSessionsRepo) RotateRefreshSession(
	_ context.Context,
	oldToken, newToken string,
	createdAt time.Time,
	ttl time.Duration,
) (domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	oldKey := cryptox.FingerprintToken(oldToken)

	e, ok := r.live(oldKey, now)
	if !ok {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	r.items.Delete(oldKey)

	next := e.session
	next.CreatedAt = createdAt
	r.items.Set(cryptox.FingerprintToken(newToken), entry{session: next, expiresAt: now.Add(ttl)}, ttl)
	return next, nil
}

func (r *refreshSessionsRepo) DeleteExpiredRefreshSessions(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for key, item := range r.items.Items() {
		if e := item.Object.(entry); !now.Before(e.expiresAt) {
			r.items.Delete(key)
			n++
		}
	}
	return n, nil
}
