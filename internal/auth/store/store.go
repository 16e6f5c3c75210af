package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite, redis,
// memory) implement this. Sub-repositories are exposed as methods so callers
// depend on the narrow interface they use.
type Store interface {
	RefreshSessions() RefreshSessions

	// ApplyMigrations brings the schema up to date. Drivers without a schema
	// return nil.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// RefreshSessions stores refresh sessions keyed by the fingerprint of the
// raw refresh token. Raw tokens are never persisted.
type RefreshSessions interface {
	// GetRefreshSession returns the live session for token, or ErrNotFound
	// when it is absent or expired.
	GetRefreshSession(ctx context.Context, token string) (domain.RefreshSession, error)

	// PutRefreshSession stores s under token for ttl, replacing any record
	// already there.
	PutRefreshSession(ctx context.Context, token string, s domain.RefreshSession, ttl time.Duration) error

	// DeleteRefreshSession removes the record for token. Deleting a missing
	// record is not an error.
	DeleteRefreshSession(ctx context.Context, token string) error

	// RotateRefreshSession consumes oldToken and stores its session under
	// newToken with createdAt and ttl, as one atomic step. Of any number of
	// concurrent callers presenting the same oldToken at most one succeeds;
	// the rest get ErrNotFound, as does a caller whose oldToken is absent or
	// expired.
	RotateRefreshSession(ctx context.Context, oldToken, newToken string, createdAt time.Time, ttl time.Duration) (domain.RefreshSession, error)

	// DeleteExpiredRefreshSessions purges expired records and reports how
	// many were removed. Drivers with native expiry return 0.
	DeleteExpiredRefreshSessions(ctx context.Context) (int64, error)
}
