package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/domain"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/pkg/cryptox"
	"github.com/aussiebroadwan/vellum/pkg/idx"
)

type refreshSessionsRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.RefreshSessions = (*refreshSessionsRepo)(nil)

const (
	selectRefreshSession = `
SELECT session_id, user_id, created_at
  FROM refresh_sessions
 WHERE token_hash = ? AND expires_at > ?`

	upsertRefreshSession = `
INSERT INTO refresh_sessions (token_hash, session_id, user_id, created_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (token_hash) DO UPDATE SET
    session_id = excluded.session_id,
    user_id    = excluded.user_id,
    created_at = excluded.created_at,
    expires_at = excluded.expires_at`

	consumeRefreshSession = `
DELETE FROM refresh_sessions
 WHERE token_hash = ? AND expires_at > ?
RETURNING session_id, user_id`

	deleteRefreshSession = `DELETE FROM refresh_sessions WHERE token_hash = ?`

	deleteExpiredRefreshSessions = `DELETE FROM refresh_sessions WHERE expires_at <= ?`
)

func (r *refreshSessionsRepo) GetRefreshSession(ctx context.Context, token string) (domain.RefreshSession, error) {
	var (
		sid       string
		out       domain.RefreshSession
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, selectRefreshSession,
		cryptox.FingerprintToken(token), toMillis(r.now()),
	).Scan(&sid, &out.UserID, &createdAt)
	if err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}

	out.SessionID = idx.ID(sid)
	out.CreatedAt = fromMillis(createdAt)
	return out, nil
}

func (r *refreshSessionsRepo) PutRefreshSession(ctx context.Context, token string, s domain.RefreshSession, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx, upsertRefreshSession,
		cryptox.FingerprintToken(token),
		s.SessionID.String(),
		s.UserID,
		toMillis(s.CreatedAt),
		toMillis(r.now().Add(ttl)),
	)
	return err
}

func (r *refreshSessionsRepo) DeleteRefreshSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, deleteRefreshSession, cryptox.FingerprintToken(token))
	return err
}

func (r *refreshSessionsRepo) RotateRefreshSession(
	ctx context.Context,
	oldToken, newToken string,
	createdAt time.Time,
	ttl time.Duration,
) (domain.RefreshSession, error) {
	var out domain.RefreshSession

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.now()

		var sid string
		err := tx.QueryRowContext(ctx, consumeRefreshSession,
			cryptox.FingerprintToken(oldToken), toMillis(now),
		).Scan(&sid, &out.UserID)
		if err != nil {
			return mapNotFound(err)
		}

		out.SessionID = idx.ID(sid)
		out.CreatedAt = createdAt.UTC()

		if _, err := tx.ExecContext(ctx, upsertRefreshSession,
			cryptox.FingerprintToken(newToken),
			sid,
			out.UserID,
			toMillis(createdAt),
			toMillis(now.Add(ttl)),
		); err != nil {
			return fmt.Errorf("insert rotated session: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.RefreshSession{}, err
	}
	return out, nil
}

func (r *refreshSessionsRepo) DeleteExpiredRefreshSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredRefreshSessions, toMillis(r.now()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
