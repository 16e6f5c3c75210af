package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/domain"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/pkg/cryptox"
	"github.com/aussiebroadwan/vellum/pkg/idx"
	goredis "github.com/redis/go-redis/v9"
)

const (
	fieldUserID    = "user_id"
	fieldSessionID = "session_id"
	fieldCreatedAt = "created_at"
)

// rotateScript moves a session hash from KEYS[1] to KEYS[2] in one step.
// ARGV[1] is the new created_at (unix ms), ARGV[2] the ttl in ms.
// Returns nil when KEYS[1] does not exist.
const rotateScript = `
local fields = redis.call("HMGET", KEYS[1], "user_id", "session_id")
if not fields[1] then
  return false
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[2], "user_id", fields[1], "session_id", fields[2], "created_at", ARGV[1])
redis.call("PEXPIRE", KEYS[2], ARGV[2])
return fields
`

var rotateLua = goredis.NewScript(rotateScript)

type refreshSessionsRepo struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ store.RefreshSessions = (*refreshSessionsRepo)(nil)

func (r *refreshSessionsRepo) key(token string) string {
	return r.prefix + cryptox.FingerprintToken(token)
}

func (r *refreshSessionsRepo) GetRefreshSession(ctx context.Context, token string) (domain.RefreshSession, error) {
	vals, err := r.rdb.HMGet(ctx, r.key(token), fieldUserID, fieldSessionID, fieldCreatedAt).Result()
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("redis: get session: %w", err)
	}

	userID, _ := vals[0].(string)
	sessionID, _ := vals[1].(string)
	createdAt, _ := vals[2].(string)
	if userID == "" {
		return domain.RefreshSession{}, store.ErrNotFound
	}

	ms, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("redis: corrupt created_at %q: %w", createdAt, err)
	}

	return domain.RefreshSession{
		UserID:    userID,
		SessionID: idx.ID(sessionID),
		CreatedAt: time.UnixMilli(ms).UTC(),
	}, nil
}

func (r *refreshSessionsRepo) PutRefreshSession(ctx context.Context, token string, s domain.RefreshSession, ttl time.Duration) error {
	key := r.key(token)
	_, err := r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldUserID, s.UserID,
			fieldSessionID, s.SessionID.String(),
			fieldCreatedAt, strconv.FormatInt(s.CreatedAt.UnixMilli(), 10),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: put session: %w", err)
	}
	return nil
}

func (r *refreshSessionsRepo) DeleteRefreshSession(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	return nil
}

func (r *refreshSessionsRepo) RotateRefreshSession(
	ctx context.Context,
	oldToken, newToken string,
	createdAt time.Time,
	ttl time.Duration,
) (domain.RefreshSession, error) {
	res, err := rotateLua.Run(ctx, r.rdb,
		[]string{r.key(oldToken), r.key(newToken)},
		strconv.FormatInt(createdAt.UnixMilli(), 10),
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Slice()
	if errors.Is(err, goredis.Nil) {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("redis: rotate session: %w", err)
	}
	if len(res) != 2 {
		return domain.RefreshSession{}, fmt.Errorf("redis: rotate session: unexpected reply %v", res)
	}

	userID, _ := res[0].(string)
	sessionID, _ := res[1].(string)
	return domain.RefreshSession{
		UserID:    userID,
		SessionID: idx.ID(sessionID),
		CreatedAt: time.UnixMilli(createdAt.UnixMilli()).UTC(),
	}, nil
}

// DeleteExpiredRefreshSessions is a no-op; keys carry a native TTL.
func (r *refreshSessionsRepo) DeleteExpiredRefreshSessions(context.Context) (int64, error) {
	return 0, nil
}
