package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/domain"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/pkg/cryptox"
	"github.com/aussiebroadwan/vellum/pkg/idx"
	"github.com/aussiebroadwan/vellum/pkg/jwtx"
	"github.com/aussiebroadwan/vellum/pkg/slogx"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad_request")
)

// IdentityVerifier checks a third-party identity credential.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (jwtx.GoogleIdentity, error)
}

// SessionService turns a Google credential into a session and keeps it
// alive through single-use refresh tokens.
type SessionService struct {
	Google     IdentityVerifier
	Access     *jwtx.AccessCodec
	Sessions   store.RefreshSessions
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Login verifies a Google ID token and opens a new session for its
// subject. A rejected credential is ErrUnauthorized wrapping the jwtx
// reason.
func (s *SessionService) Login(ctx context.Context, credential string) (domain.Credentials, error) {
	l := slogx.FromContext(ctx)

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.Credentials{}, ErrBadRequest
	}

	identity, err := s.Google.Verify(ctx, credential)
	if err != nil {
		l.Warn("google credential rejected", slog.String("reason", jwtx.ReasonOf(err)))
		return domain.Credentials{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	now := s.now()
	refreshToken, err := cryptox.NewRefreshToken()
	if err != nil {
		return domain.Credentials{}, err
	}

	session := domain.RefreshSession{
		UserID:    identity.UserID,
		SessionID: idx.NewAt(now),
		CreatedAt: now,
	}
	if err := s.Sessions.PutRefreshSession(ctx, refreshToken, session, s.refreshTTL()); err != nil {
		return domain.Credentials{}, fmt.Errorf("store refresh session: %w", err)
	}

	creds, err := s.issue(session, refreshToken)
	if err != nil {
		return domain.Credentials{}, err
	}

	l.Info("session opened",
		slog.String("user_id", session.UserID),
		slog.String("session_id", session.SessionID.String()),
		slog.String("hd", identity.Claims.HostedDomain),
	)
	return creds, nil
}

// Refresh consumes refreshToken and issues a fresh pair for the same
// session. An empty, unknown, expired or already consumed token is
// ErrUnauthorized.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.Credentials, error) {
	l := slogx.FromContext(ctx)

	if refreshToken == "" {
		return domain.Credentials{}, ErrUnauthorized
	}

	next, err := cryptox.NewRefreshToken()
	if err != nil {
		return domain.Credentials{}, err
	}

	session, err := s.Sessions.RotateRefreshSession(ctx, refreshToken, next, s.now(), s.refreshTTL())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Replays of a rotated token land here.
			l.Warn("refresh token rejected")
			return domain.Credentials{}, ErrUnauthorized
		}
		return domain.Credentials{}, fmt.Errorf("rotate refresh session: %w", err)
	}

	creds, err := s.issue(session, next)
	if err != nil {
		return domain.Credentials{}, err
	}

	l.Info("session refreshed",
		slog.String("user_id", session.UserID),
		slog.String("session_id", session.SessionID.String()),
	)
	return creds, nil
}

// Logout revokes refreshToken. It never fails: the caller clears cookies
// regardless, and a store error is only logged.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := s.Sessions.DeleteRefreshSession(ctx, refreshToken); err != nil {
		slogx.FromContext(ctx).Error("failed to revoke refresh session", "error", err)
	}
}

func (s *SessionService) issue(session domain.RefreshSession, refreshToken string) (domain.Credentials, error) {
	access, err := s.Access.Mint(session.UserID, s.accessTTL())
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("mint access token: %w", err)
	}
	return domain.Credentials{
		UserID:       session.UserID,
		SessionID:    session.SessionID,
		AccessToken:  access,
		RefreshToken: refreshToken,
		AccessTTL:    s.accessTTL(),
		RefreshTTL:   s.refreshTTL(),
	}, nil
}
