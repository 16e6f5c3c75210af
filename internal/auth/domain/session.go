package domain

import (
	"time"

	"github.com/aussiebroadwan/vellum/pkg/idx"
)

// RefreshSession is the record stored against a refresh token fingerprint.
// SessionID is minted at login and carried unchanged through every rotation,
// so one sign-in can be followed across refreshes in the logs.
type RefreshSession struct {
	UserID    string    `json:"userId"`
	SessionID idx.ID    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credentials is what a successful login or refresh hands back to the
// transport layer: an access token and the raw refresh token to set as
// cookies, plus the lifetimes to put on them.
type Credentials struct {
	UserID       string
	SessionID    idx.ID
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}
