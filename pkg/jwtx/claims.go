package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default credential lifetimes. Both can be overridden through config.
const (
	// DefaultAccessTokenTTL is how long a minted access token stays valid.
	DefaultAccessTokenTTL = 14 * 24 * time.Hour

	// DefaultRefreshTokenTTL is how long a refresh record lives in the store.
	DefaultRefreshTokenTTL = 365 * 24 * time.Hour
)

// AccessClaims is the payload of our own HS256 access token. Only exp is
// used from the registered set; everything else stays empty on the wire.
type AccessClaims struct {
	jwt.RegisteredClaims

	// UserID is the Google subject the session belongs to.
	UserID string `json:"userId"`
}

// GoogleClaims are the fields we read from a Google ID token.
type GoogleClaims struct {
	jwt.RegisteredClaims

	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	Picture      string `json:"picture,omitempty"`
	HostedDomain string `json:"hd,omitempty"`
}

// ValidateIssuer reports whether the issuer is one of the allowed values.
func (c *GoogleClaims) ValidateIssuer(allowed []string) error {
	if !slices.Contains(allowed, c.Issuer) {
		return ErrInvalid
	}
	return nil
}

// ValidateAudience checks that at least one audience entry is allowed.
func (c *GoogleClaims) ValidateAudience(allowed []string) error {
	for _, aud := range c.Audience {
		if slices.Contains(allowed, aud) {
			return nil
		}
	}
	return ErrBadAudience
}

// expired compares in whole seconds; a token whose exp equals the current
// second is already expired.
func expired(exp *jwt.NumericDate, now time.Time) bool {
	return exp.Unix() <= now.Unix()
}
