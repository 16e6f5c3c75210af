package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessCodec mints and verifies the HS256 access tokens this service hands
// to browsers. The secret is used as-is as the HMAC key.
type AccessCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewAccessCodec builds a codec keyed by secret. A nil clock means time.Now.
func NewAccessCodec(secret []byte, now func() time.Time) (*AccessCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: empty access token secret")
	}
	if now == nil {
		now = time.Now
	}
	return &AccessCodec{
		secret: secret,
		now:    now,
		parser: jwt.NewParser(),
	}, nil
}

// Mint returns a signed token carrying userID that expires ttl from now.
func (c *AccessCodec) Mint(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("jwtx: empty user id")
	}

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.now().Add(ttl)),
		},
		UserID: userID,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks structure, algorithm and signature before looking at exp, so
// a token signed under another secret is always invalid rather than expired.
func (c *AccessCodec) Verify(token string) (AccessClaims, error) {
	if token == "" {
		return AccessClaims{}, ErrMissing
	}

	parts, ok := splitCompact(token)
	if !ok {
		return AccessClaims{}, fmt.Errorf("%w: malformed", ErrInvalid)
	}

	var claims AccessClaims
	t, _, err := c.parser.ParseUnverified(token, &claims)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if t.Method != jwt.SigningMethodHS256 {
		return AccessClaims{}, fmt.Errorf("%w: unexpected alg %q", ErrInvalid, t.Method.Alg())
	}
	if err := numericExp(c.parser, parts[1]); err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	sig, err := c.parser.DecodeSegment(parts[2])
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: signature encoding: %v", ErrInvalid, err)
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.UserID == "" {
		return AccessClaims{}, fmt.Errorf("%w: missing userId", ErrInvalid)
	}
	if claims.ExpiresAt == nil {
		return AccessClaims{}, fmt.Errorf("%w: missing exp", ErrInvalid)
	}
	if expired(claims.ExpiresAt, c.now()) {
		return AccessClaims{}, ErrExpired
	}

	return claims, nil
}
