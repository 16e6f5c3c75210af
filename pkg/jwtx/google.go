package jwtx

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleKeySetURL is where Google publishes its ID token signing keys.
const GoogleKeySetURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleIssuers are the iss values Google is documented to use.
var GoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// GoogleIdentity is what a verified Google ID token tells us.
type GoogleIdentity struct {
	UserID string
	Claims GoogleClaims
}

// GoogleVerifierConfig wires a GoogleVerifier.
type GoogleVerifierConfig struct {
	// ClientIDs are the OAuth client ids accepted as aud.
	ClientIDs []string

	// KeySetURL defaults to GoogleKeySetURL.
	KeySetURL string

	Keys *KeySetCache
	Now  func() time.Time
}

// GoogleVerifier validates Google Sign-In ID tokens.
type GoogleVerifier struct {
	clientIDs []string
	keySetURL string
	keys      *KeySetCache
	now       func() time.Time
	parser    *jwt.Parser
}

// NewGoogleVerifier checks the config and returns a verifier.
func NewGoogleVerifier(cfg GoogleVerifierConfig) (*GoogleVerifier, error) {
	if len(cfg.ClientIDs) == 0 {
		return nil, errors.New("jwtx: at least one client id is required")
	}
	if cfg.Keys == nil {
		return nil, errors.New("jwtx: key set cache is required")
	}
	if cfg.KeySetURL == "" {
		cfg.KeySetURL = GoogleKeySetURL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &GoogleVerifier{
		clientIDs: cfg.ClientIDs,
		keySetURL: cfg.KeySetURL,
		keys:      cfg.Keys,
		now:       cfg.Now,
		parser:    jwt.NewParser(),
	}, nil
}

// Verify runs the checks in a fixed order: structure, issuer, audience,
// expiry, key lookup and finally the RS256 signature. Only the audience and
// expiry checks have their own reasons; every other failure is ErrInvalid.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (GoogleIdentity, error) {
	if token == "" {
		return GoogleIdentity{}, ErrMissing
	}

	parts, ok := splitCompact(token)
	if !ok {
		return GoogleIdentity{}, fmt.Errorf("%w: malformed", ErrInvalid)
	}

	var claims GoogleClaims
	t, _, err := v.parser.ParseUnverified(token, &claims)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if t.Method != jwt.SigningMethodRS256 {
		return GoogleIdentity{}, fmt.Errorf("%w: unexpected alg %q", ErrInvalid, t.Method.Alg())
	}
	if err := numericExp(v.parser, parts[1]); err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil || claims.Issuer == "" ||
		len(claims.Audience) == 0 || slices.Contains(claims.Audience, "") {
		return GoogleIdentity{}, fmt.Errorf("%w: missing required claims", ErrInvalid)
	}
	if err := claims.ValidateIssuer(GoogleIssuers); err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: issuer %q", err, claims.Issuer)
	}
	if err := claims.ValidateAudience(v.clientIDs); err != nil {
		return GoogleIdentity{}, err
	}
	if expired(claims.ExpiresAt, v.now()) {
		return GoogleIdentity{}, ErrExpired
	}

	kid, _ := t.Header["kid"].(string)
	pub, err := v.resolveKey(ctx, kid)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	sig, err := v.parser.DecodeSegment(parts[2])
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: signature encoding: %v", ErrInvalid, err)
	}
	if err := jwt.SigningMethodRS256.Verify(parts[0]+"."+parts[1], sig, pub); err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return GoogleIdentity{UserID: claims.Subject, Claims: claims}, nil
}

// KeysLoaded reports whether Google's key set has been fetched at least
// once. It never triggers a fetch.
func (v *GoogleVerifier) KeysLoaded() bool {
	_, _, ok := v.keys.Cached(v.keySetURL)
	return ok
}

// resolveKey picks the verification key. A kid must match exactly; a token
// without one is only accepted when the set holds a single key. An unknown
// kid forces one refetch since Google rotates its keys.
func (v *GoogleVerifier) resolveKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks, err := v.keys.Get(ctx, v.keySetURL)
	if err != nil {
		return nil, err
	}

	if kid == "" {
		return ks.Sole()
	}

	pub, err := ks.Get(kid)
	if err == nil {
		return pub, nil
	}

	ks, refreshed, rerr := v.keys.Refresh(ctx, v.keySetURL)
	if rerr != nil {
		return nil, rerr
	}
	if !refreshed {
		return nil, fmt.Errorf("unknown kid %q: %w", kid, err)
	}
	return ks.Get(kid)
}
