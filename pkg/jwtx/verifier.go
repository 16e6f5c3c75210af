package jwtx

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Every verification failure wraps exactly one of these so callers can map
// it to a reason with errors.Is or ReasonOf.
var (
	ErrMissing     = errors.New("jwtx: token missing")
	ErrInvalid     = errors.New("jwtx: token invalid")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrBadAudience = errors.New("jwtx: audience not allowed")
)

// Reason strings reported in logs and tests.
const (
	ReasonMissing     = "missing"
	ReasonInvalid     = "invalid"
	ReasonExpired     = "expired"
	ReasonBadAudience = "bad_audience"
)

// ReasonOf maps a verification error onto its reason string. A nil error
// yields "" and anything unrecognised is reported as invalid.
func ReasonOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissing):
		return ReasonMissing
	case errors.Is(err, ErrExpired):
		return ReasonExpired
	case errors.Is(err, ErrBadAudience):
		return ReasonBadAudience
	default:
		return ReasonInvalid
	}
}

// splitCompact splits a compact JWS into its three segments. Anything other
// than three non-empty segments is rejected before any decoding happens.
func splitCompact(token string) ([]string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

// numericExp rejects an exp claim that is present but not a JSON number.
// jwt.NumericDate on its own also accepts a quoted number.
func numericExp(p *jwt.Parser, payload string) error {
	raw, err := p.DecodeSegment(payload)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	exp, ok := fields["exp"]
	if !ok {
		return nil
	}
	if len(exp) == 0 || (exp[0] != '-' && (exp[0] < '0' || exp[0] > '9')) {
		return errors.New("exp is not a number")
	}
	return nil
}
