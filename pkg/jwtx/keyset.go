package jwtx

import (
	"crypto/rsa"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds the RSA verification keys of one provider. It's safe for
// concurrent use; the cache swaps whole sets rather than mutating them, but
// callers that build sets by hand still get a consistent view.
type KeySet struct {
	mu  sync.RWMutex
	pub map[string]*rsa.PublicKey // kid -> key
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		pub: make(map[string]*rsa.PublicKey),
	}
}

// NewKeySetFromJWKS builds a KeySet from a fetched document.
func NewKeySetFromJWKS(jwks JWKS) *KeySet {
	k := NewKeySet()
	k.ResetFromJWKS(jwks)
	return k
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// Sole returns the key when the set holds exactly one. Tokens without a kid
// header are only accepted in that case.
func (k *KeySet) Sole() (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.pub) != 1 {
		return nil, ErrNoKey
	}
	for _, pk := range k.pub {
		return pk, nil
	}
	return nil, ErrNoKey
}

// Len reports how many usable keys are loaded.
func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub)
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	return k.Len() > 0
}

// ResetFromJWKS replaces all keys from a JWKS. Entries that are not RSA
// signing keys or fail to decode are skipped; providers mix key types and
// one odd entry should not take the whole set down. It returns how many
// keys were kept.
func (k *KeySet) ResetFromJWKS(jwks JWKS) int {
	newMap := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, j := range jwks.Keys {
		if !usableSigningKey(j) {
			continue
		}
		key, err := j.RSAPublicKey()
		if err != nil {
			continue
		}
		newMap[j.Kid] = key
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub = newMap

	return len(newMap)
}

func usableSigningKey(j JWK) bool {
	if j.Kty != "RSA" {
		return false
	}
	if j.Use != "" && j.Use != "sig" {
		return false
	}
	return j.Alg == "" || j.Alg == "RS256"
}
