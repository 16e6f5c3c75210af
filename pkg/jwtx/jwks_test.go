package jwtx

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWK_RSAPublicKey(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := NewRSAJWK("test-key-id", "sig", "RS256", &privateKey.PublicKey)

	pub, err := jwk.RSAPublicKey()
	require.NoError(t, err)
	require.Equal(t, privateKey.PublicKey.N, pub.N)
	require.Equal(t, privateKey.PublicKey.E, pub.E)
}

func TestJWK_RSAPublicKey_UnsupportedKeyType(t *testing.T) {
	_, err := JWK{Kty: "OKP", Kid: "test-key"}.RSAPublicKey()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported kty")
}

func TestJWK_RSAPublicKey_InvalidBase64(t *testing.T) {
	jwk := JWK{
		Kty: "RSA",
		Kid: "test-key",
		N:   "!!!invalid-base64!!!",
		E:   "AQAB",
	}

	_, err := jwk.RSAPublicKey()
	require.Error(t, err)
}

func TestKeySet_ResetSkipsUnusableKeys(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	good := NewRSAJWK("good", "sig", "RS256", &privateKey.PublicKey)
	enc := NewRSAJWK("enc", "enc", "RSA-OAEP", &privateKey.PublicKey)

	ks := NewKeySet()
	kept := ks.ResetFromJWKS(JWKS{Keys: []JWK{
		good,
		enc,
		{Kty: "EC", Kid: "ec"},
		{Kty: "RSA", Kid: "broken", N: "!!!", E: "AQAB"},
	}})

	require.Equal(t, 1, kept)
	require.True(t, ks.IsReady())
	require.Equal(t, 1, ks.Len())

	pub, err := ks.Get("good")
	require.NoError(t, err)
	require.Equal(t, privateKey.PublicKey.N, pub.N)

	_, err = ks.Get("enc")
	require.ErrorIs(t, err, ErrNoKey)
}

func TestKeySet_Sole(t *testing.T) {
	a, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	b, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = NewKeySet().Sole()
	require.ErrorIs(t, err, ErrNoKey)

	one := NewKeySetFromJWKS(JWKS{Keys: []JWK{NewRSAJWK("a", "sig", "RS256", &a.PublicKey)}})
	pub, err := one.Sole()
	require.NoError(t, err)
	require.Equal(t, a.PublicKey.N, pub.N)

	two := NewKeySetFromJWKS(JWKS{Keys: []JWK{
		NewRSAJWK("a", "sig", "RS256", &a.PublicKey),
		NewRSAJWK("b", "sig", "RS256", &b.PublicKey),
	}})
	_, err = two.Sole()
	require.ErrorIs(t, err, ErrNoKey)
}
