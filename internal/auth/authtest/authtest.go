// Package authtest builds sealed platform credentials for tests.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v4"
)

// NewKey generates an RSA key or fails the test.
func NewKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

// PublicKeyPEM encodes the public half of key as a PKIX PEM block.
func PublicKeyPEM(t testing.TB, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// PrivateKeyPEM encodes key as a PKCS#1 PEM block.
func PrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// Seal signs claims with the platform key (RS512) and encrypts the result for
// the service key (RSA-OAEP-256, A256CBC-HS512, deflated).
func Seal(t testing.TB, claims map[string]any, platformKey *rsa.PrivateKey, servicePub *rsa.PublicKey) string {
	t.Helper()
	return SealWith(t, jwt.SigningMethodRS512, claims, platformKey, servicePub)
}

// SealWith is Seal with a chosen signing method.
func SealWith(t testing.TB, method jwt.SigningMethod, claims map[string]any, signKey any, servicePub *rsa.PublicKey) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, jwt.MapClaims(claims)).SignedString(signKey)
	if err != nil {
		t.Fatalf("sign claims: %v", err)
	}
	enc, err := jose.NewEncrypter(jose.A256CBC_HS512,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: servicePub},
		&jose.EncrypterOptions{Compression: jose.DEFLATE})
	if err != nil {
		t.Fatalf("new encrypter: %v", err)
	}
	obj, err := enc.Encrypt([]byte(signed))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	out, err := obj.CompactSerialize()
	if err != nil {
		t.Fatalf("serialize jwe: %v", err)
	}
	return out
}
