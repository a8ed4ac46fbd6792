package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPEMRoundTrip(t *testing.T) {
	alice, _ := keyPairs(t)

	pubPEM, err := EncodePublicKey(alice.Public)
	require.NoError(t, err)
	assert.Contains(t, string(pubPEM), "BEGIN PUBLIC KEY")

	privPEM, err := EncodePrivateKey(alice.Private)
	require.NoError(t, err)
	assert.Contains(t, string(privPEM), "BEGIN PRIVATE KEY")

	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	priv, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)

	sealed, err := Encrypt([]byte("pem"), pub)
	require.NoError(t, err)
	plain, err := Decrypt(sealed, priv)
	require.NoError(t, err)
	assert.Equal(t, "pem", string(plain))

	assert.Equal(t, Fingerprint(alice.Public), Fingerprint(pub))
	assert.Len(t, Fingerprint(pub), 2*fingerprintBytes)
}

func TestParsePublicKeyRejectsGarbageAndShortKeys(t *testing.T) {
	_, err := ParsePublicKey([]byte("not a key"))
	require.ErrorIs(t, err, ErrInvalidKey)

	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&small.PublicKey)
	require.NoError(t, err)

	_, err = ParsePublicKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePublicKey(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestParsePKCS1Keys(t *testing.T) {
	alice, _ := keyPairs(t)

	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(alice.Public)})
	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	assert.True(t, pub.Equal(alice.Public))

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(alice.Private)})
	priv, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)
	assert.True(t, priv.Equal(alice.Private))
}
