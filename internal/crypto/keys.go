package crypto

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

// KeyBits is the modulus size of every identity key pair.
const KeyBits = 2048

const (
	pemTypePublic     = "PUBLIC KEY"
	pemTypePrivate    = "PRIVATE KEY"
	pemTypeRSAPublic  = "RSA PUBLIC KEY"
	pemTypeRSAPrivate = "RSA PRIVATE KEY"
	fingerprintBytes  = 10
)

// KeyPair is a long-lived identity key pair. The public half is published
// through the user directory; the private half never leaves the client.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// GenerateKeyPair returns a fresh RSA-2048 key pair.
// A failing randomness source is reported as ErrEntropy.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(randReader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: generate rsa key: %v", ErrEntropy, err)
	}
	return &KeyPair{Public: &priv.PublicKey, Private: priv}, nil
}

// EncodePublicKey returns the SPKI PEM encoding of pub.
func EncodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, ErrInvalidKey
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}), nil
}

// EncodePrivateKey returns the PKCS#8 PEM encoding of priv.
func EncodePrivateKey(priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, ErrInvalidKey
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePrivate, Bytes: der}), nil
}

// ParsePublicKey reads an SPKI or PKCS#1 PEM public key.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	var pub *rsa.PublicKey
	switch block.Type {
	case pemTypePublic:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
		}
		pub = rsaKey
	case pemTypeRSAPublic:
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		pub = key
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}

	if pub.N.BitLen() < KeyBits {
		return nil, fmt.Errorf("%w: key is %d bits, need %d", ErrInvalidKey, pub.N.BitLen(), KeyBits)
	}
	return pub, nil
}

// ParsePrivateKey reads a PKCS#8 or PKCS#1 PEM private key.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	switch block.Type {
	case pemTypePrivate:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
		}
		return rsaKey, nil
	case pemTypeRSAPrivate:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}
}

// Fingerprint returns a short, display-only fingerprint of pub.
func Fingerprint(pub *rsa.PublicKey) string {
	if pub == nil {
		return ""
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:fingerprintBytes])
}
