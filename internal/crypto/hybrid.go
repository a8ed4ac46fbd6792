package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// ContentKeySize is the size of the per-message symmetric key.
	ContentKeySize = 32
	// IVSize is the CBC initialization vector size.
	IVSize = aes.BlockSize
	// TagSize is the size of the HMAC-SHA256 tag appended to the ciphertext.
	TagSize = sha256.Size
	// WrappedKeySize is the size of an RSA-OAEP wrapped content key.
	WrappedKeySize = KeyBits / 8

	kdfInfo = "wiredm/v1 aes-256-cbc hmac-sha256"
)

var (
	// ErrDecryption is returned when a sealed message cannot be opened: wrong
	// private key, corrupted wrapped key, failed tag check or bad padding.
	ErrDecryption = errors.New("cannot decrypt message")
	// ErrEntropy is returned when the randomness source fails. Callers must
	// not continue issuing keys after seeing it.
	ErrEntropy = errors.New("entropy source failure")
	// ErrInvalidKey is returned for missing, malformed or undersized keys.
	ErrInvalidKey = errors.New("invalid key")
)

// randReader is swapped in tests to simulate entropy failure.
var randReader io.Reader = rand.Reader

// Sealed is one hybrid-encrypted message.
type Sealed struct {
	// CipherText is the AES-256-CBC output followed by the HMAC tag.
	CipherText []byte
	// WrappedKey is the content key encrypted under the recipient's public key.
	WrappedKey []byte
	// IV is the fresh per-message initialization vector.
	IV []byte
}

// Encrypt seals plaintext for the holder of recipient's private key.
// Every call draws a new content key and IV.
func Encrypt(plaintext []byte, recipient *rsa.PublicKey) (*Sealed, error) {
	if recipient == nil {
		return nil, ErrInvalidKey
	}

	contentKey := make([]byte, ContentKeySize)
	if _, err := io.ReadFull(randReader, contentKey); err != nil {
		return nil, fmt.Errorf("%w: content key: %v", ErrEntropy, err)
	}
	defer Wipe(contentKey)

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrEntropy, err)
	}

	encKey, macKey, err := deriveKeys(contentKey)
	if err != nil {
		return nil, err
	}
	defer Wipe(encKey)
	defer Wipe(macKey)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	body := make([]byte, len(padded), len(padded)+TagSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(body, padded)
	Wipe(padded)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), randReader, recipient, contentKey, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap content key: %w", err)
	}

	return &Sealed{
		CipherText: append(body, tag(macKey, iv, body)...),
		WrappedKey: wrapped,
		IV:         iv,
	}, nil
}

// Decrypt opens a sealed message with the recipient's private key.
// Every failure wraps ErrDecryption; corrupted input never yields plaintext.
func Decrypt(sealed *Sealed, priv *rsa.PrivateKey) ([]byte, error) {
	if sealed == nil {
		return nil, decryptionError("empty message")
	}
	if priv == nil {
		return nil, decryptionError("missing private key")
	}
	if len(sealed.IV) != IVSize {
		return nil, decryptionError("bad iv length")
	}
	n := len(sealed.CipherText) - TagSize
	if n < aes.BlockSize || n%aes.BlockSize != 0 {
		return nil, decryptionError("bad ciphertext length")
	}

	contentKey, err := rsa.DecryptOAEP(sha256.New(), randReader, priv, sealed.WrappedKey, nil)
	if err != nil {
		return nil, decryptionError("unwrap content key")
	}
	defer Wipe(contentKey)
	if len(contentKey) != ContentKeySize {
		return nil, decryptionError("bad content key length")
	}

	encKey, macKey, err := deriveKeys(contentKey)
	if err != nil {
		return nil, err
	}
	defer Wipe(encKey)
	defer Wipe(macKey)

	body, gotTag := sealed.CipherText[:n], sealed.CipherText[n:]
	if !hmac.Equal(gotTag, tag(macKey, sealed.IV, body)) {
		return nil, decryptionError("authentication failed")
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	plain := make([]byte, n)
	cipher.NewCBCDecrypter(block, sealed.IV).CryptBlocks(plain, body)

	out, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, decryptionError(err.Error())
	}
	return out, nil
}

func deriveKeys(contentKey []byte) (encKey, macKey []byte, err error) {
	okm := make([]byte, 2*ContentKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, contentKey, nil, []byte(kdfInfo)), okm); err != nil {
		return nil, nil, fmt.Errorf("derive keys: %w", err)
	}
	return okm[:ContentKeySize], okm[ContentKeySize:], nil
}

func tag(macKey, iv, body []byte) []byte {
	m := hmac.New(sha256.New, macKey)
	m.Write(iv)
	m.Write(body)
	return m.Sum(nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	copy(out[len(data):], bytes.Repeat([]byte{byte(padLen)}, padLen))
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("bad padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, errors.New("bad padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("bad padding")
		}
	}
	return data[:len(data)-padLen], nil
}

func decryptionError(reason string) error {
	return fmt.Errorf("%w: %s", ErrDecryption, reason)
}
