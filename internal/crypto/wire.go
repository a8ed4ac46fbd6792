package crypto

import (
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned when a wire envelope does not have the
// shape of a sealed message.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// WireSealed is the JSON form of a sealed message. All fields are standard
// base64.
type WireSealed struct {
	Content string `json:"content"`
	Key     string `json:"key"`
	IV      string `json:"iv"`
}

// Wire encodes s for transport.
func (s *Sealed) Wire() WireSealed {
	return WireSealed{
		Content: b64(s.CipherText),
		Key:     b64(s.WrappedKey),
		IV:      b64(s.IV),
	}
}

// Sealed decodes the wire form. Shape is checked with ValidateShape.
func (w WireSealed) Sealed() (*Sealed, error) {
	if err := ValidateShape(w); err != nil {
		return nil, err
	}
	ct, _ := base64.StdEncoding.DecodeString(w.Content)
	key, _ := base64.StdEncoding.DecodeString(w.Key)
	iv, _ := base64.StdEncoding.DecodeString(w.IV)
	return &Sealed{CipherText: ct, WrappedKey: key, IV: iv}, nil
}

// ValidateShape checks that w looks like the output of Encrypt without
// decrypting anything.
func ValidateShape(w WireSealed) error {
	ct, err := base64.StdEncoding.DecodeString(w.Content)
	if err != nil {
		return fmt.Errorf("%w: content is not base64", ErrMalformedEnvelope)
	}
	key, err := base64.StdEncoding.DecodeString(w.Key)
	if err != nil {
		return fmt.Errorf("%w: key is not base64", ErrMalformedEnvelope)
	}
	iv, err := base64.StdEncoding.DecodeString(w.IV)
	if err != nil {
		return fmt.Errorf("%w: iv is not base64", ErrMalformedEnvelope)
	}

	if len(iv) != IVSize {
		return fmt.Errorf("%w: iv must be %d bytes", ErrMalformedEnvelope, IVSize)
	}
	if len(key) != WrappedKeySize {
		return fmt.Errorf("%w: wrapped key must be %d bytes", ErrMalformedEnvelope, WrappedKeySize)
	}
	n := len(ct) - TagSize
	if n < aes.BlockSize || n%aes.BlockSize != 0 {
		return fmt.Errorf("%w: bad ciphertext length %d", ErrMalformedEnvelope, len(ct))
	}
	return nil
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
