// Package crypto implements the hybrid message cipher used end to end by
// wiredm clients.
//
// Contents
//
//   - RSA-2048 key pair generation and PEM encoding (GenerateKeyPair,
//     EncodePublicKey, ParsePublicKey, EncodePrivateKey, ParsePrivateKey)
//   - Hybrid sealing of a message (Encrypt, Decrypt): a fresh 256-bit content
//     key and IV per message, AES-256-CBC with PKCS#7 padding, and the content
//     key wrapped with RSA-OAEP(SHA-256) under the recipient's public key
//   - Wire helpers and shape validation for relays that must not decrypt
//     (Wire, ValidateShape)
//   - Best-effort memory wiping for key material (Wipe)
//
// # Integrity
//
// CBC on its own does not detect tampering: a flipped bit in any block but
// the last still unpads cleanly. The content key is therefore expanded with
// HKDF-SHA256 into an AES key and an HMAC-SHA256 key, and the tag over
// iv || ciphertext is appended to the ciphertext. Decrypt checks the tag
// before touching the padding.
package crypto
