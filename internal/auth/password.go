package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 10

	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

// dummyHash is compared against on unknown usernames so that login takes
// about as long whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("wiredm-dummy-password"), bcryptCost)

// ValidatePassword enforces the length limits.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: must be %d to %d bytes", ErrInvalidPassword, minPasswordLen, maxPasswordLen)
	}
	return nil
}

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordMatches reports whether password matches hashedPassword. An empty
// hash is checked against a dummy to keep timing uniform.
func PasswordMatches(hashedPassword, password string) bool {
	hash := []byte(hashedPassword)
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
