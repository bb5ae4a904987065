// Package auth provides optional password protection for the web UI:
// bcrypt password verification, server-side sessions, and per-IP rate
// limiting of login attempts.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the hashing work factor. 12 keeps verification around 250ms,
// which also damps online brute forcing.
const BcryptCost = 12

// ErrEmptyPassword is returned when hashing or verifying an empty password.
var ErrEmptyPassword = errors.New("auth: password cannot be empty")

// ErrPasswordMismatch is returned when verification fails.
var ErrPasswordMismatch = errors.New("auth: password does not match")

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a bcrypt hash.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
