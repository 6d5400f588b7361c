package crypto

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is deliberately above the library default to slow offline
// cracking of leaked hashes.
const bcryptCost = 12

const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

var ErrPasswordMismatch = errors.New("password does not match")

// PolicyError reports why a candidate password was rejected. The password
// itself is never included.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// HashPassword produces an adaptive one-way hash of the plaintext.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext candidate against a stored hash.
func CheckPassword(plain, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidatePassword enforces the account password policy: 8-128 characters
// with at least one upper-case letter, one lower-case letter, and one digit.
func ValidatePassword(plain string) error {
	if len(plain) < minPasswordLen {
		return &PolicyError{Reason: fmt.Sprintf("password must be at least %d characters", minPasswordLen)}
	}
	if len(plain) > maxPasswordLen {
		return &PolicyError{Reason: fmt.Sprintf("password must be at most %d characters", maxPasswordLen)}
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return &PolicyError{Reason: "password must contain an upper-case letter"}
	}
	if !hasLower {
		return &PolicyError{Reason: "password must contain a lower-case letter"}
	}
	if !hasDigit {
		return &PolicyError{Reason: "password must contain a digit"}
	}
	return nil
}
