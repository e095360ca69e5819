package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAdminLoginDisabled = errors.New("admin login: no password hash configured")
	ErrInvalidPassword    = errors.New("admin login: invalid password")
)

// PasswordVerifier checks the admin password against a bcrypt hash.
type PasswordVerifier struct {
	hash []byte
}

// NewPasswordVerifier wraps a bcrypt hash. An empty hash disables admin login.
func NewPasswordVerifier(hash string) *PasswordVerifier {
	return &PasswordVerifier{hash: []byte(strings.TrimSpace(hash))}
}

// Verify returns nil when password matches the configured hash.
func (v *PasswordVerifier) Verify(password string) error {
	if v == nil || len(v.hash) == 0 {
		return ErrAdminLoginDisabled
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
