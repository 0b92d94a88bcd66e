package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/me/folio/pkg/model"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced when a password is set.
const MinPasswordLength = 8

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
// The two cases are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword returns the bcrypt hash stored for an admin.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// VerifyPassword checks password against admin's hash. A nil admin still
// pays for one bcrypt comparison so unknown emails take as long as wrong
// passwords.
func VerifyPassword(admin *model.Admin, password string) error {
	if admin == nil {
		dummyOnce.Do(func() {
			dummyHash, _ = bcrypt.GenerateFromPassword([]byte("folio-dummy-password"), bcrypt.DefaultCost)
		})
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
