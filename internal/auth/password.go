package auth

import (
	"errors"
	"fmt"
	"sync"

	"backoffice-api/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// HashPassword hashes a password with bcrypt's default cost
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", models.Validationf("password must be at most %d bytes", MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", models.Validationf("password must be at most %d bytes", MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DummyHash is a bcrypt hash of a random secret nobody knows. Comparing
// against it costs the same as checking a real account.
func DummyHash() string {
	dummyHashOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("auth: failed to build dummy hash: %v", err))
		}
		dummyHash = string(hash)
	})
	return dummyHash
}
