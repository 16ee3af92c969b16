package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by a PasswordVerifier on a wrong password.
var ErrPasswordMismatch = errors.New("password mismatch")

// PasswordVerifier compares a plaintext password with a stored hash.
type PasswordVerifier interface {
	Verify(hash, plain string) error
}

// BcryptVerifier checks bcrypt hashes.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(hash, plain string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// HashPassword hashes plain with bcrypt.DefaultCost.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
