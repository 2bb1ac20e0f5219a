package service

import (
	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/credvault/internal/errors"
)

// Argon2Hasher hashes user passwords with Argon2id.
type Argon2Hasher struct {
	hasher *pwdhash.PasswordHasher
}

// NewArgon2Hasher creates a hasher with the Moderate policy.
func NewArgon2Hasher() (*Argon2Hasher, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}
	return &Argon2Hasher{hasher: hasher}, nil
}

// Hash returns the encoded Argon2id hash of password.
func (h *Argon2Hasher) Hash(password []byte) (string, error) {
	hashed, err := h.hasher.Hash(password)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash password")
	}
	return hashed, nil
}

// Verify reports whether password matches hashed.
func (h *Argon2Hasher) Verify(password []byte, hashed string) bool {
	ok, err := h.hasher.Verify(password, hashed)
	if err != nil {
		return false
	}
	return ok
}
