package domain

import (
	"time"

	"github.com/google/uuid"
)

// Canary is a persisted ciphertext of CanaryValue. Its ID is the key id that
// encrypted fields reference, so storage never carries a key name or material.
type Canary struct {
	ID         uuid.UUID
	Ciphertext []byte
	Nonce      []byte
	CreatedAt  time.Time
}
