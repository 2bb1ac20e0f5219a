// Package usecase builds the process-wide key ring by validating configured
// keys against the persisted canaries.
package usecase

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

// CanaryRepository persists encryption key canaries.
type CanaryRepository interface {
	Create(ctx context.Context, canary *cryptoDomain.Canary) error
	List(ctx context.Context) ([]*cryptoDomain.Canary, error)
}

// KeyRingUseCase resolves configured keys to canary ids.
type KeyRingUseCase interface {
	// Load returns the key ring, building it on first call. Concurrent first
	// callers share one build; later calls return the cached ring.
	Load(ctx context.Context) (*cryptoDomain.KeyRing, error)

	// ActiveKeyID returns the id new encryptions are tagged with.
	ActiveKeyID(ctx context.Context) (uuid.UUID, error)

	// KnownInactiveKeyIDs returns the ids rotation should migrate away from.
	KnownInactiveKeyIDs(ctx context.Context) ([]uuid.UUID, error)
}
