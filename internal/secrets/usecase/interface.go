// Package usecase implements the secret read/write path and the encryption
// key rotation engine.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

// SecretRepository persists secret names and versions.
type SecretRepository interface {
	// GetNameID returns the id of a name, matched case-insensitively.
	GetNameID(ctx context.Context, name string) (uuid.UUID, error)
	// CreateName inserts a name. It returns ErrNameCollision when the name exists.
	CreateName(ctx context.Context, id uuid.UUID, name string, createdAt time.Time) error

	// Create inserts a new version. It returns ErrVersionConflict when the version exists.
	Create(ctx context.Context, secret *secretsDomain.Secret) error
	// UpdateEncryption rewrites the encrypted columns and updated_at of an existing
	// version in place, provided updated_at still equals previousUpdatedAt.
	// It returns ErrStaleSecret when no row matched.
	UpdateEncryption(ctx context.Context, secret *secretsDomain.Secret, previousUpdatedAt time.Time) error

	GetLatestByName(ctx context.Context, name string) (*secretsDomain.Secret, error)
	GetByNameAndVersion(ctx context.Context, name string, version uint) (*secretsDomain.Secret, error)
	GetByID(ctx context.Context, id uuid.UUID) (*secretsDomain.Secret, error)
	// ListVersionsByName returns every version of a name, newest first.
	ListVersionsByName(ctx context.Context, name string) ([]*secretsDomain.Secret, error)
	// DeleteByName removes a name with all of its versions and returns the number of versions removed.
	DeleteByName(ctx context.Context, name string) (int64, error)

	// CountNotOnKey counts versions with any encrypted field holding ciphertext under a key other than keyID.
	CountNotOnKey(ctx context.Context, keyID uuid.UUID) (int64, error)
	// GetBatchOnKeys returns up to limit versions with any encrypted field holding
	// ciphertext under one of keyIDs, oldest first. It always reads from the start.
	GetBatchOnKeys(ctx context.Context, keyIDs []uuid.UUID, limit int) ([]*secretsDomain.Secret, error)
}

// KeyRingLoader provides the process key ring. crypto/usecase.KeyRingUseCase implements it.
type KeyRingLoader interface {
	Load(ctx context.Context) (*cryptoDomain.KeyRing, error)
}

// Generator produces credential material for generatable types.
type Generator interface {
	Generate(t secretsDomain.Type, params secretsDomain.GenerateParameters) (*secretsDomain.Credential, error)
}

// PasswordHasher hashes user passwords.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
}

// SetSecretInput is a write of caller-supplied material.
type SetSecretInput struct {
	Name  string
	Type  secretsDomain.Type
	Value []byte
	// Details carries the plain parts of certificate, ssh, rsa and user secrets.
	Details secretsDomain.Details
	// Parameters is stored encrypted for password secrets.
	Parameters *secretsDomain.PasswordParameters
	// Overwrite creates a new version when the name exists. When false the
	// existing latest version is returned unchanged.
	Overwrite bool
}

// GenerateSecretInput is a write of generated material.
type GenerateSecretInput struct {
	Name       string
	Type       secretsDomain.Type
	Parameters secretsDomain.GenerateParameters
	Overwrite  bool
}

// SecretUseCase is the secret read/write path.
//
// Returned secrets carry plaintext in Plaintext; callers must zero it after use
// with cryptoDomain.Zero.
type SecretUseCase interface {
	Set(ctx context.Context, input SetSecretInput) (*secretsDomain.Secret, error)
	Generate(ctx context.Context, input GenerateSecretInput) (*secretsDomain.Secret, error)
	Get(ctx context.Context, name string) (*secretsDomain.Secret, error)
	GetByVersion(ctx context.Context, name string, version uint) (*secretsDomain.Secret, error)
	GetByID(ctx context.Context, id uuid.UUID) (*secretsDomain.Secret, error)
	ListVersions(ctx context.Context, name string) ([]*secretsDomain.Secret, error)
	Delete(ctx context.Context, name string) error
}

// RotationReport summarizes one rotation sweep.
type RotationReport struct {
	// Rotated is the number of versions rewritten onto the active key.
	Rotated int64
	// Conflicts is the number of rewrites lost to a concurrent writer.
	Conflicts int64
	// Skipped is the number of versions still not on the active key after the
	// sweep, typically because they reference unknown keys.
	Skipped int64
	// Batches is the number of non-empty pages processed.
	Batches  int
	Duration time.Duration
}

// RotationUseCase migrates every encrypted field off inactive keys.
type RotationUseCase interface {
	Rotate(ctx context.Context) (*RotationReport, error)
}
