package domain

import (
	"github.com/allisson/credvault/internal/errors"
)

// Secret errors.
var (
	// ErrSecretNotFound indicates no secret matches the requested name, version or id.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrNameCollision indicates a concurrent writer created the same name first.
	ErrNameCollision = errors.Wrap(errors.ErrConflict, "secret name already exists")

	// ErrInvalidPlaintext indicates the supplied secret value failed validation.
	ErrInvalidPlaintext = errors.Wrap(errors.ErrInvalidInput, "invalid secret value")

	// ErrUnsupportedSecretType indicates an unknown type tag or a type that cannot be generated.
	ErrUnsupportedSecretType = errors.Wrap(errors.ErrInvalidInput, "unsupported secret type")

	// ErrInvalidGenerationParameters indicates parameters that cannot produce a credential.
	ErrInvalidGenerationParameters = errors.Wrap(errors.ErrInvalidInput, "invalid generation parameters")

	// ErrRotationInProgress indicates another rotation sweep is running on this engine.
	ErrRotationInProgress = errors.Wrap(errors.ErrConflict, "encryption key rotation already in progress")

	// ErrStaleSecret indicates the secret was rewritten since it was read.
	ErrStaleSecret = errors.Wrap(errors.ErrConflict, "secret was modified concurrently")

	// ErrVersionConflict indicates another writer stored the same version of a name first.
	ErrVersionConflict = errors.Wrap(errors.ErrConflict, "secret version already exists")
)
