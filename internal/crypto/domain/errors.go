package domain

import (
	"github.com/allisson/credvault/internal/errors"
)

// Encryption key and cipher errors.
var (
	// ErrUnsupportedAlgorithm indicates the configured algorithm is not aes-gcm or chacha20-poly1305.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key that is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates authentication failed while opening a ciphertext.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrUnknownKey indicates a field references a key id the key ring cannot resolve.
	ErrUnknownKey = errors.Wrap(errors.ErrNotFound, "unknown encryption key")

	// ErrCipherFailure indicates the cipher still failed after one reconnect and retry.
	ErrCipherFailure = errors.Wrap(errors.ErrInternal, "cipher failure")

	// ErrKeysNotSet indicates ENCRYPTION_KEYS is empty.
	ErrKeysNotSet = errors.Wrap(errors.ErrInvalidInput, "encryption keys not set")

	// ErrInvalidKeysFormat indicates an ENCRYPTION_KEYS entry that is not name:base64.
	ErrInvalidKeysFormat = errors.Wrap(errors.ErrInvalidInput, "invalid encryption keys format")

	// ErrDuplicateKeyName indicates two configured keys share a name.
	ErrDuplicateKeyName = errors.Wrap(errors.ErrInvalidInput, "duplicate encryption key name")

	// ErrNoActiveKey indicates ACTIVE_ENCRYPTION_KEY is empty.
	ErrNoActiveKey = errors.Wrap(errors.ErrInvalidInput, "active encryption key not set")

	// ErrActiveKeyNotFound indicates ACTIVE_ENCRYPTION_KEY names no configured key.
	ErrActiveKeyNotFound = errors.Wrap(errors.ErrInvalidInput, "active encryption key not found")

	// ErrActiveKeyUnbound indicates the key ring has no canary bound to the active key.
	ErrActiveKeyUnbound = errors.Wrap(errors.ErrInternal, "active encryption key has no canary")

	// ErrKeyClosed indicates key material was used after the key was closed.
	ErrKeyClosed = errors.Wrap(errors.ErrInternal, "encryption key closed")
)
