// Package service provides the cryptographic primitives behind encrypted fields:
// AEAD ciphers, the retrying cipher service, the field encryptor and key loading.
package service

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt seals plaintext under a fresh random nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt opens ciphertext. It returns cryptoDomain.ErrDecryptionFailed when
	// the nonce has the wrong length or authentication fails.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager runs cipher operations with the AEAD of an encryption key.
type AEADManager interface {
	WithCipher(key *cryptoDomain.EncryptionKey, fn func(aead AEAD) error) error
}

// Reconnector re-establishes the connection to the key custodian and
// refreshes key material in place.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// CipherService seals and opens bytes with an encryption key. On failure it
// reconnects once and retries before reporting cryptoDomain.ErrCipherFailure.
type CipherService interface {
	Encrypt(ctx context.Context, key *cryptoDomain.EncryptionKey, plaintext []byte) (ciphertext, nonce []byte, err error)
	Decrypt(ctx context.Context, key *cryptoDomain.EncryptionKey, ciphertext, nonce []byte) ([]byte, error)
}

// KeyProvider exposes the active key and resolves key ids.
// *cryptoDomain.KeyRing implements it.
type KeyProvider interface {
	ActiveID() uuid.UUID
	Active() (*cryptoDomain.EncryptionKey, error)
	Resolve(id uuid.UUID) (*cryptoDomain.EncryptionKey, error)
}

// Encryptor refreshes and reveals encrypted fields.
type Encryptor interface {
	// Refresh returns the envelope that should be stored for plaintext. A nil
	// plaintext means the field is absent. When current is already sealed under
	// the active key and opens to plaintext, current is returned unchanged.
	Refresh(
		ctx context.Context,
		current cryptoDomain.EncryptedValue,
		plaintext []byte,
		keys KeyProvider,
	) (cryptoDomain.EncryptedValue, error)

	// Reveal returns the plaintext of field, nil when the field is absent.
	Reveal(ctx context.Context, field cryptoDomain.EncryptedValue, keys KeyProvider) ([]byte, error)
}

// KMSKeeper wraps and unwraps key material with an external key custodian.
// *secrets.Keeper from gocloud.dev implements it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens keepers for a KMS key URI.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}
