package domain

import (
	"bytes"

	"github.com/google/uuid"
)

// EncryptedValue is the envelope persisted for every protected field.
//
// A field whose plaintext is absent has nil Ciphertext and Nonce. KeyID is
// always set once the field has been refreshed, even when the field is absent,
// so rotation never selects an absent field.
type EncryptedValue struct {
	Ciphertext []byte
	Nonce      []byte
	KeyID      uuid.UUID
}

// IsEmpty reports whether the field holds no ciphertext.
func (v EncryptedValue) IsEmpty() bool {
	return len(v.Ciphertext) == 0 && len(v.Nonce) == 0
}

// Equal reports whether two envelopes are byte-for-byte identical.
func (v EncryptedValue) Equal(other EncryptedValue) bool {
	return v.KeyID == other.KeyID &&
		bytes.Equal(v.Ciphertext, other.Ciphertext) &&
		bytes.Equal(v.Nonce, other.Nonce)
}

// OnKey reports whether the field holds ciphertext sealed under keyID.
func (v EncryptedValue) OnKey(keyID uuid.UUID) bool {
	return !v.IsEmpty() && v.KeyID == keyID
}
