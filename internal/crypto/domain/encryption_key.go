package domain

import (
	"sync"

	"github.com/awnumar/memguard"
)

// EncryptionKey is a configured symmetric key. The raw material lives in a
// memguard enclave and is only decrypted into locked memory for the duration
// of a single cipher operation.
type EncryptionKey struct {
	Name      string
	Algorithm Algorithm
	Active    bool

	mu       sync.RWMutex
	material *memguard.Enclave
}

// NewEncryptionKey seals material into an enclave. The material slice is wiped.
func NewEncryptionKey(name string, alg Algorithm, material []byte, active bool) (*EncryptionKey, error) {
	if len(material) != KeySize {
		Zero(material)
		return nil, ErrInvalidKeySize
	}
	return &EncryptionKey{
		Name:      name,
		Algorithm: alg,
		Active:    active,
		material:  memguard.NewEnclave(material),
	}, nil
}

// Use opens the key material and passes it to fn. The slice handed to fn is
// destroyed when fn returns and must not be retained.
func (k *EncryptionKey) Use(fn func(material []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.material == nil {
		return ErrKeyClosed
	}

	buf, err := k.material.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// Reset replaces the key material, used when a key custodian connection is
// re-established. The material slice is wiped.
func (k *EncryptionKey) Reset(material []byte) error {
	if len(material) != KeySize {
		Zero(material)
		return ErrInvalidKeySize
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.material = memguard.NewEnclave(material)
	return nil
}

// Close drops the enclave. Any later Use returns ErrKeyClosed.
func (k *EncryptionKey) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.material = nil
}
