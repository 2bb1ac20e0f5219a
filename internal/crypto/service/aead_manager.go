package service

import (
	"fmt"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

// cipherFactories builds the AEAD of each supported algorithm from raw key material.
var cipherFactories = map[cryptoDomain.Algorithm]func(material []byte) (AEAD, error){
	cryptoDomain.AESGCM: func(material []byte) (AEAD, error) {
		c, err := NewAESGCM(material)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
	cryptoDomain.ChaCha20: func(material []byte) (AEAD, error) {
		c, err := NewChaCha20Poly1305(material)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
}

type keyCipherManager struct{}

// NewAEADManager returns the AEADManager for keys held in protected memory.
func NewAEADManager() AEADManager {
	return keyCipherManager{}
}

// WithCipher opens the material of key, builds the AEAD for key.Algorithm and
// hands it to fn. The material is wiped once fn returns, so fn must not keep aead.
func (keyCipherManager) WithCipher(key *cryptoDomain.EncryptionKey, fn func(aead AEAD) error) error {
	if _, ok := cipherFactories[key.Algorithm]; !ok {
		return fmt.Errorf("%w: %q for key %s", cryptoDomain.ErrUnsupportedAlgorithm, key.Algorithm, key.Name)
	}

	return key.Use(func(material []byte) error {
		aead, err := newCipher(key.Algorithm, material)
		if err != nil {
			return err
		}
		return fn(aead)
	})
}

// newCipher builds the AEAD for alg over material, which must be KeySize bytes.
func newCipher(alg cryptoDomain.Algorithm, material []byte) (AEAD, error) {
	if len(material) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	build, ok := cipherFactories[alg]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	return build(material)
}
