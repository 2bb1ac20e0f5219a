package service

import (
	"context"
	"crypto/subtle"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

type encryptor struct {
	cipher CipherService
}

// NewEncryptor creates an Encryptor on top of a CipherService.
func NewEncryptor(cipher CipherService) Encryptor {
	return &encryptor{cipher: cipher}
}

func (e *encryptor) Refresh(
	ctx context.Context,
	current cryptoDomain.EncryptedValue,
	plaintext []byte,
	keys KeyProvider,
) (cryptoDomain.EncryptedValue, error) {
	activeID := keys.ActiveID()

	if plaintext == nil {
		return cryptoDomain.EncryptedValue{KeyID: activeID}, nil
	}

	active, err := keys.Active()
	if err != nil {
		return cryptoDomain.EncryptedValue{}, err
	}

	if current.OnKey(activeID) {
		existing, err := e.cipher.Decrypt(ctx, active, current.Ciphertext, current.Nonce)
		if err != nil {
			return cryptoDomain.EncryptedValue{}, err
		}
		same := subtle.ConstantTimeCompare(existing, plaintext) == 1
		cryptoDomain.Zero(existing)
		if same {
			return current, nil
		}
	}

	ciphertext, nonce, err := e.cipher.Encrypt(ctx, active, plaintext)
	if err != nil {
		return cryptoDomain.EncryptedValue{}, err
	}

	return cryptoDomain.EncryptedValue{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		KeyID:      activeID,
	}, nil
}

func (e *encryptor) Reveal(
	ctx context.Context,
	field cryptoDomain.EncryptedValue,
	keys KeyProvider,
) ([]byte, error) {
	if field.IsEmpty() {
		return nil, nil
	}

	key, err := keys.Resolve(field.KeyID)
	if err != nil {
		return nil, err
	}

	plaintext, err := e.cipher.Decrypt(ctx, key, field.Ciphertext, field.Nonce)
	if err != nil {
		return nil, err
	}
	// An empty plaintext opens to nil; keep it distinguishable from an absent field.
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
