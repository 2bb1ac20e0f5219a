package service

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

type cipherService struct {
	aeadManager AEADManager
	reconnector Reconnector
	logger      *slog.Logger
}

// NewCipherService creates a CipherService. reconnector may be nil when keys
// are not held by an external custodian; the retry still happens.
func NewCipherService(aeadManager AEADManager, reconnector Reconnector, logger *slog.Logger) CipherService {
	return &cipherService{
		aeadManager: aeadManager,
		reconnector: reconnector,
		logger:      logger,
	}
}

func (c *cipherService) Encrypt(
	ctx context.Context,
	key *cryptoDomain.EncryptionKey,
	plaintext []byte,
) (ciphertext, nonce []byte, err error) {
	err = c.withRetry(ctx, "encrypt", key, func(aead AEAD) error {
		ciphertext, nonce, err = aead.Encrypt(plaintext, nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, nonce, nil
}

func (c *cipherService) Decrypt(
	ctx context.Context,
	key *cryptoDomain.EncryptionKey,
	ciphertext, nonce []byte,
) (plaintext []byte, err error) {
	err = c.withRetry(ctx, "decrypt", key, func(aead AEAD) error {
		plaintext, err = aead.Decrypt(ciphertext, nonce, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (c *cipherService) withRetry(
	ctx context.Context,
	operation string,
	key *cryptoDomain.EncryptionKey,
	fn func(aead AEAD) error,
) error {
	attempt := func() error {
		return c.aeadManager.WithCipher(key, fn)
	}

	err := attempt()
	if err == nil {
		return nil
	}

	c.logger.Warn("cipher operation failed, reconnecting",
		slog.String("operation", operation),
		slog.String("key_name", key.Name),
		slog.Any("error", err),
	)

	if c.reconnector != nil {
		if rerr := c.reconnector.Reconnect(ctx); rerr != nil {
			return fmt.Errorf("%w: %w", cryptoDomain.ErrCipherFailure, rerr)
		}
	}

	if err := attempt(); err != nil {
		return fmt.Errorf("%w: %w", cryptoDomain.ErrCipherFailure, err)
	}
	return nil
}
