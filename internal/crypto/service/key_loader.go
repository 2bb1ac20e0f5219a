package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

// KeyLoaderConfig holds the key settings read from the environment.
type KeyLoaderConfig struct {
	Keys      string
	ActiveKey string
	Algorithm cryptoDomain.Algorithm
	KMSKeyURI string
}

// KeyLoader turns the ENCRYPTION_KEYS setting into encryption keys.
//
// When KMSKeyURI is set every configured value is a KMS ciphertext that is
// unwrapped through the keeper. KeyLoader implements Reconnector: it reopens
// the keeper and resets the material of the keys it handed out.
type KeyLoader struct {
	cfg        KeyLoaderConfig
	kmsService KMSService
	logger     *slog.Logger

	mu    sync.Mutex
	specs []cryptoDomain.KeySpec
	keys  []*cryptoDomain.EncryptionKey
}

// NewKeyLoader creates a KeyLoader.
func NewKeyLoader(cfg KeyLoaderConfig, kmsService KMSService, logger *slog.Logger) *KeyLoader {
	return &KeyLoader{cfg: cfg, kmsService: kmsService, logger: logger}
}

// Load parses and unwraps the configured keys. Repeated calls return the same keys.
func (l *KeyLoader) Load(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.keys != nil {
		return l.keys, nil
	}

	specs, err := cryptoDomain.ParseKeySpecs(l.cfg.Keys, l.cfg.ActiveKey)
	if err != nil {
		return nil, err
	}

	materials, err := l.unwrapAll(ctx, specs)
	if err != nil {
		return nil, err
	}

	keys := make([]*cryptoDomain.EncryptionKey, 0, len(specs))
	for i, spec := range specs {
		key, err := cryptoDomain.NewEncryptionKey(spec.Name, l.cfg.Algorithm, materials[i], spec.Active)
		if err != nil {
			cryptoDomain.ZeroAll(materials[i+1:]...)
			return nil, fmt.Errorf("encryption key %s: %w", spec.Name, err)
		}
		keys = append(keys, key)
	}

	l.logger.Info("encryption keys loaded",
		slog.Int("count", len(keys)),
		slog.String("active_key", l.cfg.ActiveKey),
		slog.String("algorithm", string(l.cfg.Algorithm)),
		slog.Bool("kms", l.cfg.KMSKeyURI != ""),
	)

	l.specs = specs
	l.keys = keys
	return keys, nil
}

// Reconnect re-unwraps every loaded key through a fresh keeper. Without a
// KMS key URI there is no connection to re-establish and it returns nil.
func (l *KeyLoader) Reconnect(ctx context.Context) error {
	if l.cfg.KMSKeyURI == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.keys == nil {
		return nil
	}

	materials, err := l.unwrapAll(ctx, l.specs)
	if err != nil {
		return err
	}

	for i, key := range l.keys {
		if err := key.Reset(materials[i]); err != nil {
			cryptoDomain.ZeroAll(materials[i+1:]...)
			return err
		}
	}

	l.logger.Info("encryption keys reloaded from KMS", slog.Int("count", len(l.keys)))
	return nil
}

// Generate creates new random key material and returns the value to place in
// ENCRYPTION_KEYS, wrapped by the KMS when one is configured.
func (l *KeyLoader) Generate(ctx context.Context) (string, error) {
	material := make([]byte, cryptoDomain.KeySize)
	defer cryptoDomain.Zero(material)

	if _, err := rand.Read(material); err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}

	if l.cfg.KMSKeyURI == "" {
		return base64.StdEncoding.EncodeToString(material), nil
	}

	keeper, err := l.kmsService.OpenKeeper(ctx, l.cfg.KMSKeyURI)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = keeper.Close()
	}()

	wrapped, err := keeper.Encrypt(ctx, material)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt key with KMS: %w", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// Close drops the material of every loaded key.
func (l *KeyLoader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range l.keys {
		key.Close()
	}
	l.keys = nil
	l.specs = nil
}

func (l *KeyLoader) unwrapAll(ctx context.Context, specs []cryptoDomain.KeySpec) ([][]byte, error) {
	var keeper KMSKeeper
	if l.cfg.KMSKeyURI != "" {
		k, err := l.kmsService.OpenKeeper(ctx, l.cfg.KMSKeyURI)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = k.Close()
		}()
		keeper = k
	}

	materials := make([][]byte, 0, len(specs))
	for _, spec := range specs {
		material, err := spec.Decode()
		if err != nil {
			cryptoDomain.ZeroAll(materials...)
			return nil, err
		}

		if keeper != nil {
			wrapped := material
			material, err = keeper.Decrypt(ctx, wrapped)
			if err != nil {
				cryptoDomain.ZeroAll(materials...)
				return nil, fmt.Errorf("failed to decrypt encryption key %s with KMS: %w", spec.Name, err)
			}
		}

		materials = append(materials, material)
	}
	return materials, nil
}
