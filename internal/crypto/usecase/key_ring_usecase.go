package usecase

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	cryptoService "github.com/allisson/credvault/internal/crypto/service"
	apperrors "github.com/allisson/credvault/internal/errors"
)

type keyRingUseCase struct {
	canaryRepo  CanaryRepository
	aeadManager cryptoService.AEADManager
	keys        []*cryptoDomain.EncryptionKey
	logger      *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	ring  *cryptoDomain.KeyRing
}

// NewKeyRingUseCase creates a KeyRingUseCase over the configured keys.
func NewKeyRingUseCase(
	canaryRepo CanaryRepository,
	aeadManager cryptoService.AEADManager,
	keys []*cryptoDomain.EncryptionKey,
	logger *slog.Logger,
) KeyRingUseCase {
	return &keyRingUseCase{
		canaryRepo:  canaryRepo,
		aeadManager: aeadManager,
		keys:        keys,
		logger:      logger,
	}
}

func (k *keyRingUseCase) Load(ctx context.Context) (*cryptoDomain.KeyRing, error) {
	if ring := k.cached(); ring != nil {
		return ring, nil
	}

	v, err, _ := k.group.Do("key-ring", func() (any, error) {
		if ring := k.cached(); ring != nil {
			return ring, nil
		}

		ring, err := k.build(ctx)
		if err != nil {
			return nil, err
		}

		k.mu.Lock()
		k.ring = ring
		k.mu.Unlock()
		return ring, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cryptoDomain.KeyRing), nil
}

func (k *keyRingUseCase) ActiveKeyID(ctx context.Context) (uuid.UUID, error) {
	ring, err := k.Load(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return ring.ActiveID(), nil
}

func (k *keyRingUseCase) KnownInactiveKeyIDs(ctx context.Context) ([]uuid.UUID, error) {
	ring, err := k.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ring.KnownInactiveIDs(), nil
}

func (k *keyRingUseCase) cached() *cryptoDomain.KeyRing {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.ring
}

func (k *keyRingUseCase) build(ctx context.Context) (*cryptoDomain.KeyRing, error) {
	active, ordered := k.orderKeys()
	if active == nil {
		return nil, cryptoDomain.ErrNoActiveKey
	}

	canaries, err := k.canaryRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	bindings := make(map[uuid.UUID]*cryptoDomain.EncryptionKey)
	bound := make(map[*cryptoDomain.EncryptionKey]bool)
	var (
		unknown  []uuid.UUID
		activeID uuid.UUID
	)

	for _, canary := range canaries {
		key, err := k.match(canary, ordered)
		if err != nil {
			return nil, err
		}
		if key == nil {
			unknown = append(unknown, canary.ID)
			k.logger.Warn("encryption key canary matches no configured key",
				slog.String("canary_id", canary.ID.String()),
			)
			continue
		}

		bindings[canary.ID] = key
		bound[key] = true
		if key == active && activeID == uuid.Nil {
			activeID = canary.ID
		}
	}

	if activeID == uuid.Nil {
		canary, err := k.createCanary(ctx, active)
		if err != nil {
			return nil, err
		}
		bindings[canary.ID] = active
		bound[active] = true
		activeID = canary.ID

		k.logger.Info("created canary for active encryption key",
			slog.String("key_name", active.Name),
			slog.String("canary_id", canary.ID.String()),
		)
	}

	for _, key := range k.keys {
		if !bound[key] {
			k.logger.Info("configured encryption key has no canary and is not needed",
				slog.String("key_name", key.Name),
			)
		}
	}

	ring, err := cryptoDomain.NewKeyRing(activeID, bindings, unknown)
	if err != nil {
		return nil, err
	}

	k.logger.Info("key ring loaded",
		slog.String("active_key_id", activeID.String()),
		slog.Int("inactive_keys", len(ring.KnownInactiveIDs())),
		slog.Int("unknown_keys", len(unknown)),
	)
	return ring, nil
}

// orderKeys puts the active key first so the common case needs one attempt.
func (k *keyRingUseCase) orderKeys() (*cryptoDomain.EncryptionKey, []*cryptoDomain.EncryptionKey) {
	var active *cryptoDomain.EncryptionKey
	ordered := make([]*cryptoDomain.EncryptionKey, 0, len(k.keys))
	for _, key := range k.keys {
		if key.Active && active == nil {
			active = key
			ordered = append([]*cryptoDomain.EncryptionKey{key}, ordered...)
			continue
		}
		ordered = append(ordered, key)
	}
	return active, ordered
}

// match returns the first key whose cipher opens the canary to CanaryValue,
// or nil when none does. Authentication failures are expected and skipped.
func (k *keyRingUseCase) match(
	canary *cryptoDomain.Canary,
	keys []*cryptoDomain.EncryptionKey,
) (*cryptoDomain.EncryptionKey, error) {
	for _, key := range keys {
		matched := false
		err := k.aeadManager.WithCipher(key, func(aead cryptoService.AEAD) error {
			plaintext, err := aead.Decrypt(canary.Ciphertext, canary.Nonce, nil)
			if err != nil {
				return nil
			}
			matched = subtle.ConstantTimeCompare(plaintext, []byte(cryptoDomain.CanaryValue)) == 1
			return nil
		})
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to check encryption key canary")
		}
		if matched {
			return key, nil
		}
	}
	return nil, nil
}

func (k *keyRingUseCase) createCanary(
	ctx context.Context,
	key *cryptoDomain.EncryptionKey,
) (*cryptoDomain.Canary, error) {
	canary := &cryptoDomain.Canary{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedAt: time.Now().UTC(),
	}

	err := k.aeadManager.WithCipher(key, func(aead cryptoService.AEAD) error {
		var err error
		canary.Ciphertext, canary.Nonce, err = aead.Encrypt([]byte(cryptoDomain.CanaryValue), nil)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt canary")
	}

	if err := k.canaryRepo.Create(ctx, canary); err != nil {
		return nil, err
	}
	return canary, nil
}
