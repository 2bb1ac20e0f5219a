package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	cryptoService "github.com/allisson/credvault/internal/crypto/service"
)

type fakeCanaryRepository struct {
	mu        sync.Mutex
	canaries  []*cryptoDomain.Canary
	listCalls int
	listErr   error
}

func (f *fakeCanaryRepository) Create(ctx context.Context, canary *cryptoDomain.Canary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canaries = append(f.canaries, canary)
	return nil
}

func (f *fakeCanaryRepository) List(ctx context.Context) ([]*cryptoDomain.Canary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*cryptoDomain.Canary(nil), f.canaries...), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKey(t *testing.T, name string, fill byte, active bool) *cryptoDomain.EncryptionKey {
	t.Helper()
	key, err := cryptoDomain.NewEncryptionKey(
		name,
		cryptoDomain.AESGCM,
		bytes.Repeat([]byte{fill}, cryptoDomain.KeySize),
		active,
	)
	require.NoError(t, err)
	return key
}

// canaryFor seals CanaryValue with raw key material filled with fill.
func canaryFor(t *testing.T, fill byte) *cryptoDomain.Canary {
	t.Helper()
	key, err := cryptoDomain.NewEncryptionKey(
		"canary", cryptoDomain.AESGCM, bytes.Repeat([]byte{fill}, cryptoDomain.KeySize), false,
	)
	require.NoError(t, err)
	defer key.Close()

	var ciphertext, nonce []byte
	err = cryptoService.NewAEADManager().WithCipher(key, func(aead cryptoService.AEAD) error {
		ciphertext, nonce, err = aead.Encrypt([]byte(cryptoDomain.CanaryValue), nil)
		return err
	})
	require.NoError(t, err)

	return &cryptoDomain.Canary{
		ID:         uuid.Must(uuid.NewV7()),
		Ciphertext: ciphertext,
		Nonce:      nonce,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestKeyRingUseCase_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("creates canary for active key on empty storage", func(t *testing.T) {
		repo := &fakeCanaryRepository{}
		active := newKey(t, "current", 1, true)
		uc := NewKeyRingUseCase(repo, cryptoService.NewAEADManager(), []*cryptoDomain.EncryptionKey{active}, discardLogger())

		ring, err := uc.Load(ctx)
		require.NoError(t, err)
		require.Len(t, repo.canaries, 1)
		assert.Equal(t, repo.canaries[0].ID, ring.ActiveID())
		assert.Empty(t, ring.KnownInactiveIDs())

		key, err := ring.Active()
		require.NoError(t, err)
		assert.Same(t, active, key)
	})

	t.Run("binds existing canaries and lists inactive ones", func(t *testing.T) {
		oldCanary := canaryFor(t, 2)
		newCanary := canaryFor(t, 1)
		repo := &fakeCanaryRepository{canaries: []*cryptoDomain.Canary{oldCanary, newCanary}}

		active := newKey(t, "current", 1, true)
		old := newKey(t, "previous", 2, false)
		uc := NewKeyRingUseCase(repo, cryptoService.NewAEADManager(), []*cryptoDomain.EncryptionKey{old, active}, discardLogger())

		activeID, err := uc.ActiveKeyID(ctx)
		require.NoError(t, err)
		assert.Equal(t, newCanary.ID, activeID)

		inactive, err := uc.KnownInactiveKeyIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{oldCanary.ID}, inactive)

		assert.Len(t, repo.canaries, 2, "no canary should be created when the active key is bound")
	})

	t.Run("canary of an unconfigured key is unknown", func(t *testing.T) {
		strayCanary := canaryFor(t, 9)
		repo := &fakeCanaryRepository{canaries: []*cryptoDomain.Canary{strayCanary}}

		uc := NewKeyRingUseCase(
			repo,
			cryptoService.NewAEADManager(),
			[]*cryptoDomain.EncryptionKey{newKey(t, "current", 1, true)},
			discardLogger(),
		)

		ring, err := uc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{strayCanary.ID}, ring.UnknownIDs())
		assert.False(t, ring.IsKnownAndInactive(strayCanary.ID))

		_, err = ring.Resolve(strayCanary.ID)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnknownKey)
	})

	t.Run("second canary of the active key is rotated away", func(t *testing.T) {
		first := canaryFor(t, 1)
		second := canaryFor(t, 1)
		repo := &fakeCanaryRepository{canaries: []*cryptoDomain.Canary{first, second}}

		uc := NewKeyRingUseCase(
			repo,
			cryptoService.NewAEADManager(),
			[]*cryptoDomain.EncryptionKey{newKey(t, "current", 1, true)},
			discardLogger(),
		)

		ring, err := uc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, ring.ActiveID())
		assert.Equal(t, []uuid.UUID{second.ID}, ring.KnownInactiveIDs())
	})

	t.Run("unbound inactive key is left out", func(t *testing.T) {
		repo := &fakeCanaryRepository{}
		uc := NewKeyRingUseCase(repo, cryptoService.NewAEADManager(), []*cryptoDomain.EncryptionKey{
			newKey(t, "previous", 2, false),
			newKey(t, "current", 1, true),
		}, discardLogger())

		ring, err := uc.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, ring.KnownInactiveIDs())
	})

	t.Run("computed once for concurrent callers", func(t *testing.T) {
		repo := &fakeCanaryRepository{}
		uc := NewKeyRingUseCase(
			repo,
			cryptoService.NewAEADManager(),
			[]*cryptoDomain.EncryptionKey{newKey(t, "current", 1, true)},
			discardLogger(),
		)

		var wg sync.WaitGroup
		ids := make([]uuid.UUID, 16)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := uc.ActiveKeyID(ctx)
				assert.NoError(t, err)
				ids[i] = id
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		assert.Equal(t, 1, repo.listCalls)
		assert.Len(t, repo.canaries, 1)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		repo := &fakeCanaryRepository{listErr: errors.New("database unavailable")}
		uc := NewKeyRingUseCase(
			repo,
			cryptoService.NewAEADManager(),
			[]*cryptoDomain.EncryptionKey{newKey(t, "current", 1, true)},
			discardLogger(),
		)

		_, err := uc.Load(ctx)
		assert.EqualError(t, err, "database unavailable")

		repo.mu.Lock()
		repo.listErr = nil
		repo.mu.Unlock()

		_, err = uc.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, repo.listCalls)
	})

	t.Run("no active key configured", func(t *testing.T) {
		uc := NewKeyRingUseCase(
			&fakeCanaryRepository{},
			cryptoService.NewAEADManager(),
			[]*cryptoDomain.EncryptionKey{newKey(t, "previous", 2, false)},
			discardLogger(),
		)

		_, err := uc.Load(ctx)
		assert.ErrorIs(t, err, cryptoDomain.ErrNoActiveKey)
	})
}
