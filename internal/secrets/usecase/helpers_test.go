package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	cryptoService "github.com/allisson/credvault/internal/crypto/service"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEncryptor() cryptoService.Encryptor {
	cipher := cryptoService.NewCipherService(cryptoService.NewAEADManager(), nil, discardLogger())
	return cryptoService.NewEncryptor(cipher)
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
	t.Cleanup(key.Close)
	return key
}

// keyFixture describes the keys of a rotation: A was active, B is active now
// and U is referenced by stored records but no longer configured.
type keyFixture struct {
	idA, idB, idU uuid.UUID
	// before has A active.
	before *cryptoDomain.KeyRing
	// after has B active, A inactive and U unknown.
	after *cryptoDomain.KeyRing
}

func newKeyFixture(t *testing.T) *keyFixture {
	t.Helper()
	f := &keyFixture{idA: uuid.New(), idB: uuid.New(), idU: uuid.New()}

	var err error
	f.before, err = cryptoDomain.NewKeyRing(f.idA, map[uuid.UUID]*cryptoDomain.EncryptionKey{
		f.idA: newKey(t, "key-a", 1, true),
	}, nil)
	require.NoError(t, err)

	f.after, err = cryptoDomain.NewKeyRing(f.idB, map[uuid.UUID]*cryptoDomain.EncryptionKey{
		f.idB: newKey(t, "key-b", 2, true),
		f.idA: newKey(t, "key-a", 1, false),
	}, []uuid.UUID{f.idU})
	require.NoError(t, err)

	return f
}

// staticRing is a KeyRingLoader over a fixed ring.
type staticRing struct {
	ring *cryptoDomain.KeyRing
	err  error
}

func (s *staticRing) Load(context.Context) (*cryptoDomain.KeyRing, error) {
	return s.ring, s.err
}

// passthroughTx runs fn without a transaction.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type prefixHasher struct{}

func (prefixHasher) Hash(password []byte) (string, error) {
	return "hashed:" + string(password), nil
}

// memStore is an in-memory SecretRepository. Secrets are kept in creation order.
type memStore struct {
	mu      sync.Mutex
	names   map[string]uuid.UUID
	secrets []*secretsDomain.Secret

	// batchSizes records the length of every GetBatchOnKeys result.
	batchSizes []int
	// staleOnce makes the next UpdateEncryption of an id lose to a concurrent writer.
	staleOnce map[uuid.UUID]bool
	// raceName makes the next CreateName lose to a concurrent writer.
	raceName bool
	// onBatch runs before every GetBatchOnKeys.
	onBatch func()
	tick    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		names:     make(map[string]uuid.UUID),
		staleOnce: make(map[uuid.UUID]bool),
		tick:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func cloneSecret(s *secretsDomain.Secret) *secretsDomain.Secret {
	c := *s
	c.Plaintext = nil
	c.Value = cloneValue(s.Value)
	if p, ok := s.Details.(*secretsDomain.PasswordDetails); ok {
		c.Details = &secretsDomain.PasswordDetails{Parameters: cloneValue(p.Parameters)}
	}
	return &c
}

func cloneValue(v cryptoDomain.EncryptedValue) cryptoDomain.EncryptedValue {
	return cryptoDomain.EncryptedValue{
		Ciphertext: bytes.Clone(v.Ciphertext),
		Nonce:      bytes.Clone(v.Nonce),
		KeyID:      v.KeyID,
	}
}

// insert stores s directly with a creation time after every stored secret.
func (m *memStore) insert(s *secretsDomain.Secret) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(s.Name)
	if _, ok := m.names[key]; !ok {
		m.names[key] = uuid.Must(uuid.NewV7())
	}
	s.NameID = m.names[key]
	if s.ID == uuid.Nil {
		s.ID = uuid.Must(uuid.NewV7())
	}
	if s.Version == 0 {
		s.Version = 1
	}
	m.tick = m.tick.Add(time.Millisecond)
	s.CreatedAt = m.tick
	s.UpdatedAt = m.tick
	m.secrets = append(m.secrets, cloneSecret(s))
}

func (m *memStore) all() []*secretsDomain.Secret {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*secretsDomain.Secret, 0, len(m.secrets))
	for _, s := range m.secrets {
		out = append(out, cloneSecret(s))
	}
	return out
}

func (m *memStore) GetNameID(_ context.Context, name string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.names[strings.ToLower(name)]
	if !ok {
		return uuid.Nil, secretsDomain.ErrSecretNotFound
	}
	return id, nil
}

func (m *memStore) CreateName(_ context.Context, id uuid.UUID, name string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(name)
	if m.raceName {
		m.raceName = false
		m.names[key] = uuid.Must(uuid.NewV7())
		return secretsDomain.ErrNameCollision
	}
	if _, ok := m.names[key]; ok {
		return secretsDomain.ErrNameCollision
	}
	m.names[key] = id
	return nil
}

func (m *memStore) Create(_ context.Context, secret *secretsDomain.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.secrets {
		if s.NameID == secret.NameID && s.Version == secret.Version {
			return secretsDomain.ErrVersionConflict
		}
	}
	m.secrets = append(m.secrets, cloneSecret(secret))
	return nil
}

func (m *memStore) UpdateEncryption(_ context.Context, secret *secretsDomain.Secret, previous time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.secrets {
		if s.ID != secret.ID {
			continue
		}
		if m.staleOnce[s.ID] {
			delete(m.staleOnce, s.ID)
			s.UpdatedAt = s.UpdatedAt.Add(time.Second)
		}
		if !s.UpdatedAt.Equal(previous) {
			return secretsDomain.ErrStaleSecret
		}
		updated := cloneSecret(secret)
		s.Value = updated.Value
		s.Details = updated.Details
		s.UpdatedAt = secret.UpdatedAt
		return nil
	}
	return secretsDomain.ErrStaleSecret
}

func (m *memStore) find(match func(*secretsDomain.Secret) bool) []*secretsDomain.Secret {
	var out []*secretsDomain.Secret
	for _, s := range m.secrets {
		if match(s) {
			out = append(out, cloneSecret(s))
		}
	}
	return out
}

func (m *memStore) byName(name string) []*secretsDomain.Secret {
	found := m.find(func(s *secretsDomain.Secret) bool {
		return strings.EqualFold(s.Name, name)
	})
	slices.SortFunc(found, func(a, b *secretsDomain.Secret) int {
		return int(b.Version) - int(a.Version)
	})
	return found
}

func (m *memStore) GetLatestByName(_ context.Context, name string) (*secretsDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.byName(name)
	if len(found) == 0 {
		return nil, secretsDomain.ErrSecretNotFound
	}
	return found[0], nil
}

func (m *memStore) GetByNameAndVersion(_ context.Context, name string, version uint) (*secretsDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byName(name) {
		if s.Version == version {
			return s, nil
		}
	}
	return nil, secretsDomain.ErrSecretNotFound
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*secretsDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.find(func(s *secretsDomain.Secret) bool { return s.ID == id })
	if len(found) == 0 {
		return nil, secretsDomain.ErrSecretNotFound
	}
	return found[0], nil
}

func (m *memStore) ListVersionsByName(_ context.Context, name string) ([]*secretsDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName(name), nil
}

func (m *memStore) DeleteByName(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.secrets)
	m.secrets = slices.DeleteFunc(m.secrets, func(s *secretsDomain.Secret) bool {
		return strings.EqualFold(s.Name, name)
	})
	delete(m.names, strings.ToLower(name))
	return int64(before - len(m.secrets)), nil
}

func (m *memStore) CountNotOnKey(_ context.Context, keyID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.secrets {
		for _, f := range s.EncryptedFields() {
			if !f.IsEmpty() && f.KeyID != keyID {
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *memStore) GetBatchOnKeys(_ context.Context, keyIDs []uuid.UUID, limit int) ([]*secretsDomain.Secret, error) {
	if m.onBatch != nil {
		m.onBatch()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	page := m.find(func(s *secretsDomain.Secret) bool {
		for _, f := range s.EncryptedFields() {
			if !f.IsEmpty() && slices.Contains(keyIDs, f.KeyID) {
				return true
			}
		}
		return false
	})
	if len(page) > limit {
		page = page[:limit]
	}
	m.batchSizes = append(m.batchSizes, len(page))
	return page, nil
}

// seal encrypts plaintext under the active key of ring.
func seal(t *testing.T, ring *cryptoDomain.KeyRing, plaintext string) cryptoDomain.EncryptedValue {
	t.Helper()
	v, err := newEncryptor().Refresh(context.Background(), cryptoDomain.EncryptedValue{}, []byte(plaintext), ring)
	require.NoError(t, err)
	return v
}

// open decrypts v with ring.
func open(t *testing.T, ring *cryptoDomain.KeyRing, v cryptoDomain.EncryptedValue) string {
	t.Helper()
	plaintext, err := newEncryptor().Reveal(context.Background(), v, ring)
	require.NoError(t, err)
	return string(plaintext)
}
