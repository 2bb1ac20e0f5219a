package service

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKey(t *testing.T, name string, fill byte, active bool) *cryptoDomain.EncryptionKey {
	t.Helper()
	key, err := cryptoDomain.NewEncryptionKey(name, cryptoDomain.AESGCM, bytes.Repeat([]byte{fill}, cryptoDomain.KeySize), active)
	require.NoError(t, err)
	return key
}

// newRing returns a ring with an active key and one inactive key.
func newRing(t *testing.T) (ring *cryptoDomain.KeyRing, activeID, inactiveID uuid.UUID) {
	t.Helper()
	activeID = uuid.New()
	inactiveID = uuid.New()

	ring, err := cryptoDomain.NewKeyRing(activeID, map[uuid.UUID]*cryptoDomain.EncryptionKey{
		activeID:   newKey(t, "current", 1, true),
		inactiveID: newKey(t, "previous", 2, false),
	}, nil)
	require.NoError(t, err)
	return ring, activeID, inactiveID
}
