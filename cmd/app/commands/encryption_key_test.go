package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
	secretsUseCase "github.com/allisson/credvault/internal/secrets/usecase"
)

type mockKeyGenerator struct {
	mock.Mock
}

func (m *mockKeyGenerator) Generate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type mockRotationUseCase struct {
	mock.Mock
}

func (m *mockRotationUseCase) Rotate(ctx context.Context) (*secretsUseCase.RotationReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsUseCase.RotationReport), args.Error(1)
}

func TestRunCreateEncryptionKey(t *testing.T) {
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		generator := &mockKeyGenerator{}
		generator.On("Generate", ctx).Return("c2VjcmV0", nil).Once()

		var out bytes.Buffer
		err := RunCreateEncryptionKey(ctx, generator, &out, "key-2026", FormatText)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "key-2026:c2VjcmV0\n")
		assert.Contains(t, out.String(), `ACTIVE_ENCRYPTION_KEY="key-2026"`)
		generator.AssertExpectations(t)
	})

	t.Run("json-default-name", func(t *testing.T) {
		generator := &mockKeyGenerator{}
		generator.On("Generate", ctx).Return("c2VjcmV0", nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunCreateEncryptionKey(ctx, generator, &out, "", FormatJSON))

		var result map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		expectedName := "key-" + time.Now().Format("2006-01-02")
		assert.Equal(t, expectedName, result["name"])
		assert.Equal(t, expectedName+":c2VjcmV0", result["entry"])
	})

	t.Run("generator-error", func(t *testing.T) {
		generator := &mockKeyGenerator{}
		generator.On("Generate", ctx).Return("", errors.New("kms unavailable")).Once()

		err := RunCreateEncryptionKey(ctx, generator, &bytes.Buffer{}, "k", FormatText)

		assert.ErrorContains(t, err, "kms unavailable")
	})

	t.Run("invalid-format", func(t *testing.T) {
		generator := &mockKeyGenerator{}

		err := RunCreateEncryptionKey(ctx, generator, &bytes.Buffer{}, "k", "yaml")

		assert.ErrorContains(t, err, "invalid format")
		generator.AssertNotCalled(t, "Generate", mock.Anything)
	})
}

func TestRunRotateEncryptionKey(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()
	report := &secretsUseCase.RotationReport{Rotated: 130, Conflicts: 1, Skipped: 2, Batches: 3}

	t.Run("text", func(t *testing.T) {
		rotation := &mockRotationUseCase{}
		rotation.On("Rotate", ctx).Return(report, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunRotateEncryptionKey(ctx, rotation, logger, &out, FormatText))

		assert.Contains(t, out.String(), "Rotated: 130")
		assert.Contains(t, out.String(), "Skipped (unknown keys): 2")
		rotation.AssertExpectations(t)
	})

	t.Run("json", func(t *testing.T) {
		rotation := &mockRotationUseCase{}
		rotation.On("Rotate", ctx).Return(report, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunRotateEncryptionKey(ctx, rotation, logger, &out, FormatJSON))

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.InDelta(t, 130, result["rotated"], 0)
		assert.InDelta(t, 3, result["batches"], 0)
	})

	t.Run("in-progress", func(t *testing.T) {
		rotation := &mockRotationUseCase{}
		rotation.On("Rotate", ctx).Return(nil, secretsDomain.ErrRotationInProgress).Once()

		err := RunRotateEncryptionKey(ctx, rotation, logger, &bytes.Buffer{}, FormatText)

		assert.ErrorIs(t, err, secretsDomain.ErrRotationInProgress)
	})
}
