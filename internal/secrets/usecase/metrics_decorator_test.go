package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/credvault/internal/metrics"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordRecords(ctx context.Context, domain, outcome string, n int64) {
	m.Called(ctx, domain, outcome, n)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

func (m *mockBusinessMetrics) expectOperation(ctx context.Context, domain, operation, status string) {
	m.On("RecordOperation", ctx, domain, operation, status).Return().Once()
	m.On("RecordDuration", ctx, domain, operation, mock.AnythingOfType("time.Duration"), status).Return().Once()
}

// stubSecretUseCase returns fixed results for every SecretUseCase method.
type stubSecretUseCase struct {
	secret *secretsDomain.Secret
	err    error
}

func (s *stubSecretUseCase) Set(context.Context, SetSecretInput) (*secretsDomain.Secret, error) {
	return s.secret, s.err
}

func (s *stubSecretUseCase) Generate(context.Context, GenerateSecretInput) (*secretsDomain.Secret, error) {
	return s.secret, s.err
}

func (s *stubSecretUseCase) Get(context.Context, string) (*secretsDomain.Secret, error) {
	return s.secret, s.err
}

func (s *stubSecretUseCase) GetByVersion(context.Context, string, uint) (*secretsDomain.Secret, error) {
	return s.secret, s.err
}

func (s *stubSecretUseCase) GetByID(context.Context, uuid.UUID) (*secretsDomain.Secret, error) {
	return s.secret, s.err
}

func (s *stubSecretUseCase) ListVersions(context.Context, string) ([]*secretsDomain.Secret, error) {
	if s.secret == nil {
		return nil, s.err
	}
	return []*secretsDomain.Secret{s.secret}, s.err
}

func (s *stubSecretUseCase) Delete(context.Context, string) error {
	return s.err
}

type stubRotationUseCase struct {
	report *RotationReport
	err    error
}

func (s *stubRotationUseCase) Rotate(context.Context) (*RotationReport, error) {
	return s.report, s.err
}

func TestSecretUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	secret := &secretsDomain.Secret{ID: uuid.Must(uuid.NewV7()), Name: "/app/api-key", Version: 1}

	calls := []struct {
		operation string
		call      func(uc SecretUseCase) error
	}{
		{"secret_set", func(uc SecretUseCase) error {
			_, err := uc.Set(ctx, SetSecretInput{Name: "/app/api-key"})
			return err
		}},
		{"secret_generate", func(uc SecretUseCase) error {
			_, err := uc.Generate(ctx, GenerateSecretInput{Name: "/app/api-key"})
			return err
		}},
		{"secret_get", func(uc SecretUseCase) error {
			_, err := uc.Get(ctx, "/app/api-key")
			return err
		}},
		{"secret_get_version", func(uc SecretUseCase) error {
			_, err := uc.GetByVersion(ctx, "/app/api-key", 1)
			return err
		}},
		{"secret_get_id", func(uc SecretUseCase) error {
			_, err := uc.GetByID(ctx, secret.ID)
			return err
		}},
		{"secret_list_versions", func(uc SecretUseCase) error {
			_, err := uc.ListVersions(ctx, "/app/api-key")
			return err
		}},
		{"secret_delete", func(uc SecretUseCase) error {
			return uc.Delete(ctx, "/app/api-key")
		}},
	}

	for _, c := range calls {
		t.Run(c.operation+"_Success", func(t *testing.T) {
			m := &mockBusinessMetrics{}
			m.expectOperation(ctx, "secrets", c.operation, "success")

			err := c.call(NewSecretUseCaseWithMetrics(&stubSecretUseCase{secret: secret}, m))

			assert.NoError(t, err)
			m.AssertExpectations(t)
		})

		t.Run(c.operation+"_Error", func(t *testing.T) {
			m := &mockBusinessMetrics{}
			m.expectOperation(ctx, "secrets", c.operation, "error")

			err := c.call(NewSecretUseCaseWithMetrics(&stubSecretUseCase{err: secretsDomain.ErrSecretNotFound}, m))

			assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
			m.AssertExpectations(t)
		})
	}
}

func TestRotationUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RecordsReportCounts", func(t *testing.T) {
		m := &mockBusinessMetrics{}
		m.expectOperation(ctx, "rotation", "key_rotation", "success")
		m.On("RecordRecords", ctx, "rotation", "rotated", int64(7)).Return().Once()
		m.On("RecordRecords", ctx, "rotation", "conflicts", int64(1)).Return().Once()
		m.On("RecordRecords", ctx, "rotation", "skipped", int64(2)).Return().Once()

		report := &RotationReport{Rotated: 7, Conflicts: 1, Skipped: 2, Batches: 1}
		got, err := NewRotationUseCaseWithMetrics(&stubRotationUseCase{report: report}, m).Rotate(ctx)

		assert.NoError(t, err)
		assert.Same(t, report, got)
		m.AssertExpectations(t)
	})

	t.Run("Error_NoRecordCounts", func(t *testing.T) {
		m := &mockBusinessMetrics{}
		m.expectOperation(ctx, "rotation", "key_rotation", "error")

		_, err := NewRotationUseCaseWithMetrics(
			&stubRotationUseCase{err: secretsDomain.ErrRotationInProgress}, m,
		).Rotate(ctx)

		assert.True(t, errors.Is(err, secretsDomain.ErrRotationInProgress))
		m.AssertExpectations(t)
		m.AssertNotCalled(t, "RecordRecords", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
