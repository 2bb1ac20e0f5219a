package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/credvault/internal/metrics"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

// secretUseCaseWithMetrics decorates SecretUseCase with metrics instrumentation.
type secretUseCaseWithMetrics struct {
	next    SecretUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretUseCaseWithMetrics wraps a SecretUseCase with metrics recording.
func NewSecretUseCaseWithMetrics(useCase SecretUseCase, m metrics.BusinessMetrics) SecretUseCase {
	return &secretUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (s *secretUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", operation, status)
	s.metrics.RecordDuration(ctx, "secrets", operation, time.Since(start), status)
}

// Set records metrics for secret set operations.
func (s *secretUseCaseWithMetrics) Set(ctx context.Context, input SetSecretInput) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Set(ctx, input)
	s.record(ctx, "secret_set", start, err)
	return secret, err
}

// Generate records metrics for secret generation operations.
func (s *secretUseCaseWithMetrics) Generate(
	ctx context.Context,
	input GenerateSecretInput,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Generate(ctx, input)
	s.record(ctx, "secret_generate", start, err)
	return secret, err
}

// Get records metrics for secret retrieval operations.
func (s *secretUseCaseWithMetrics) Get(ctx context.Context, name string) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Get(ctx, name)
	s.record(ctx, "secret_get", start, err)
	return secret, err
}

// GetByVersion records metrics for versioned secret retrieval operations.
func (s *secretUseCaseWithMetrics) GetByVersion(
	ctx context.Context,
	name string,
	version uint,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.GetByVersion(ctx, name, version)
	s.record(ctx, "secret_get_version", start, err)
	return secret, err
}

// GetByID records metrics for secret retrieval by id.
func (s *secretUseCaseWithMetrics) GetByID(ctx context.Context, id uuid.UUID) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.GetByID(ctx, id)
	s.record(ctx, "secret_get_id", start, err)
	return secret, err
}

// ListVersions records metrics for version listing operations.
func (s *secretUseCaseWithMetrics) ListVersions(ctx context.Context, name string) ([]*secretsDomain.Secret, error) {
	start := time.Now()
	secrets, err := s.next.ListVersions(ctx, name)
	s.record(ctx, "secret_list_versions", start, err)
	return secrets, err
}

// Delete records metrics for secret deletion operations.
func (s *secretUseCaseWithMetrics) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := s.next.Delete(ctx, name)
	s.record(ctx, "secret_delete", start, err)
	return err
}

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Rotate records the sweep outcome and the record counts of its report.
func (r *rotationUseCaseWithMetrics) Rotate(ctx context.Context) (*RotationReport, error) {
	start := time.Now()
	report, err := r.next.Rotate(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "key_rotation", status)
	r.metrics.RecordDuration(ctx, "rotation", "key_rotation", time.Since(start), status)

	if report != nil {
		r.metrics.RecordRecords(ctx, "rotation", "rotated", report.Rotated)
		r.metrics.RecordRecords(ctx, "rotation", "conflicts", report.Conflicts)
		r.metrics.RecordRecords(ctx, "rotation", "skipped", report.Skipped)
	}

	return report, err
}
