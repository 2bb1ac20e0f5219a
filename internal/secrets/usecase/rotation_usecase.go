package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	cryptoService "github.com/allisson/credvault/internal/crypto/service"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

// DefaultRotationBatchSize is the page size used when none is configured.
const DefaultRotationBatchSize = 50

// rotationUseCase re-encrypts every field held under a known inactive key.
type rotationUseCase struct {
	mu         sync.Mutex
	secretRepo SecretRepository
	keyRing    KeyRingLoader
	encryptor  cryptoService.Encryptor
	batchSize  int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Rotate sweeps the store one page at a time until no record references a
// known inactive key. Every page is fetched from the start: rotated records
// drop out of the result, so no offset is needed.
func (r *rotationUseCase) Rotate(ctx context.Context) (*RotationReport, error) {
	if !r.mu.TryLock() {
		return nil, secretsDomain.ErrRotationInProgress
	}
	defer r.mu.Unlock()

	start := time.Now()
	ring, err := r.keyRing.Load(ctx)
	if err != nil {
		return nil, err
	}

	report := &RotationReport{}
	eligible := ring.KnownInactiveIDs()

	for len(eligible) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		page, err := r.secretRepo.GetBatchOnKeys(ctx, eligible, r.batchSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		report.Batches++

		var progressed int64
		for _, secret := range page {
			rotated, err := r.rotateSecret(ctx, ring, secret)
			switch {
			case errors.Is(err, secretsDomain.ErrStaleSecret):
				report.Conflicts++
				progressed++
				r.logger.Debug("secret modified during rotation, retrying",
					slog.String("secret_id", secret.ID.String()),
				)
			case err != nil:
				return nil, err
			case rotated:
				report.Rotated++
				progressed++
			}
		}

		// A page where nothing moved would be returned again forever.
		if progressed == 0 {
			r.logger.Warn("rotation page made no progress, stopping",
				slog.Int("page_size", len(page)),
			)
			break
		}
	}

	skipped, err := r.secretRepo.CountNotOnKey(ctx, ring.ActiveID())
	if err != nil {
		return nil, err
	}
	report.Skipped = skipped
	report.Duration = time.Since(start)

	r.logReport(ring, report)
	return report, nil
}

// rotateSecret moves every field of secret held under a known inactive key
// onto the active key and writes the record back in place.
func (r *rotationUseCase) rotateSecret(
	ctx context.Context,
	ring *cryptoDomain.KeyRing,
	secret *secretsDomain.Secret,
) (bool, error) {
	changed := false
	for _, field := range secret.EncryptedFields() {
		if field.IsEmpty() || !ring.IsKnownAndInactive(field.KeyID) {
			continue
		}

		plaintext, err := r.encryptor.Reveal(ctx, *field, ring)
		if err != nil {
			return false, err
		}
		refreshed, err := r.encryptor.Refresh(ctx, *field, plaintext, ring)
		cryptoDomain.Zero(plaintext)
		if err != nil {
			return false, err
		}

		if !refreshed.Equal(*field) {
			*field = refreshed
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	previous := secret.UpdatedAt
	secret.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if !secret.UpdatedAt.After(previous) {
		secret.UpdatedAt = previous.Add(time.Microsecond)
	}

	if err := r.secretRepo.UpdateEncryption(ctx, secret, previous); err != nil {
		return false, err
	}
	return true, nil
}

func (r *rotationUseCase) logReport(ring *cryptoDomain.KeyRing, report *RotationReport) {
	if report.Rotated == 0 && report.Conflicts == 0 {
		r.logger.Info("Found no records in need of encryption key rotation.",
			slog.Int64("skipped", report.Skipped),
		)
	} else {
		r.logger.Info("finished encryption key rotation",
			slog.Int64("rotated", report.Rotated),
			slog.Int64("conflicts", report.Conflicts),
			slog.Int64("skipped", report.Skipped),
			slog.Int("batches", report.Batches),
			slog.Duration("duration", report.Duration),
		)
	}

	if report.Skipped > 0 {
		unknown := make([]string, 0, len(ring.UnknownIDs()))
		for _, id := range ring.UnknownIDs() {
			unknown = append(unknown, id.String())
		}
		r.logger.Warn("records remain under encryption keys that are not configured",
			slog.Int64("count", report.Skipped),
			slog.Any("unknown_key_ids", unknown),
		)
	}
}

// NewRotationUseCase creates a rotation engine. A batchSize of zero or less
// uses DefaultRotationBatchSize; pagesPerSecond of zero or less disables throttling.
func NewRotationUseCase(
	secretRepo SecretRepository,
	keyRing KeyRingLoader,
	encryptor cryptoService.Encryptor,
	batchSize int,
	pagesPerSecond float64,
	logger *slog.Logger,
) RotationUseCase {
	if batchSize <= 0 {
		batchSize = DefaultRotationBatchSize
	}

	var limiter *rate.Limiter
	if pagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(pagesPerSecond), 1)
	}

	return &rotationUseCase{
		secretRepo: secretRepo,
		keyRing:    keyRing,
		encryptor:  encryptor,
		batchSize:  batchSize,
		limiter:    limiter,
		logger:     logger,
	}
}
