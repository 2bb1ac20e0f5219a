package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	secretsUseCase "github.com/allisson/credvault/internal/secrets/usecase"
)

// RunRotateEncryptionKey re-encrypts every record held under a configured
// inactive key onto the active key and prints the sweep report. Records under
// keys that are no longer configured are counted as skipped.
func RunRotateEncryptionKey(
	ctx context.Context,
	rotation secretsUseCase.RotationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("rotating encryption keys")

	report, err := rotation.Rotate(ctx)
	if err != nil {
		return fmt.Errorf("failed to rotate encryption keys: %w", err)
	}

	if format == FormatJSON {
		return writeJSON(writer, map[string]any{
			"rotated":     report.Rotated,
			"conflicts":   report.Conflicts,
			"skipped":     report.Skipped,
			"batches":     report.Batches,
			"duration_ms": report.Duration.Milliseconds(),
		})
	}

	_, _ = fmt.Fprintf(writer, "Rotated: %d\n", report.Rotated)
	_, _ = fmt.Fprintf(writer, "Conflicts retried: %d\n", report.Conflicts)
	_, _ = fmt.Fprintf(writer, "Skipped (unknown keys): %d\n", report.Skipped)
	_, _ = fmt.Fprintf(writer, "Batches: %d\n", report.Batches)
	_, _ = fmt.Fprintf(writer, "Duration: %s\n", report.Duration)
	return nil
}
