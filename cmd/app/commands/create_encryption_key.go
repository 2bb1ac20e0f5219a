package commands

import (
	"context"
	"fmt"
	"io"
	"time"
)

// KeyGenerator creates new encryption key material in its configured form.
type KeyGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// RunCreateEncryptionKey generates 32 random bytes and prints the entry to add
// to ENCRYPTION_KEYS. When KMS_KEY_URI is configured the printed value is the
// KMS ciphertext of the key. If name is empty it defaults to "key-YYYY-MM-DD".
func RunCreateEncryptionKey(
	ctx context.Context,
	generator KeyGenerator,
	writer io.Writer,
	name string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if name == "" {
		name = fmt.Sprintf("key-%s", time.Now().Format("2006-01-02"))
	}

	value, err := generator.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to create encryption key: %w", err)
	}

	if format == FormatJSON {
		return writeJSON(writer, map[string]string{
			"name":  name,
			"value": value,
			"entry": name + ":" + value,
		})
	}

	_, _ = fmt.Fprintln(writer, "# Append this entry to ENCRYPTION_KEYS (comma-separated)")
	_, _ = fmt.Fprintf(writer, "%s:%s\n", name, value)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# Then make it the active key and rotate existing records:")
	_, _ = fmt.Fprintf(writer, "# ACTIVE_ENCRYPTION_KEY=\"%s\"\n", name)
	_, _ = fmt.Fprintln(writer, "# app rotate-encryption-key")
	return nil
}
