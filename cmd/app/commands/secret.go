package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
	secretsUseCase "github.com/allisson/credvault/internal/secrets/usecase"
)

// SecretFlags carries the type-specific plain fields of a set command.
type SecretFlags struct {
	CAName      string
	CA          string
	Certificate string
	PublicKey   string
	Username    string
}

// secretOutput is the printed form of one secret version.
type secretOutput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Version   uint      `json:"version"`
	Value     string    `json:"value,omitempty"`
	Details   any       `json:"details,omitempty"`
	CreatedAt time.Time `json:"version_created_at"`
}

func newSecretOutput(secret *secretsDomain.Secret, withValue bool) secretOutput {
	out := secretOutput{
		ID:        secret.ID.String(),
		Name:      secret.Name,
		Type:      string(secret.Type),
		Version:   secret.Version,
		CreatedAt: secret.CreatedAt,
	}
	if withValue {
		out.Value = string(secret.Plaintext)
	}

	switch d := secret.Details.(type) {
	case *secretsDomain.PasswordDetails:
		if d.GenerationParameters != nil {
			out.Details = d.GenerationParameters
		}
	case *secretsDomain.ValueDetails, *secretsDomain.JSONDetails, nil:
	default:
		out.Details = d
	}
	return out
}

func printSecret(writer io.Writer, secret *secretsDomain.Secret, format string) error {
	out := newSecretOutput(secret, true)
	if format == FormatJSON {
		return writeJSON(writer, out)
	}

	_, _ = fmt.Fprintf(writer, "id: %s\n", out.ID)
	_, _ = fmt.Fprintf(writer, "name: %s\n", out.Name)
	_, _ = fmt.Fprintf(writer, "type: %s\n", out.Type)
	_, _ = fmt.Fprintf(writer, "version: %d\n", out.Version)
	_, _ = fmt.Fprintf(writer, "version_created_at: %s\n", out.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "value: %s\n", out.Value)
	return nil
}

func buildDetails(t secretsDomain.Type, flags SecretFlags) secretsDomain.Details {
	switch t {
	case secretsDomain.TypeCertificate:
		return &secretsDomain.CertificateDetails{CAName: flags.CAName, CA: flags.CA, Certificate: flags.Certificate}
	case secretsDomain.TypeSSH:
		return &secretsDomain.SSHDetails{PublicKey: flags.PublicKey}
	case secretsDomain.TypeRSA:
		return &secretsDomain.RSADetails{PublicKey: flags.PublicKey}
	case secretsDomain.TypeUser:
		return &secretsDomain.UserDetails{Username: flags.Username}
	default:
		return nil
	}
}

// RunSetSecret stores a caller-supplied value as a new version of name.
func RunSetSecret(
	ctx context.Context,
	secretUseCase secretsUseCase.SecretUseCase,
	writer io.Writer,
	name, secretType, value string,
	flags SecretFlags,
	overwrite bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	t, err := secretsDomain.ParseType(secretType)
	if err != nil {
		return err
	}

	plaintext := []byte(value)
	defer cryptoDomain.Zero(plaintext)

	secret, err := secretUseCase.Set(ctx, secretsUseCase.SetSecretInput{
		Name:      name,
		Type:      t,
		Value:     plaintext,
		Details:   buildDetails(t, flags),
		Overwrite: overwrite,
	})
	if err != nil {
		return fmt.Errorf("failed to set secret: %w", err)
	}
	defer cryptoDomain.Zero(secret.Plaintext)

	return printSecret(writer, secret, format)
}

// RunGenerateSecret generates a password, rsa, ssh or user credential under name.
func RunGenerateSecret(
	ctx context.Context,
	secretUseCase secretsUseCase.SecretUseCase,
	writer io.Writer,
	name, secretType string,
	params secretsDomain.GenerateParameters,
	overwrite bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	t, err := secretsDomain.ParseType(secretType)
	if err != nil {
		return err
	}

	secret, err := secretUseCase.Generate(ctx, secretsUseCase.GenerateSecretInput{
		Name:       name,
		Type:       t,
		Parameters: params,
		Overwrite:  overwrite,
	})
	if err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	defer cryptoDomain.Zero(secret.Plaintext)

	return printSecret(writer, secret, format)
}

// RunGetSecret prints one version of a secret: by id when id is set, by
// version when version is non-zero, otherwise the latest version of name.
func RunGetSecret(
	ctx context.Context,
	secretUseCase secretsUseCase.SecretUseCase,
	writer io.Writer,
	name string,
	version uint,
	id string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	var (
		secret *secretsDomain.Secret
		err    error
	)
	switch {
	case id != "":
		secretID, parseErr := uuid.Parse(id)
		if parseErr != nil {
			return fmt.Errorf("invalid secret id: %w", parseErr)
		}
		secret, err = secretUseCase.GetByID(ctx, secretID)
	case version > 0:
		secret, err = secretUseCase.GetByVersion(ctx, name, version)
	default:
		secret, err = secretUseCase.Get(ctx, name)
	}
	if err != nil {
		return fmt.Errorf("failed to get secret: %w", err)
	}
	defer cryptoDomain.Zero(secret.Plaintext)

	return printSecret(writer, secret, format)
}

// RunListSecretVersions prints every version of name, newest first, without values.
func RunListSecretVersions(
	ctx context.Context,
	secretUseCase secretsUseCase.SecretUseCase,
	writer io.Writer,
	name string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	versions, err := secretUseCase.ListVersions(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to list secret versions: %w", err)
	}

	outputs := make([]secretOutput, 0, len(versions))
	for _, secret := range versions {
		outputs = append(outputs, newSecretOutput(secret, false))
		cryptoDomain.Zero(secret.Plaintext)
	}

	if format == FormatJSON {
		return writeJSON(writer, map[string]any{"versions": outputs})
	}

	for _, out := range outputs {
		_, _ = fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", out.Version, out.ID, out.Type, out.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// RunDeleteSecret removes name and all its versions.
func RunDeleteSecret(
	ctx context.Context,
	secretUseCase secretsUseCase.SecretUseCase,
	writer io.Writer,
	name string,
) error {
	if err := secretUseCase.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Secret %s deleted\n", name)
	return nil
}
