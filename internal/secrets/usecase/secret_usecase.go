package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	cryptoService "github.com/allisson/credvault/internal/crypto/service"
	"github.com/allisson/credvault/internal/database"
	apperrors "github.com/allisson/credvault/internal/errors"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
	customValidation "github.com/allisson/credvault/internal/validation"
)

// secretUseCase implements the SecretUseCase interface for managing secrets.
type secretUseCase struct {
	txManager  database.TxManager
	secretRepo SecretRepository
	keyRing    KeyRingLoader
	encryptor  cryptoService.Encryptor
	generator  Generator
	hasher     PasswordHasher
}

// Set stores caller-supplied material as the next version of a name.
func (s *secretUseCase) Set(ctx context.Context, input SetSecretInput) (*secretsDomain.Secret, error) {
	input.Name = secretsDomain.NormalizeName(input.Name)
	if err := validateSetInput(input); err != nil {
		return nil, err
	}

	ring, err := s.keyRing.Load(ctx)
	if err != nil {
		return nil, err
	}

	if !input.Overwrite {
		existing, err := s.secretRepo.GetLatestByName(ctx, input.Name)
		if err == nil {
			return s.reveal(ctx, ring, existing)
		}
		if !errors.Is(err, secretsDomain.ErrSecretNotFound) {
			return nil, err
		}
	}

	details, err := s.detailsFor(input)
	if err != nil {
		return nil, err
	}

	nameID, err := s.createOrGetName(ctx, input.Name)
	if err != nil {
		return nil, err
	}

	var secret *secretsDomain.Secret
	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var version uint = 1
		latest, err := s.secretRepo.GetLatestByName(txCtx, input.Name)
		if err != nil && !errors.Is(err, secretsDomain.ErrSecretNotFound) {
			return err
		}
		if latest != nil {
			version = latest.Version + 1
		}

		value, err := s.encryptor.Refresh(txCtx, cryptoDomain.EncryptedValue{}, input.Value, ring)
		if err != nil {
			return err
		}

		if p, ok := details.(*secretsDomain.PasswordDetails); ok {
			if input.Parameters != nil {
				p.Parameters, err = s.encryptParameters(txCtx, ring, *input.Parameters)
			} else {
				// absent parameters still record the active key id
				p.Parameters, err = s.encryptor.Refresh(txCtx, cryptoDomain.EncryptedValue{}, nil, ring)
			}
			if err != nil {
				return err
			}
		}

		now := time.Now().UTC().Truncate(time.Microsecond)
		secret = &secretsDomain.Secret{
			ID:        uuid.Must(uuid.NewV7()),
			NameID:    nameID,
			Name:      input.Name,
			Version:   version,
			Type:      input.Type,
			Value:     value,
			Details:   details,
			CreatedAt: now,
			UpdatedAt: now,
		}

		return s.secretRepo.Create(txCtx, secret)
	})
	if err != nil {
		return nil, err
	}

	secret.Plaintext = bytes.Clone(input.Value)
	if p, ok := details.(*secretsDomain.PasswordDetails); ok && input.Parameters != nil {
		params := *input.Parameters
		params.Length = len(input.Value)
		p.GenerationParameters = &params
	}
	return secret, nil
}

// Generate creates material for a generatable type and stores it through Set.
func (s *secretUseCase) Generate(ctx context.Context, input GenerateSecretInput) (*secretsDomain.Secret, error) {
	if !input.Type.Generatable() {
		return nil, secretsDomain.ErrUnsupportedSecretType
	}

	credential, err := s.generator.Generate(input.Type, input.Parameters)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(credential.Value)

	return s.Set(ctx, SetSecretInput{
		Name:       input.Name,
		Type:       input.Type,
		Value:      credential.Value,
		Details:    credential.Details,
		Parameters: credential.Parameters,
		Overwrite:  input.Overwrite,
	})
}

// Get retrieves and decrypts the latest version of a name.
func (s *secretUseCase) Get(ctx context.Context, name string) (*secretsDomain.Secret, error) {
	secret, err := s.secretRepo.GetLatestByName(ctx, secretsDomain.NormalizeName(name))
	if err != nil {
		return nil, err
	}
	return s.load(ctx, secret)
}

// GetByVersion retrieves and decrypts a specific version of a name.
func (s *secretUseCase) GetByVersion(
	ctx context.Context,
	name string,
	version uint,
) (*secretsDomain.Secret, error) {
	secret, err := s.secretRepo.GetByNameAndVersion(ctx, secretsDomain.NormalizeName(name), version)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, secret)
}

// GetByID retrieves and decrypts a version by its id.
func (s *secretUseCase) GetByID(ctx context.Context, id uuid.UUID) (*secretsDomain.Secret, error) {
	secret, err := s.secretRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, secret)
}

// ListVersions retrieves and decrypts every version of a name, newest first.
func (s *secretUseCase) ListVersions(ctx context.Context, name string) ([]*secretsDomain.Secret, error) {
	secrets, err := s.secretRepo.ListVersionsByName(ctx, secretsDomain.NormalizeName(name))
	if err != nil {
		return nil, err
	}
	if len(secrets) == 0 {
		return nil, secretsDomain.ErrSecretNotFound
	}

	ring, err := s.keyRing.Load(ctx)
	if err != nil {
		return nil, err
	}

	for i, secret := range secrets {
		if _, err := s.reveal(ctx, ring, secret); err != nil {
			for _, revealed := range secrets[:i] {
				cryptoDomain.Zero(revealed.Plaintext)
			}
			return nil, err
		}
	}
	return secrets, nil
}

// Delete removes a name and every one of its versions.
func (s *secretUseCase) Delete(ctx context.Context, name string) error {
	return s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		deleted, err := s.secretRepo.DeleteByName(txCtx, secretsDomain.NormalizeName(name))
		if err != nil {
			return err
		}
		if deleted == 0 {
			return secretsDomain.ErrSecretNotFound
		}
		return nil
	})
}

func (s *secretUseCase) load(ctx context.Context, secret *secretsDomain.Secret) (*secretsDomain.Secret, error) {
	ring, err := s.keyRing.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.reveal(ctx, ring, secret)
}

// reveal decrypts every encrypted field of secret. Password parameters get
// their length restored from the decrypted password.
func (s *secretUseCase) reveal(
	ctx context.Context,
	ring *cryptoDomain.KeyRing,
	secret *secretsDomain.Secret,
) (*secretsDomain.Secret, error) {
	plaintext, err := s.encryptor.Reveal(ctx, secret.Value, ring)
	if err != nil {
		return nil, err
	}
	secret.Plaintext = plaintext

	p, ok := secret.Details.(*secretsDomain.PasswordDetails)
	if !ok || p.Parameters.IsEmpty() {
		return secret, nil
	}

	raw, err := s.encryptor.Reveal(ctx, p.Parameters, ring)
	if err != nil {
		cryptoDomain.Zero(secret.Plaintext)
		return nil, err
	}
	defer cryptoDomain.Zero(raw)

	var params secretsDomain.PasswordParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		cryptoDomain.Zero(secret.Plaintext)
		return nil, apperrors.Wrap(err, "failed to decode password parameters")
	}
	params.Length = len(secret.Plaintext)
	p.GenerationParameters = &params

	return secret, nil
}

// encryptParameters stores params without the length, which is restored from
// the password on read.
func (s *secretUseCase) encryptParameters(
	ctx context.Context,
	ring *cryptoDomain.KeyRing,
	params secretsDomain.PasswordParameters,
) (cryptoDomain.EncryptedValue, error) {
	params.Length = 0
	raw, err := json.Marshal(params)
	if err != nil {
		return cryptoDomain.EncryptedValue{}, apperrors.Wrap(err, "failed to encode password parameters")
	}
	return s.encryptor.Refresh(ctx, cryptoDomain.EncryptedValue{}, raw, ring)
}

// createOrGetName returns the id of name, creating it when missing. A writer
// that loses the creation race reads the winner's id.
func (s *secretUseCase) createOrGetName(ctx context.Context, name string) (uuid.UUID, error) {
	id, err := s.secretRepo.GetNameID(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, secretsDomain.ErrSecretNotFound) {
		return uuid.Nil, err
	}

	id = uuid.Must(uuid.NewV7())
	err = s.secretRepo.CreateName(ctx, id, name, time.Now().UTC().Truncate(time.Microsecond))
	if errors.Is(err, secretsDomain.ErrNameCollision) {
		return s.secretRepo.GetNameID(ctx, name)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// detailsFor builds the details to persist for input. User secrets get the
// password hash computed here.
func (s *secretUseCase) detailsFor(input SetSecretInput) (secretsDomain.Details, error) {
	switch input.Type {
	case secretsDomain.TypeValue:
		return &secretsDomain.ValueDetails{}, nil
	case secretsDomain.TypeJSON:
		return &secretsDomain.JSONDetails{}, nil
	case secretsDomain.TypePassword:
		return &secretsDomain.PasswordDetails{}, nil
	case secretsDomain.TypeCertificate:
		d := *input.Details.(*secretsDomain.CertificateDetails)
		return &d, nil
	case secretsDomain.TypeSSH:
		d := *input.Details.(*secretsDomain.SSHDetails)
		return &d, nil
	case secretsDomain.TypeRSA:
		d := *input.Details.(*secretsDomain.RSADetails)
		return &d, nil
	case secretsDomain.TypeUser:
		hash, err := s.hasher.Hash(input.Value)
		if err != nil {
			return nil, err
		}
		return &secretsDomain.UserDetails{
			Username:     input.Details.(*secretsDomain.UserDetails).Username,
			PasswordHash: hash,
		}, nil
	default:
		return nil, secretsDomain.ErrUnsupportedSecretType
	}
}

func validateSetInput(input SetSecretInput) error {
	types := make([]any, 0, len(secretsDomain.Types))
	for _, t := range secretsDomain.Types {
		types = append(types, t)
	}

	err := validation.ValidateStruct(&input,
		validation.Field(&input.Name,
			validation.Required,
			validation.Length(2, customValidation.MaxNameLength),
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			customValidation.SecretName,
		),
		validation.Field(&input.Type, validation.Required, validation.In(types...)),
		validation.Field(&input.Value,
			validation.Required,
			customValidation.NotBlank,
			validation.When(input.Type == secretsDomain.TypeJSON, customValidation.JSON),
		),
		validation.Field(&input.Details, validation.By(detailsRule(input.Type))),
	)
	return customValidation.WrapValidationError(err, secretsDomain.ErrInvalidPlaintext)
}

// detailsRule checks that details carry the plain parts required by t.
func detailsRule(t secretsDomain.Type) validation.RuleFunc {
	return func(value any) error {
		var missing bool
		switch t {
		case secretsDomain.TypeCertificate:
			d, ok := value.(*secretsDomain.CertificateDetails)
			missing = !ok || d == nil || d.Certificate == ""
		case secretsDomain.TypeSSH:
			d, ok := value.(*secretsDomain.SSHDetails)
			missing = !ok || d == nil || d.PublicKey == ""
		case secretsDomain.TypeRSA:
			d, ok := value.(*secretsDomain.RSADetails)
			missing = !ok || d == nil || d.PublicKey == ""
		case secretsDomain.TypeUser:
			d, ok := value.(*secretsDomain.UserDetails)
			missing = !ok || d == nil || strings.TrimSpace(d.Username) == ""
		}
		if missing {
			return validation.NewError("validation_secret_details", "must carry the details of a "+string(t)+" secret")
		}
		return nil
	}
}

// NewSecretUseCase creates a new secret use case instance with the provided dependencies.
func NewSecretUseCase(
	txManager database.TxManager,
	secretRepo SecretRepository,
	keyRing KeyRingLoader,
	encryptor cryptoService.Encryptor,
	generator Generator,
	hasher PasswordHasher,
) SecretUseCase {
	return &secretUseCase{
		txManager:  txManager,
		secretRepo: secretRepo,
		keyRing:    keyRing,
		encryptor:  encryptor,
		generator:  generator,
		hasher:     hasher,
	}
}
