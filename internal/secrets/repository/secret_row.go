// Package repository implements secret persistence for PostgreSQL and MySQL.
package repository

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	apperrors "github.com/allisson/credvault/internal/errors"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// secretRow holds the dialect-independent columns of one secrets row joined with its name.
type secretRow struct {
	secret      secretsDomain.Secret
	typ         string
	parameters  cryptoDomain.EncryptedValue
	paramsKeyID uuid.NullUUID
	metadata    []byte
}

func (r *secretRow) toDomain() (*secretsDomain.Secret, error) {
	if r.paramsKeyID.Valid {
		r.parameters.KeyID = r.paramsKeyID.UUID
	}

	details, err := secretsDomain.UnmarshalDetails(secretsDomain.Type(r.typ), r.metadata, r.parameters)
	if err != nil {
		return nil, err
	}

	s := r.secret
	s.Type = secretsDomain.Type(r.typ)
	s.Details = details
	return &s, nil
}

// notFound maps sql.ErrNoRows to ErrSecretNotFound.
func notFound(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return secretsDomain.ErrSecretNotFound
	}
	return apperrors.Wrap(err, message)
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func metadataOf(secret *secretsDomain.Secret) (string, error) {
	metadata, err := secretsDomain.MarshalMetadata(secret.Details)
	if err != nil {
		return "", err
	}
	return string(metadata), nil
}
