package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/credvault/internal/database"
	apperrors "github.com/allisson/credvault/internal/errors"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

const postgresSecretColumns = `s.id, s.name_id, n.name, s.version, s.type,
	s.ciphertext, s.nonce, s.encryption_key_id,
	s.parameters_ciphertext, s.parameters_nonce, s.parameters_encryption_key_id,
	s.metadata, s.created_at, s.updated_at`

const postgresSecretFrom = ` FROM secrets s JOIN secret_names n ON n.id = s.name_id`

// PostgreSQLSecretRepository implements secret persistence for PostgreSQL.
type PostgreSQLSecretRepository struct {
	db *sql.DB
}

func (p *PostgreSQLSecretRepository) GetNameID(ctx context.Context, name string) (uuid.UUID, error) {
	querier := database.GetTx(ctx, p.db)

	var id uuid.UUID
	err := querier.QueryRowContext(ctx, `SELECT id FROM secret_names WHERE LOWER(name) = LOWER($1)`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, notFound(err, "failed to get secret name")
	}
	return id, nil
}

func (p *PostgreSQLSecretRepository) CreateName(
	ctx context.Context,
	id uuid.UUID,
	name string,
	createdAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(ctx,
		`INSERT INTO secret_names (id, name, created_at) VALUES ($1, $2, $3)`,
		id, name, createdAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return secretsDomain.ErrNameCollision
		}
		return apperrors.Wrap(err, "failed to create secret name")
	}
	return nil
}

func (p *PostgreSQLSecretRepository) Create(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	metadata, err := metadataOf(secret)
	if err != nil {
		return err
	}
	params := secretsDomain.Parameters(secret.Details)

	query := `INSERT INTO secrets (id, name_id, version, type, ciphertext, nonce, encryption_key_id,
				parameters_ciphertext, parameters_nonce, parameters_encryption_key_id,
				metadata, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = querier.ExecContext(
		ctx,
		query,
		secret.ID,
		secret.NameID,
		secret.Version,
		string(secret.Type),
		nullBytes(secret.Value.Ciphertext),
		nullBytes(secret.Value.Nonce),
		secret.Value.KeyID,
		nullBytes(params.Ciphertext),
		nullBytes(params.Nonce),
		postgresKeyID(params.KeyID),
		metadata,
		secret.CreatedAt,
		secret.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return secretsDomain.ErrVersionConflict
		}
		return apperrors.Wrap(err, "failed to create secret")
	}
	return nil
}

func (p *PostgreSQLSecretRepository) UpdateEncryption(
	ctx context.Context,
	secret *secretsDomain.Secret,
	previousUpdatedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)
	params := secretsDomain.Parameters(secret.Details)

	query := `UPDATE secrets
			  SET ciphertext = $1,
				  nonce = $2,
				  encryption_key_id = $3,
				  parameters_ciphertext = $4,
				  parameters_nonce = $5,
				  parameters_encryption_key_id = $6,
				  updated_at = $7
			  WHERE id = $8 AND updated_at = $9`

	result, err := querier.ExecContext(
		ctx,
		query,
		nullBytes(secret.Value.Ciphertext),
		nullBytes(secret.Value.Nonce),
		secret.Value.KeyID,
		nullBytes(params.Ciphertext),
		nullBytes(params.Nonce),
		postgresKeyID(params.KeyID),
		secret.UpdatedAt,
		secret.ID,
		previousUpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update secret encryption")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return secretsDomain.ErrStaleSecret
	}
	return nil
}

func (p *PostgreSQLSecretRepository) GetLatestByName(
	ctx context.Context,
	name string,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresSecretColumns + postgresSecretFrom + `
			  WHERE LOWER(n.name) = LOWER($1)
			  ORDER BY s.version DESC
			  LIMIT 1`

	return p.scanOne(querier.QueryRowContext(ctx, query, name))
}

func (p *PostgreSQLSecretRepository) GetByNameAndVersion(
	ctx context.Context,
	name string,
	version uint,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresSecretColumns + postgresSecretFrom + `
			  WHERE LOWER(n.name) = LOWER($1) AND s.version = $2`

	return p.scanOne(querier.QueryRowContext(ctx, query, name, version))
}

func (p *PostgreSQLSecretRepository) GetByID(ctx context.Context, id uuid.UUID) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresSecretColumns + postgresSecretFrom + ` WHERE s.id = $1`

	return p.scanOne(querier.QueryRowContext(ctx, query, id))
}

func (p *PostgreSQLSecretRepository) ListVersionsByName(
	ctx context.Context,
	name string,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresSecretColumns + postgresSecretFrom + `
			  WHERE LOWER(n.name) = LOWER($1)
			  ORDER BY s.version DESC`

	rows, err := querier.QueryContext(ctx, query, name)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secret versions")
	}
	return p.scanAll(rows)
}

func (p *PostgreSQLSecretRepository) DeleteByName(ctx context.Context, name string) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx,
		`DELETE FROM secrets WHERE name_id IN (SELECT id FROM secret_names WHERE LOWER(name) = LOWER($1))`,
		name,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete secret versions")
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM secret_names WHERE LOWER(name) = LOWER($1)`, name); err != nil {
		return 0, apperrors.Wrap(err, "failed to delete secret name")
	}
	return deleted, nil
}

func (p *PostgreSQLSecretRepository) CountNotOnKey(ctx context.Context, keyID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM secrets
			  WHERE (ciphertext IS NOT NULL AND encryption_key_id <> $1)
				 OR (parameters_ciphertext IS NOT NULL AND parameters_encryption_key_id <> $1)`

	var count int64
	if err := querier.QueryRowContext(ctx, query, keyID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count secrets not on key")
	}
	return count, nil
}

func (p *PostgreSQLSecretRepository) GetBatchOnKeys(
	ctx context.Context,
	keyIDs []uuid.UUID,
	limit int,
) ([]*secretsDomain.Secret, error) {
	if len(keyIDs) == 0 {
		return nil, nil
	}
	querier := database.GetTx(ctx, p.db)

	ids := make([]string, len(keyIDs))
	for i, id := range keyIDs {
		ids[i] = id.String()
	}

	query := `SELECT ` + postgresSecretColumns + postgresSecretFrom + `
			  WHERE (s.ciphertext IS NOT NULL AND s.encryption_key_id = ANY($1::uuid[]))
				 OR (s.parameters_ciphertext IS NOT NULL AND s.parameters_encryption_key_id = ANY($1::uuid[]))
			  ORDER BY s.created_at ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, pq.Array(ids), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get secrets batch")
	}
	return p.scanAll(rows)
}

func (p *PostgreSQLSecretRepository) scanOne(row rowScanner) (*secretsDomain.Secret, error) {
	var r secretRow
	err := row.Scan(
		&r.secret.ID,
		&r.secret.NameID,
		&r.secret.Name,
		&r.secret.Version,
		&r.typ,
		&r.secret.Value.Ciphertext,
		&r.secret.Value.Nonce,
		&r.secret.Value.KeyID,
		&r.parameters.Ciphertext,
		&r.parameters.Nonce,
		&r.paramsKeyID,
		&r.metadata,
		&r.secret.CreatedAt,
		&r.secret.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "failed to get secret")
	}
	return r.toDomain()
}

func (p *PostgreSQLSecretRepository) scanAll(rows *sql.Rows) ([]*secretsDomain.Secret, error) {
	defer func() {
		_ = rows.Close()
	}()

	var secrets []*secretsDomain.Secret
	for rows.Next() {
		secret, err := p.scanOne(rows)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secrets")
	}
	return secrets, nil
}

func postgresKeyID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

// NewPostgreSQLSecretRepository creates a new PostgreSQL secret repository.
func NewPostgreSQLSecretRepository(db *sql.DB) *PostgreSQLSecretRepository {
	return &PostgreSQLSecretRepository{db: db}
}
