package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/credvault/internal/database"
	apperrors "github.com/allisson/credvault/internal/errors"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

const mysqlSecretColumns = `s.id, s.name_id, n.name, s.version, s.type,
	s.ciphertext, s.nonce, s.encryption_key_id,
	s.parameters_ciphertext, s.parameters_nonce, s.parameters_encryption_key_id,
	s.metadata, s.created_at, s.updated_at`

const mysqlSecretFrom = ` FROM secrets s JOIN secret_names n ON n.id = s.name_id`

// mysqlNameKey computes secret_names.name_key for a bound name. Names match on
// their lower-cased form, the same identity PostgreSQL gets from LOWER(name).
const mysqlNameKey = `UNHEX(SHA2(LOWER(CONVERT(? USING utf8mb4) COLLATE utf8mb4_0900_as_ci), 256))`

// MySQLSecretRepository implements secret persistence for MySQL. UUIDs are
// stored as BINARY(16) and names are looked up through the indexed name_key hash.
type MySQLSecretRepository struct {
	db *sql.DB
}

func (m *MySQLSecretRepository) GetNameID(ctx context.Context, name string) (uuid.UUID, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id FROM secret_names WHERE name_key = ` + mysqlNameKey

	var raw []byte
	err := querier.QueryRowContext(ctx, query, name).Scan(&raw)
	if err != nil {
		return uuid.Nil, notFound(err, "failed to get secret name")
	}

	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to unmarshal secret name id")
	}
	return id, nil
}

func (m *MySQLSecretRepository) CreateName(
	ctx context.Context,
	id uuid.UUID,
	name string,
	createdAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	_, err := querier.ExecContext(ctx,
		`INSERT INTO secret_names (id, name, created_at) VALUES (?, ?, ?)`,
		binaryID(id), name, createdAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return secretsDomain.ErrNameCollision
		}
		return apperrors.Wrap(err, "failed to create secret name")
	}
	return nil
}

func (m *MySQLSecretRepository) Create(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, m.db)

	metadata, err := metadataOf(secret)
	if err != nil {
		return err
	}
	params := secretsDomain.Parameters(secret.Details)

	query := `INSERT INTO secrets (id, name_id, version, type, ciphertext, nonce, encryption_key_id,
				parameters_ciphertext, parameters_nonce, parameters_encryption_key_id,
				metadata, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		binaryID(secret.ID),
		binaryID(secret.NameID),
		secret.Version,
		string(secret.Type),
		nullBytes(secret.Value.Ciphertext),
		nullBytes(secret.Value.Nonce),
		binaryID(secret.Value.KeyID),
		nullBytes(params.Ciphertext),
		nullBytes(params.Nonce),
		binaryID(params.KeyID),
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

func (m *MySQLSecretRepository) UpdateEncryption(
	ctx context.Context,
	secret *secretsDomain.Secret,
	previousUpdatedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)
	params := secretsDomain.Parameters(secret.Details)

	query := `UPDATE secrets
			  SET ciphertext = ?,
				  nonce = ?,
				  encryption_key_id = ?,
				  parameters_ciphertext = ?,
				  parameters_nonce = ?,
				  parameters_encryption_key_id = ?,
				  updated_at = ?
			  WHERE id = ? AND updated_at = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		nullBytes(secret.Value.Ciphertext),
		nullBytes(secret.Value.Nonce),
		binaryID(secret.Value.KeyID),
		nullBytes(params.Ciphertext),
		nullBytes(params.Nonce),
		binaryID(params.KeyID),
		secret.UpdatedAt,
		binaryID(secret.ID),
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

func (m *MySQLSecretRepository) GetLatestByName(ctx context.Context, name string) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlSecretColumns + mysqlSecretFrom + `
			  WHERE n.name_key = ` + mysqlNameKey + `
			  ORDER BY s.version DESC
			  LIMIT 1`

	return m.scanOne(querier.QueryRowContext(ctx, query, name))
}

func (m *MySQLSecretRepository) GetByNameAndVersion(
	ctx context.Context,
	name string,
	version uint,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlSecretColumns + mysqlSecretFrom + `
			  WHERE n.name_key = ` + mysqlNameKey + ` AND s.version = ?`

	return m.scanOne(querier.QueryRowContext(ctx, query, name, version))
}

func (m *MySQLSecretRepository) GetByID(ctx context.Context, id uuid.UUID) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlSecretColumns + mysqlSecretFrom + ` WHERE s.id = ?`

	return m.scanOne(querier.QueryRowContext(ctx, query, binaryID(id)))
}

func (m *MySQLSecretRepository) ListVersionsByName(
	ctx context.Context,
	name string,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlSecretColumns + mysqlSecretFrom + `
			  WHERE n.name_key = ` + mysqlNameKey + `
			  ORDER BY s.version DESC`

	rows, err := querier.QueryContext(ctx, query, name)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secret versions")
	}
	return m.scanAll(rows)
}

func (m *MySQLSecretRepository) DeleteByName(ctx context.Context, name string) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx,
		`DELETE s FROM secrets s JOIN secret_names n ON n.id = s.name_id WHERE n.name_key = ` + mysqlNameKey,
		name,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete secret versions")
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}

	deleteName := `DELETE FROM secret_names WHERE name_key = ` + mysqlNameKey
	if _, err := querier.ExecContext(ctx, deleteName, name); err != nil {
		return 0, apperrors.Wrap(err, "failed to delete secret name")
	}
	return deleted, nil
}

func (m *MySQLSecretRepository) CountNotOnKey(ctx context.Context, keyID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM secrets
			  WHERE (ciphertext IS NOT NULL AND encryption_key_id <> ?)
				 OR (parameters_ciphertext IS NOT NULL AND parameters_encryption_key_id <> ?)`

	id := binaryID(keyID)
	var count int64
	if err := querier.QueryRowContext(ctx, query, id, id).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count secrets not on key")
	}
	return count, nil
}

func (m *MySQLSecretRepository) GetBatchOnKeys(
	ctx context.Context,
	keyIDs []uuid.UUID,
	limit int,
) ([]*secretsDomain.Secret, error) {
	if len(keyIDs) == 0 {
		return nil, nil
	}
	querier := database.GetTx(ctx, m.db)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keyIDs)), ", ")
	args := make([]any, 0, 2*len(keyIDs)+1)
	for range 2 {
		for _, id := range keyIDs {
			args = append(args, binaryID(id))
		}
	}
	args = append(args, limit)

	query := `SELECT ` + mysqlSecretColumns + mysqlSecretFrom + `
			  WHERE (s.ciphertext IS NOT NULL AND s.encryption_key_id IN (` + placeholders + `))
				 OR (s.parameters_ciphertext IS NOT NULL AND s.parameters_encryption_key_id IN (` + placeholders + `))
			  ORDER BY s.created_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get secrets batch")
	}
	return m.scanAll(rows)
}

func (m *MySQLSecretRepository) scanOne(row rowScanner) (*secretsDomain.Secret, error) {
	var (
		r                            secretRow
		id, nameID, keyID, paramsKey []byte
	)
	err := row.Scan(
		&id,
		&nameID,
		&r.secret.Name,
		&r.secret.Version,
		&r.typ,
		&r.secret.Value.Ciphertext,
		&r.secret.Value.Nonce,
		&keyID,
		&r.parameters.Ciphertext,
		&r.parameters.Nonce,
		&paramsKey,
		&r.metadata,
		&r.secret.CreatedAt,
		&r.secret.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "failed to get secret")
	}

	if r.secret.ID, err = uuid.FromBytes(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal secret id")
	}
	if r.secret.NameID, err = uuid.FromBytes(nameID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal secret name id")
	}
	if r.secret.Value.KeyID, err = uuid.FromBytes(keyID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal encryption key id")
	}
	if paramsKey != nil {
		if r.paramsKeyID.UUID, err = uuid.FromBytes(paramsKey); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal parameters encryption key id")
		}
		r.paramsKeyID.Valid = true
	}

	return r.toDomain()
}

func (m *MySQLSecretRepository) scanAll(rows *sql.Rows) ([]*secretsDomain.Secret, error) {
	defer func() {
		_ = rows.Close()
	}()

	var secrets []*secretsDomain.Secret
	for rows.Next() {
		secret, err := m.scanOne(rows)
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

// binaryID encodes id for a BINARY(16) column; uuid.Nil maps to NULL.
func binaryID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	b, _ := id.MarshalBinary()
	return b
}

// NewMySQLSecretRepository creates a new MySQL secret repository.
func NewMySQLSecretRepository(db *sql.DB) *MySQLSecretRepository {
	return &MySQLSecretRepository{db: db}
}
