package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	"github.com/allisson/credvault/internal/database"
	apperrors "github.com/allisson/credvault/internal/errors"
)

// MySQLCanaryRepository implements canary persistence for MySQL. Ids are
// stored as BINARY(16).
type MySQLCanaryRepository struct {
	db *sql.DB
}

// Create inserts a canary.
func (m *MySQLCanaryRepository) Create(ctx context.Context, canary *cryptoDomain.Canary) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO encryption_key_canaries (id, ciphertext, nonce, created_at)
			  VALUES (?, ?, ?, ?)`

	id, err := canary.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal canary id")
	}

	_, err = querier.ExecContext(ctx, query, id, canary.Ciphertext, canary.Nonce, canary.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create encryption key canary")
	}
	return nil
}

// List returns every canary, oldest first.
func (m *MySQLCanaryRepository) List(ctx context.Context) ([]*cryptoDomain.Canary, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, ciphertext, nonce, created_at FROM encryption_key_canaries ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list encryption key canaries")
	}
	defer func() {
		_ = rows.Close()
	}()

	var canaries []*cryptoDomain.Canary
	for rows.Next() {
		var (
			canary cryptoDomain.Canary
			id     []byte
		)
		if err := rows.Scan(&id, &canary.Ciphertext, &canary.Nonce, &canary.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encryption key canary")
		}
		if canary.ID, err = uuid.FromBytes(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal canary id")
		}
		canaries = append(canaries, &canary)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption key canaries")
	}

	return canaries, nil
}

// NewMySQLCanaryRepository creates a new MySQL canary repository.
func NewMySQLCanaryRepository(db *sql.DB) *MySQLCanaryRepository {
	return &MySQLCanaryRepository{db: db}
}
