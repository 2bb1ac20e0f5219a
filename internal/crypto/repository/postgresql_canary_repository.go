// Package repository implements encryption key canary persistence for
// PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	"github.com/allisson/credvault/internal/database"
	apperrors "github.com/allisson/credvault/internal/errors"
)

// PostgreSQLCanaryRepository implements canary persistence for PostgreSQL.
type PostgreSQLCanaryRepository struct {
	db *sql.DB
}

// Create inserts a canary.
func (p *PostgreSQLCanaryRepository) Create(ctx context.Context, canary *cryptoDomain.Canary) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_key_canaries (id, ciphertext, nonce, created_at)
			  VALUES ($1, $2, $3, $4)`

	_, err := querier.ExecContext(ctx, query, canary.ID, canary.Ciphertext, canary.Nonce, canary.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create encryption key canary")
	}
	return nil
}

// List returns every canary, oldest first.
func (p *PostgreSQLCanaryRepository) List(ctx context.Context) ([]*cryptoDomain.Canary, error) {
	querier := database.GetTx(ctx, p.db)

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
		var canary cryptoDomain.Canary
		if err := rows.Scan(&canary.ID, &canary.Ciphertext, &canary.Nonce, &canary.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encryption key canary")
		}
		canaries = append(canaries, &canary)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption key canaries")
	}

	return canaries, nil
}

// NewPostgreSQLCanaryRepository creates a new PostgreSQL canary repository.
func NewPostgreSQLCanaryRepository(db *sql.DB) *PostgreSQLCanaryRepository {
	return &PostgreSQLCanaryRepository{db: db}
}
