package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

func newCanary() *cryptoDomain.Canary {
	return &cryptoDomain.Canary{
		ID:         uuid.Must(uuid.NewV7()),
		Ciphertext: []byte("canary-ciphertext"),
		Nonce:      []byte("nonce-123456"),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestPostgreSQLCanaryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		canary := newCanary()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO encryption_key_canaries")).
			WithArgs(canary.ID, canary.Ciphertext, canary.Nonce, canary.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPostgreSQLCanaryRepository(db).Create(ctx, canary))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create error is wrapped", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO encryption_key_canaries")).
			WillReturnError(errors.New("connection reset"))

		err = NewPostgreSQLCanaryRepository(db).Create(ctx, newCanary())
		assert.EqualError(t, err, "failed to create encryption key canary: connection reset")
	})

	t.Run("list", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		first, second := newCanary(), newCanary()
		rows := sqlmock.NewRows([]string{"id", "ciphertext", "nonce", "created_at"}).
			AddRow(first.ID.String(), first.Ciphertext, first.Nonce, first.CreatedAt).
			AddRow(second.ID.String(), second.Ciphertext, second.Nonce, second.CreatedAt)
		mock.ExpectQuery(regexp.QuoteMeta("FROM encryption_key_canaries ORDER BY created_at ASC")).
			WillReturnRows(rows)

		canaries, err := NewPostgreSQLCanaryRepository(db).List(ctx)
		require.NoError(t, err)
		require.Len(t, canaries, 2)
		assert.Equal(t, first.ID, canaries[0].ID)
		assert.Equal(t, second.Ciphertext, canaries[1].Ciphertext)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLCanaryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create stores binary id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		canary := newCanary()
		id, err := canary.ID.MarshalBinary()
		require.NoError(t, err)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO encryption_key_canaries")).
			WithArgs(id, canary.Ciphertext, canary.Nonce, canary.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewMySQLCanaryRepository(db).Create(ctx, canary))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list decodes binary id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		canary := newCanary()
		id, err := canary.ID.MarshalBinary()
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("FROM encryption_key_canaries")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "ciphertext", "nonce", "created_at"}).
				AddRow(id, canary.Ciphertext, canary.Nonce, canary.CreatedAt))

		canaries, err := NewMySQLCanaryRepository(db).List(ctx)
		require.NoError(t, err)
		require.Len(t, canaries, 1)
		assert.Equal(t, canary.ID, canaries[0].ID)
	})

	t.Run("list rejects malformed id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(regexp.QuoteMeta("FROM encryption_key_canaries")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "ciphertext", "nonce", "created_at"}).
				AddRow([]byte{1, 2, 3}, []byte("c"), []byte("n"), time.Now()))

		_, err = NewMySQLCanaryRepository(db).List(ctx)
		assert.ErrorContains(t, err, "failed to unmarshal canary id")
	})
}
