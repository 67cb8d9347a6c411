// Package resettokens provides a PostgreSQL-backed repository for password
// reset tokens.
package resettokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new, unused token.
func (r *PostgresRepository) Create(ctx context.Context, t *models.ResetToken) (*models.ResetToken, error) {
	query := `
		INSERT INTO reset_tokens (id, user_id, token, expiry)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	id := uuid.NewString()
	if err := r.db.QueryRowContext(ctx, query, id, t.UserID, t.Token, t.Expiry).Scan(&t.CreatedAt); err != nil {
		return nil, dbx.WrapError(err)
	}
	t.ID = id
	t.Used = false
	return t, nil
}

const selectToken = `
		SELECT id, user_id, token, expiry, used, created_at
		FROM reset_tokens
		WHERE token = $1
	`

// Find returns the token row for the given value.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.ResetToken, error) {
	return r.find(ctx, selectToken, token)
}

// FindForUpdate locks the token row until the surrounding transaction ends.
func (r *PostgresRepository) FindForUpdate(ctx context.Context, token string) (*models.ResetToken, error) {
	return r.find(ctx, selectToken+"FOR UPDATE", token)
}

func (r *PostgresRepository) find(ctx context.Context, query, token string) (*models.ResetToken, error) {
	t := &models.ResetToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&t.ID, &t.UserID, &t.Token, &t.Expiry, &t.Used, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// MarkUsed is a compare-and-swap on the used flag. An id that cannot exist
// reports false.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	if !dbx.ValidID(id) {
		return false, nil
	}
	query := `
		UPDATE reset_tokens SET used = TRUE
		WHERE id = $1 AND used = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, dbx.WrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired removes every token past its expiry.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM reset_tokens
		WHERE expiry < $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
