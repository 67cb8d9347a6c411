package recoverykeys

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, userID, keyHash string) error {
	query := `
		INSERT INTO recovery_keys (user_id, key_hash)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET key_hash = EXCLUDED.key_hash, created_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, keyHash); err != nil {
		return dbx.WrapError(err)
	}
	return nil
}

// Get returns common.ErrorNotFound when the user has no key, including
// user ids that cannot exist.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.RecoveryKey, error) {
	if !dbx.ValidID(userID) {
		return nil, common.ErrorNotFound
	}
	query := `
		SELECT user_id, key_hash, created_at
		FROM recovery_keys
		WHERE user_id = $1
	`
	k := &models.RecoveryKey{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&k.UserID, &k.KeyHash, &k.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.WrapError(err)
	}
	return k, nil
}
