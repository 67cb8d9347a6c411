package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	query := `
		INSERT INTO credentials (id, user_id, site_name, site_url, site_username, encrypted_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	id := uuid.NewString()
	err := r.db.QueryRowContext(ctx, query,
		id, c.UserID, c.SiteName, c.SiteURL, c.SiteUsername, c.EncryptedData).Scan(&c.CreatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	c.ID = id
	return c, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Credential, error) {
	if !dbx.ValidID(userID) {
		return []models.Credential{}, nil
	}
	query := `
		SELECT id, user_id, site_name, site_url, site_username, encrypted_data, created_at
		FROM credentials
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	result := make([]models.Credential, 0)
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.UserID, &c.SiteName, &c.SiteURL, &c.SiteUsername, &c.EncryptedData, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Get returns common.ErrorNotFound for a record owned by another user and
// for ids that cannot exist.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Credential, error) {
	if !dbx.ValidID(userID) || !dbx.ValidID(id) {
		return nil, common.ErrorNotFound
	}
	query := `
		SELECT id, user_id, site_name, site_url, site_username, encrypted_data, created_at
		FROM credentials
		WHERE id = $1 AND user_id = $2
	`
	c := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&c.ID, &c.UserID, &c.SiteName, &c.SiteURL, &c.SiteUsername, &c.EncryptedData, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.WrapError(err)
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	if !dbx.ValidID(userID) || !dbx.ValidID(id) {
		return common.ErrorNotFound
	}
	query := `
		DELETE FROM credentials
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return dbx.WrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
