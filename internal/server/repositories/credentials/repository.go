// Package credentials declares the repository contract for encrypted site
// credentials. Every lookup is scoped by owner.
package credentials

import (
	"context"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type Repository interface {
	// Create stores c under a fresh id and returns it with ID and CreatedAt set.
	Create(ctx context.Context, c *models.Credential) (*models.Credential, error)

	// ListByUser returns the user's credentials, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Credential, error)

	// Get returns credential id only if it belongs to userID; otherwise
	// common.ErrorNotFound.
	Get(ctx context.Context, userID, id string) (*models.Credential, error)

	// Delete removes credential id owned by userID. Returns
	// common.ErrorNotFound when nothing was deleted.
	Delete(ctx context.Context, userID, id string) error
}
