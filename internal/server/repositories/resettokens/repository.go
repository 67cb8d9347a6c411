// Package resettokens declares the repository contract for password reset
// tokens.
package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

// Repository persists reset tokens.
type Repository interface {
	// Create stores t under a fresh id. Token values are unique; a clash
	// surfaces as common.ErrorAlreadyExists.
	Create(ctx context.Context, t *models.ResetToken) (*models.ResetToken, error)

	// Find looks a token up by value, returning common.ErrorNotFound when absent.
	Find(ctx context.Context, token string) (*models.ResetToken, error)

	// FindForUpdate is Find with a row lock. It must run inside a transaction.
	FindForUpdate(ctx context.Context, token string) (*models.ResetToken, error)

	// MarkUsed flips used from false to true. It reports false when the row
	// is missing or was already used, so exactly one caller ever wins.
	MarkUsed(ctx context.Context, id string) (bool, error)

	// DeleteExpired removes tokens whose expiry is before now and returns
	// how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
