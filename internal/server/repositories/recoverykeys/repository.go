// Package recoverykeys stores hashed recovery keys, one per user.
package recoverykeys

import (
	"context"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type Repository interface {
	// Upsert replaces the user's key hash. Concurrent callers resolve to
	// last writer wins.
	Upsert(ctx context.Context, userID, keyHash string) error

	// Get returns the stored key or common.ErrorNotFound.
	Get(ctx context.Context, userID string) (*models.RecoveryKey, error)
}
