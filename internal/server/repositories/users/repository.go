package users

import (
	"context"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
	ReplacePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
}
