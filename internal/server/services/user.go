package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/auth"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

// UserService registers and authenticates vault users.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *Vault
	policy      auth.PasswordPolicy
	log         logging.Logger

	// dummyHash is verified against when the user does not exist, built on
	// first use.
	dummyHash func() (string, error)
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, vault *Vault, policy auth.PasswordPolicy,
	log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		vault:       vault,
		policy:      policy,
		log:         log,
		dummyHash:   sync.OnceValues(newDummyHash),
	}
}

// Register creates a user whose master secret is stored only as a hash.
// A taken username or email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, email, secret string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrorValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email address", common.ErrorValidation)
	}
	if err := s.policy.Check(secret, username, email); err != nil {
		return nil, err
	}

	hash, err := s.vault.HashMasterSecret(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("error hashing master secret: %w", err)
	}

	user := &models.User{UserName: username, Email: email, PasswordHash: hash}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Authenticate returns the user when secret matches. An unknown username
// and a wrong secret both give common.ErrorUnauthorized, and both pay for
// one key derivation.
func (s *UserService) Authenticate(ctx context.Context, username, secret string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			dummy, err := s.dummyHash()
			if err != nil {
				s.log.Error(ctx, "dummy hash unavailable", "error", err)
				return nil, common.ErrorInternal
			}
			_, _ = s.vault.VerifyMasterSecret(ctx, secret, dummy)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if err := s.checkSecret(ctx, user, secret); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByUsername(ctx, username)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByEmail(ctx, email)
}

func (s *UserService) checkSecret(ctx context.Context, user *models.User, secret string) error {
	ok, err := s.vault.VerifyMasterSecret(ctx, secret, user.PasswordHash)
	if err != nil {
		if errors.Is(err, common.ErrMalformedHash) {
			s.log.Error(ctx, "stored master hash is malformed", "user_id", user.ID)
		}
		return common.ErrorInternal
	}
	if !ok {
		return common.ErrorUnauthorized
	}
	return nil
}

// randBytes is a test seam for common.GenerateRandByteArray.
var randBytes = common.GenerateRandByteArray

// newDummyHash builds a well-formed hash of random bytes. The key length
// matches the base64url text of a derived key.
func newDummyHash() (string, error) {
	salt, err := randBytes(cryptox.DefaultSaltLength)
	if err != nil {
		return "", fmt.Errorf("generate dummy salt: %w", err)
	}
	key, err := randBytes(44)
	if err != nil {
		return "", fmt.Errorf("generate dummy key: %w", err)
	}
	return cryptox.MasterSecretHash{Salt: salt, Key: key}.String(), nil
}
