package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

// CredentialInput is a site login as entered by the user.
type CredentialInput struct {
	SiteName     string
	SiteURL      string
	SiteUsername string
	SitePassword string
}

// CredentialService stores site credentials encrypted under the owner's
// master secret. Operations touching plaintext re-check that secret first.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *Vault
	users       *UserService
	log         logging.Logger
}

func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, vault *Vault, users *UserService,
	log logging.Logger) *CredentialService {
	return &CredentialService{db: db, repomanager: m, vault: vault, users: users, log: log}
}

// Add encrypts in.SitePassword under a fresh salt and stores the record.
func (s *CredentialService) Add(ctx context.Context, userID, secret string, in CredentialInput) (*models.Credential, error) {
	if strings.TrimSpace(in.SiteName) == "" || strings.TrimSpace(in.SiteUsername) == "" || in.SitePassword == "" {
		return nil, fmt.Errorf("%w: site name, username and password are required", common.ErrorValidation)
	}
	if err := s.reauthenticate(ctx, userID, secret); err != nil {
		return nil, err
	}

	rec, err := s.vault.EncryptCredential(ctx, in.SitePassword, secret)
	if err != nil {
		return nil, fmt.Errorf("error encrypting credential: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("error encoding credential: %w", err)
	}

	c := &models.Credential{
		UserID:        userID,
		SiteName:      in.SiteName,
		SiteURL:       in.SiteURL,
		SiteUsername:  in.SiteUsername,
		EncryptedData: string(data),
	}
	created, err := s.repomanager.Credentials(s.db).Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("error storing credential: %w", err)
	}
	return created, nil
}

// List returns the user's credentials newest first, without ciphertext.
func (s *CredentialService) List(ctx context.Context, userID string) ([]models.Credential, error) {
	items, err := s.repomanager.Credentials(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing credentials: %w", err)
	}
	for i := range items {
		items[i].EncryptedData = ""
	}
	return items, nil
}

// Reveal decrypts one credential. A credential owned by someone else is
// reported as common.ErrorNotFound. Records written under an earlier master
// secret fail with common.ErrDecryptionFailed.
func (s *CredentialService) Reveal(ctx context.Context, userID, credentialID, secret string) (string, error) {
	if err := s.reauthenticate(ctx, userID, secret); err != nil {
		return "", err
	}

	c, err := s.repomanager.Credentials(s.db).Get(ctx, userID, credentialID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("error loading credential: %w", err)
	}

	var rec cryptox.EncryptedCredential
	if err := json.Unmarshal([]byte(c.EncryptedData), &rec); err != nil {
		return "", common.ErrDecryptionFailed
	}

	plaintext, err := s.vault.DecryptCredential(ctx, rec, secret)
	if err != nil {
		if errors.Is(err, common.ErrDecryptionFailed) {
			s.log.Warn(ctx, "credential decryption failed", "user_id", userID, "credential_id", credentialID)
		}
		return "", err
	}
	return plaintext, nil
}

func (s *CredentialService) Delete(ctx context.Context, userID, credentialID string) error {
	if err := s.repomanager.Credentials(s.db).Delete(ctx, userID, credentialID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error deleting credential: %w", err)
	}
	return nil
}

func (s *CredentialService) reauthenticate(ctx context.Context, userID, secret string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return common.ErrorInternal
	}
	return s.users.checkSecret(ctx, user, secret)
}
