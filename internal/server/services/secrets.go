package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/auth"
	"github.com/dmitrijs2005/securepass/internal/server/metrics"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

// IssuedToken is a reset token as handed to the caller for delivery.
type IssuedToken struct {
	Token  string
	Expiry time.Time
}

// TokenRecord identifies a validated reset token.
type TokenRecord struct {
	UserID  string
	TokenID string
}

// SecretOptions are the SecretService tunables.
type SecretOptions struct {
	GrantSecret      []byte
	ResetTokenTTL    time.Duration
	RecoveryGrantTTL time.Duration
	Policy           auth.PasswordPolicy
}

// SecretService issues and checks reset tokens and recovery keys, and runs
// the password reset and recovery flows built on them.
//
// Token state is enforced when a token is validated: Issued becomes Used
// on consumption and Expired once the clock passes its expiry. Neither
// state goes back to Issued.
type SecretService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *Vault
	opts        SecretOptions
	log         logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewSecretService(db *sql.DB, m repomanager.RepositoryManager, vault *Vault, opts SecretOptions,
	log logging.Logger, mt *metrics.Metrics) *SecretService {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = common.ResetTokenValidity
	}
	return &SecretService{
		db:          db,
		repomanager: m,
		vault:       vault,
		opts:        opts,
		log:         log,
		metrics:     mt,
		now:         time.Now,
	}
}

// IssueResetToken stores a fresh single-use token for userID valid for the
// configured TTL (one hour by default).
func (s *SecretService) IssueResetToken(ctx context.Context, userID string) (IssuedToken, error) {
	value, err := common.MakeRandURLSafeString(common.TokenEntropyBytes)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("generate reset token: %w", err)
	}

	t := &models.ResetToken{UserID: userID, Token: value, Expiry: s.now().Add(s.opts.ResetTokenTTL)}
	if _, err := s.repomanager.ResetTokens(s.db).Create(ctx, t); err != nil {
		return IssuedToken{}, fmt.Errorf("error storing reset token: %w", err)
	}

	s.metrics.ResetTokensIssued.Inc()
	s.log.Info(ctx, "reset token issued", "user_id", userID, "expiry", t.Expiry)
	return IssuedToken{Token: value, Expiry: t.Expiry}, nil
}

// ValidateResetToken reports common.ErrorNotFound, common.ErrTokenExpired or
// common.ErrTokenAlreadyUsed, checked in that order.
func (s *SecretService) ValidateResetToken(ctx context.Context, token string) (TokenRecord, error) {
	t, err := s.checkToken(ctx, s.repomanager.ResetTokens(s.db).Find, token)
	if err != nil {
		return TokenRecord{}, err
	}
	return TokenRecord{UserID: t.UserID, TokenID: t.ID}, nil
}

// ConsumeResetToken marks the token used. It returns false if the token was
// already used or does not exist, so of two racing callers only one wins.
func (s *SecretService) ConsumeResetToken(ctx context.Context, tokenID string) (bool, error) {
	ok, err := s.repomanager.ResetTokens(s.db).MarkUsed(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("error consuming reset token: %w", err)
	}
	if ok {
		s.metrics.ResetTokensConsumed.Inc()
	}
	return ok, nil
}

// IssueRecoveryKey replaces the user's recovery key and returns the raw
// value. Only its SHA-256 is stored.
func (s *SecretService) IssueRecoveryKey(ctx context.Context, userID string) (string, error) {
	raw, err := common.MakeRandURLSafeString(common.TokenEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("generate recovery key: %w", err)
	}

	if err := s.repomanager.RecoveryKeys(s.db).Upsert(ctx, userID, hashRecoveryKey(raw)); err != nil {
		return "", fmt.Errorf("error storing recovery key: %w", err)
	}

	s.metrics.RecoveryKeysIssued.Inc()
	s.log.Info(ctx, "recovery key rotated", "user_id", userID)
	return raw, nil
}

// VerifyRecoveryKey reports whether candidate is the user's current key.
// A user without a key gets false, not an error. A successful check does
// not use the key up.
func (s *SecretService) VerifyRecoveryKey(ctx context.Context, userID, candidate string) (bool, error) {
	_, ok, err := s.checkRecoveryKey(ctx, userID, candidate)
	return ok, err
}

func (s *SecretService) checkRecoveryKey(ctx context.Context, userID, candidate string) (*models.RecoveryKey, bool, error) {
	stored, err := s.repomanager.RecoveryKeys(s.db).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.RecoveryCheck(false)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error loading recovery key: %w", err)
	}

	ok := subtle.ConstantTimeCompare([]byte(hashRecoveryKey(candidate)), []byte(stored.KeyHash)) == 1
	s.metrics.RecoveryCheck(ok)
	return stored, ok, nil
}

// RequestPasswordReset issues a token for username. An unknown username is
// not an error: ok is false and nothing is issued, so callers can answer
// the same way in both cases.
func (s *SecretService) RequestPasswordReset(ctx context.Context, username string) (IssuedToken, *models.User, bool, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return IssuedToken{}, nil, false, nil
		}
		return IssuedToken{}, nil, false, fmt.Errorf("error loading user: %w", err)
	}

	tok, err := s.IssueResetToken(ctx, user.ID)
	if err != nil {
		return IssuedToken{}, nil, false, err
	}
	return tok, user, true, nil
}

// ResetPassword sets a new master secret using a reset token. Validation,
// the hash update and consumption share one transaction with the token row
// locked, so a token can complete at most one reset.
func (s *SecretService) ResetPassword(ctx context.Context, token, newSecret string) error {
	if err := s.opts.Policy.Check(newSecret); err != nil {
		return err
	}

	// Cheap pre-check so a bad token does not cost a key derivation.
	if _, err := s.ValidateResetToken(ctx, token); err != nil {
		return err
	}

	hash, err := s.vault.HashMasterSecret(ctx, newSecret)
	if err != nil {
		return fmt.Errorf("error hashing master secret: %w", err)
	}

	var userID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.ResetTokens(tx)

		t, err := s.checkToken(ctx, tokens.FindForUpdate, token)
		if err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, t.UserID, hash); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		ok, err := tokens.MarkUsed(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("error consuming reset token: %w", err)
		}
		if !ok {
			return common.ErrTokenAlreadyUsed
		}
		userID = t.UserID
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ResetTokensConsumed.Inc()
	s.log.Info(ctx, "password reset with token", "user_id", userID)
	return nil
}

// BeginRecovery checks a recovery key and returns a short-lived grant that
// CompleteRecovery accepts. An unknown user and a wrong key both yield
// common.ErrorUnauthorized.
//
// The grant is bound to the user's current master hash and recovery key, so
// it completes at most one recovery and dies when either of them changes.
func (s *SecretService) BeginRecovery(ctx context.Context, username, rawKey string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("error loading user: %w", err)
	}

	key, ok, err := s.checkRecoveryKey(ctx, user.ID, rawKey)
	if err != nil {
		return "", err
	}
	if !ok {
		s.log.Warn(ctx, "recovery key rejected", "user_id", user.ID)
		return "", common.ErrorUnauthorized
	}

	grant, err := auth.GenerateRecoveryGrant(auth.RecoveryGrant{
		UserID:      user.ID,
		Fingerprint: grantFingerprint(user.PasswordHash, key.KeyHash),
	}, s.opts.GrantSecret, s.opts.RecoveryGrantTTL, s.now())
	if err != nil {
		return "", common.ErrorInternal
	}
	return grant, nil
}

// CompleteRecovery sets a new master secret for the user named in grant.
// A grant that was already used, or whose user changed their master secret
// or recovery key since it was issued, gives common.ErrInvalidToken.
func (s *SecretService) CompleteRecovery(ctx context.Context, grant, newSecret string) error {
	g, err := auth.ParseRecoveryGrant(grant, s.opts.GrantSecret, s.now())
	if err != nil {
		return err
	}
	if err := s.opts.Policy.Check(newSecret); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, g.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("error loading user: %w", err)
	}
	key, err := s.repomanager.RecoveryKeys(s.db).Get(ctx, g.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("error loading recovery key: %w", err)
	}
	current := grantFingerprint(user.PasswordHash, key.KeyHash)
	if subtle.ConstantTimeCompare([]byte(current), []byte(g.Fingerprint)) != 1 {
		s.log.Warn(ctx, "stale recovery grant rejected", "user_id", g.UserID)
		return common.ErrInvalidToken
	}

	hash, err := s.vault.HashMasterSecret(ctx, newSecret)
	if err != nil {
		return fmt.Errorf("error hashing master secret: %w", err)
	}
	ok, err := s.repomanager.Users(s.db).ReplacePasswordHash(ctx, g.UserID, user.PasswordHash, hash)
	if err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}
	if !ok {
		return common.ErrInvalidToken
	}

	s.log.Info(ctx, "password reset with recovery key", "user_id", g.UserID)
	return nil
}

// PruneExpiredTokens deletes reset tokens that expired before now.
func (s *SecretService) PruneExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.repomanager.ResetTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error pruning reset tokens: %w", err)
	}
	s.metrics.TokensPruned.Add(float64(n))
	if n > 0 {
		s.log.Info(ctx, "expired reset tokens pruned", "count", n)
	}
	return n, nil
}

func (s *SecretService) checkToken(ctx context.Context, find func(context.Context, string) (*models.ResetToken, error),
	token string) (*models.ResetToken, error) {
	t, err := find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.ResetTokensRejected.WithLabelValues(metrics.ReasonNotFound).Inc()
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading reset token: %w", err)
	}
	if t.Expired(s.now()) {
		s.metrics.ResetTokensRejected.WithLabelValues(metrics.ReasonExpired).Inc()
		return nil, common.ErrTokenExpired
	}
	if t.Used {
		s.metrics.ResetTokensRejected.WithLabelValues(metrics.ReasonAlreadyUsed).Inc()
		return nil, common.ErrTokenAlreadyUsed
	}
	return t, nil
}

// grantFingerprint digests the account state a recovery grant depends on.
func grantFingerprint(passwordHash, keyHash string) string {
	sum := sha256.Sum256([]byte(passwordHash + "\x00" + keyHash))
	return hex.EncodeToString(sum[:])
}

func hashRecoveryKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
