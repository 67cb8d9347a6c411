package vaultctl

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
)

const timeLayout = "2006-01-02 15:04:05 MST"

func (a *App) prune(ctx context.Context, s *store, _ []string) error {
	n, err := s.secrets.PruneExpiredTokens(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "pruned %d expired reset tokens\n", n)
	return nil
}

func (a *App) register(ctx context.Context, s *store, args []string) error {
	pw, err := a.readNewSecret("Master secret: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	u, err := s.users.Register(ctx, args[0], args[1], string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s (%s)\n", u.UserName, u.ID)
	return nil
}

func (a *App) lookupUser(ctx context.Context, s *store, username string) (*models.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return u, nil
}

func (a *App) resetToken(ctx context.Context, s *store, args []string) error {
	username := args[0]
	tok, _, ok, err := s.secrets.RequestPasswordReset(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %q: %w", username, common.ErrorNotFound)
	}
	fmt.Fprintf(a.out, "token:   %s\nexpires: %s\n", tok.Token, tok.Expiry.UTC().Format(timeLayout))
	return nil
}

func (a *App) checkToken(ctx context.Context, s *store, args []string) error {
	rec, err := s.secrets.ValidateResetToken(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "valid for user %s\n", rec.UserID)
	return nil
}

func (a *App) revokeToken(ctx context.Context, s *store, args []string) error {
	rec, err := s.secrets.ValidateResetToken(ctx, args[0])
	if err != nil {
		return err
	}
	ok, err := s.secrets.ConsumeResetToken(ctx, rec.TokenID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrTokenAlreadyUsed
	}
	fmt.Fprintln(a.out, "token revoked")
	return nil
}

func (a *App) resetPassword(ctx context.Context, s *store, args []string) error {
	token := args[0]
	// Fail before prompting when the token is already dead.
	if _, err := s.secrets.ValidateResetToken(ctx, token); err != nil {
		return err
	}

	pw, err := a.readNewSecret("New master secret: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := s.secrets.ResetPassword(ctx, token, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "master secret updated")
	return nil
}

func (a *App) recoveryKey(ctx context.Context, s *store, args []string) error {
	u, err := a.lookupUser(ctx, s, args[0])
	if err != nil {
		return err
	}
	key, err := s.secrets.IssueRecoveryKey(ctx, u.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "recovery key (shown once, store it offline):")
	fmt.Fprintln(a.out, key)
	return nil
}

func (a *App) checkRecoveryKey(ctx context.Context, s *store, args []string) error {
	u, err := a.lookupUser(ctx, s, args[0])
	if err != nil {
		return err
	}
	key, err := GetPassword(a.out, "Recovery key: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	ok, err := s.secrets.VerifyRecoveryKey(ctx, u.ID, string(key))
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "match")
	} else {
		fmt.Fprintln(a.out, "no match")
	}
	return nil
}

func (a *App) recoverAccount(ctx context.Context, s *store, args []string) error {
	key, err := GetPassword(a.out, "Recovery key: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	grant, err := s.secrets.BeginRecovery(ctx, args[0], string(key))
	if err != nil {
		return err
	}

	pw, err := a.readNewSecret("New master secret: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := s.secrets.CompleteRecovery(ctx, grant, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "master secret updated")
	return nil
}
