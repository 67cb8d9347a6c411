// Package vaultctl is the command line front end of the vault. Offline it
// hashes and checks master secrets and generates passwords; against the
// database it manages accounts, reset tokens, recovery keys and stored
// credentials.
package vaultctl

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/kdfpool"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/passgen"
	"github.com/dmitrijs2005/securepass/internal/server/auth"
	"github.com/dmitrijs2005/securepass/internal/server/config"
	"github.com/dmitrijs2005/securepass/internal/server/metrics"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securepass/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const usage = `Usage: vaultctl <command> [args]

Offline:
  hash                                 read a master secret and print its stored form
  verify <stored-hash>                 read a master secret and check it against stored-hash
  genpass [length]                     print a random password (default length 16)

Accounts:
  register <username> <email>          create a user
  reset-token <username>               issue a password reset token
  check-token <token>                  report whether a reset token is still usable
  revoke-token <token>                 use up a reset token without resetting
  reset-password <token>               set a new master secret with a reset token
  recovery-key <username>              issue a new recovery key, replacing the old one
  check-recovery-key <username>        check a recovery key without using it
  recover <username>                   set a new master secret with the recovery key
  prune                                delete expired reset tokens

Credentials:
  add <username> <site> <login> [url]  store a site password
  list <username>                      list stored credentials
  reveal <username> <credential-id>    print a stored site password
  delete <username> <credential-id>    remove a stored credential
`

// ErrUsage is returned for an unknown command or wrong arguments.
var ErrUsage = errors.New("usage error")

type store struct {
	users   *services.UserService
	secrets *services.SecretService
	creds   *services.CredentialService
	close   func() error
}

type App struct {
	config    *config.Config
	out       io.Writer
	logger    logging.Logger
	metrics   *metrics.Metrics
	vault     *services.Vault
	openStore func(ctx context.Context) (*store, error)
}

func NewApp(cfg *config.Config, out io.Writer, logger logging.Logger) (*App, error) {
	mt := metrics.NewNop()
	vault, err := services.NewVault(cfg.CryptoParams(), kdfpool.New(cfg.KDFWorkers), mt)
	if err != nil {
		return nil, err
	}
	a := &App{config: cfg, out: out, logger: logger, metrics: mt, vault: vault}
	a.openStore = a.openPostgres
	return a, nil
}

func (a *App) openPostgres(ctx context.Context) (*store, error) {
	db, err := sql.Open("pgx", a.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db connect error: %w", err)
	}
	return a.newStore(db), nil
}

func (a *App) newStore(db *sql.DB) *store {
	rm := repomanager.NewPostgresRepositoryManager()
	policy := auth.PasswordPolicy{MinLength: a.config.MinPasswordLength, MinScore: a.config.MinPasswordScore}
	us := services.NewUserService(db, rm, a.vault, policy, a.logger)
	return &store{
		users: us,
		secrets: services.NewSecretService(db, rm, a.vault, services.SecretOptions{
			GrantSecret:      []byte(a.config.SecretKey),
			ResetTokenTTL:    a.config.ResetTokenTTL,
			RecoveryGrantTTL: a.config.RecoveryGrantTTL,
			Policy:           policy,
		}, a.logger, a.metrics),
		creds: services.NewCredentialService(db, rm, a.vault, us, a.logger),
		close: db.Close,
	}
}

// Run executes one command. Errors of ErrUsage also print the usage text.
func (a *App) Run(ctx context.Context, args []string) error {
	err := a.dispatch(ctx, args)
	if errors.Is(err, ErrUsage) {
		fmt.Fprint(a.out, usage)
	}
	return err
}

type storeFunc func(ctx context.Context, s *store, args []string) error

func (a *App) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	case "hash":
		return a.hash(ctx)
	case "verify":
		if len(args) != 1 {
			return ErrUsage
		}
		return a.verify(ctx, args[0])
	case "genpass":
		return a.genpass(args)
	case "prune":
		return a.withStore(ctx, args, 0, 0, a.prune)
	case "register":
		return a.withStore(ctx, args, 2, 2, a.register)
	case "reset-token":
		return a.withStore(ctx, args, 1, 1, a.resetToken)
	case "check-token":
		return a.withStore(ctx, args, 1, 1, a.checkToken)
	case "revoke-token":
		return a.withStore(ctx, args, 1, 1, a.revokeToken)
	case "reset-password":
		return a.withStore(ctx, args, 1, 1, a.resetPassword)
	case "recovery-key":
		return a.withStore(ctx, args, 1, 1, a.recoveryKey)
	case "check-recovery-key":
		return a.withStore(ctx, args, 1, 1, a.checkRecoveryKey)
	case "recover":
		return a.withStore(ctx, args, 1, 1, a.recoverAccount)
	case "add":
		return a.withStore(ctx, args, 3, 4, a.addCredential)
	case "list":
		return a.withStore(ctx, args, 1, 1, a.listCredentials)
	case "reveal":
		return a.withStore(ctx, args, 2, 2, a.revealCredential)
	case "delete":
		return a.withStore(ctx, args, 2, 2, a.deleteCredential)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

// withStore checks the argument count, then runs fn against an open store.
func (a *App) withStore(ctx context.Context, args []string, minArgs, maxArgs int, fn storeFunc) error {
	if len(args) < minArgs || len(args) > maxArgs {
		return ErrUsage
	}
	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			a.logger.Warn(ctx, "db close error", "error", cerr)
		}
	}()
	return fn(ctx, s, args)
}

func (a *App) hash(ctx context.Context) error {
	pw, err := a.readNewSecret("Master secret: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	h, err := a.vault.HashMasterSecret(ctx, string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, h)
	return nil
}

func (a *App) verify(ctx context.Context, stored string) error {
	pw, err := GetPassword(a.out, "Master secret: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	ok, err := a.vault.VerifyMasterSecret(ctx, string(pw), stored)
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

func (a *App) genpass(args []string) error {
	n := passgen.DefaultLength
	if len(args) > 1 {
		return ErrUsage
	}
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: length must be a number", ErrUsage)
		}
		n = v
	}

	pw, err := passgen.Generate(n)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, pw)
	return nil
}

// readNewSecret asks for a secret twice and fails when the answers differ.
func (a *App) readNewSecret(prompt string) ([]byte, error) {
	pw, err := GetPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	again, err := GetPassword(a.out, "Repeat: ")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(pw, again) {
		common.WipeByteArray(pw)
		return nil, errors.New("secrets do not match")
	}
	return pw, nil
}
