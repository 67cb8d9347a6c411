// Package server runs the long-lived side of the vault: database migrations,
// the gRPC health endpoint, the admin HTTP endpoint and the periodic pruning
// of expired reset tokens. Account and credential operations are driven by
// vaultctl.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/securepass/internal/kdfpool"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/auth"
	"github.com/dmitrijs2005/securepass/internal/server/config"
	"github.com/dmitrijs2005/securepass/internal/server/httpx"
	"github.com/dmitrijs2005/securepass/internal/server/metrics"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securepass/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/securepass/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	registry      *prometheus.Registry
	secretService *services.SecretService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	vault, err := services.NewVault(c.CryptoParams(), kdfpool.New(c.KDFWorkers), mt)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("crypto init error: %w", err)
	}

	policy := auth.PasswordPolicy{MinLength: c.MinPasswordLength, MinScore: c.MinPasswordScore}
	ss := services.NewSecretService(db, rm, vault, services.SecretOptions{
		GrantSecret:      []byte(c.SecretKey),
		ResetTokenTTL:    c.ResetTokenTTL,
		RecoveryGrantTTL: c.RecoveryGrantTTL,
		Policy:           policy,
	}, logger.With("module", "secrets"), mt)

	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		registry:      reg,
		secretService: ss,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db, 0)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startAdminServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpx.NewServer(app.config.EndpointAddrAdmin, httpx.NewRouter(app.registry, app.db), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

type pruner interface {
	PruneExpiredTokens(ctx context.Context) (int64, error)
}

// runPruneLoop deletes expired reset tokens every interval until ctx ends.
// Failures are logged and retried on the next tick.
func runPruneLoop(ctx context.Context, p pruner, interval time.Duration, logger logging.Logger) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.PruneExpiredTokens(ctx); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "token prune failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startAdminServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		runPruneLoop(ctx, app.secretService, app.config.TokenPruneInterval, app.logger)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
