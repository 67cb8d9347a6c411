package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/config"
	"github.com/dmitrijs2005/securepass/internal/vaultctl"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadEnvConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	app, err := vaultctl.NewApp(cfg, os.Stdout, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, vaultctl.ErrUsage) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
