package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvGRPCAddr           = "GRPC_ADDR"
	EnvAdminAddr          = "ADMIN_ADDR"
	EnvDatabaseDSN        = "DATABASE_DSN"
	EnvSecretKey          = "SECRET_KEY"
	EnvKDFIterations      = "KDF_ITERATIONS"
	EnvKDFWorkers         = "KDF_WORKERS"
	EnvResetTokenTTL      = "RESET_TOKEN_TTL"
	EnvRecoveryGrantTTL   = "RECOVERY_GRANT_TTL"
	EnvTokenPruneInterval = "TOKEN_PRUNE_INTERVAL"
	EnvMinPasswordLength  = "MIN_PASSWORD_LENGTH"
	EnvMinPasswordScore   = "MIN_PASSWORD_SCORE"
	EnvLogLevel           = "LOG_LEVEL"
)

// parseEnv loads dotenvPath (if it exists) into the process environment and
// then overlays any set variables onto config. Variables already present in
// the environment win over the file. Malformed numbers or durations panic.
func parseEnv(config *Config, dotenvPath string) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	lookupString(EnvGRPCAddr, &config.EndpointAddrGRPC)
	lookupString(EnvAdminAddr, &config.EndpointAddrAdmin)
	lookupString(EnvDatabaseDSN, &config.DatabaseDSN)
	lookupString(EnvSecretKey, &config.SecretKey)
	lookupInt(EnvKDFIterations, &config.KDFIterations)
	lookupInt(EnvKDFWorkers, &config.KDFWorkers)
	lookupDuration(EnvResetTokenTTL, &config.ResetTokenTTL)
	lookupDuration(EnvRecoveryGrantTTL, &config.RecoveryGrantTTL)
	lookupDuration(EnvTokenPruneInterval, &config.TokenPruneInterval)
	lookupInt(EnvMinPasswordLength, &config.MinPasswordLength)
	lookupInt(EnvMinPasswordScore, &config.MinPasswordScore)
	lookupString(EnvLogLevel, &config.LogLevel)
}

func lookupString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func lookupInt(name string, dst *int) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("env %s: %w", name, err))
	}
	*dst = n
}

func lookupDuration(name string, dst *time.Duration) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("env %s: %w", name, err))
	}
	*dst = d
}
