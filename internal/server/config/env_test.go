package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_OverlaysSetVariables(t *testing.T) {
	t.Setenv(EnvGRPCAddr, ":6000")
	t.Setenv(EnvDatabaseDSN, "postgres://env")
	t.Setenv(EnvKDFIterations, "5000")
	t.Setenv(EnvResetTokenTTL, "30m")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvAdminAddr, "")

	var c Config
	c.LoadDefaults()
	parseEnv(&c, "")

	assert.Equal(t, ":6000", c.EndpointAddrGRPC)
	assert.Equal(t, ":8081", c.EndpointAddrAdmin, "empty variable keeps the default")
	assert.Equal(t, "postgres://env", c.DatabaseDSN)
	assert.Equal(t, 5000, c.KDFIterations)
	assert.Equal(t, 30*time.Minute, c.ResetTokenTTL)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestParseEnv_DotenvFile(t *testing.T) {
	t.Setenv(EnvSecretKey, "")
	t.Setenv(EnvMinPasswordScore, "")
	require.NoError(t, os.Unsetenv(EnvSecretKey))
	require.NoError(t, os.Unsetenv(EnvMinPasswordScore))
	t.Setenv(EnvKDFWorkers, "3")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SECRET_KEY=from-dotenv\nMIN_PASSWORD_SCORE=2\nKDF_WORKERS=9\n"), 0o600))

	var c Config
	c.LoadDefaults()
	parseEnv(&c, path)

	assert.Equal(t, "from-dotenv", c.SecretKey)
	assert.Equal(t, 2, c.MinPasswordScore)
	assert.Equal(t, 3, c.KDFWorkers, "process environment wins over .env")
}

func TestParseEnv_MissingDotenvIsIgnored(t *testing.T) {
	var c Config
	c.LoadDefaults()
	require.NotPanics(t, func() { parseEnv(&c, filepath.Join(t.TempDir(), "absent.env")) })
}

func TestParseEnv_BadValuesPanic(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		t.Setenv(EnvKDFWorkers, "many")
		var c Config
		require.Panics(t, func() { parseEnv(&c, "") })
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv(EnvRecoveryGrantTTL, "soon")
		var c Config
		require.Panics(t, func() { parseEnv(&c, "") })
	})
}
