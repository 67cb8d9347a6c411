package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/securepass/internal/flagx"
	"github.com/dmitrijs2005/securepass/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// After unmarshalling, non-zero fields are copied into Config.
type JsonConfig struct {
	EndpointAddrGRPC   string         `json:"endpoint_addr_grpc"`
	EndpointAddrAdmin  string         `json:"endpoint_addr_admin"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	KDFIterations      int            `json:"kdf_iterations"`
	KDFWorkers         int            `json:"kdf_workers"`
	ResetTokenTTL      timex.Duration `json:"reset_token_ttl"`
	RecoveryGrantTTL   timex.Duration `json:"recovery_grant_ttl"`
	TokenPruneInterval timex.Duration `json:"token_prune_interval"`
	MinPasswordLength  int            `json:"min_password_length"`
	MinPasswordScore   int            `json:"min_password_score"`
	LogLevel           string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flag. Without the flag nothing is loaded.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrAdmin, c.EndpointAddrAdmin)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setInt(&config.KDFIterations, c.KDFIterations)
	setInt(&config.KDFWorkers, c.KDFWorkers)
	if c.ResetTokenTTL.Duration != 0 {
		config.ResetTokenTTL = c.ResetTokenTTL.Duration
	}
	if c.RecoveryGrantTTL.Duration != 0 {
		config.RecoveryGrantTTL = c.RecoveryGrantTTL.Duration
	}
	if c.TokenPruneInterval.Duration != 0 {
		config.TokenPruneInterval = c.TokenPruneInterval.Duration
	}
	setInt(&config.MinPasswordLength, c.MinPasswordLength)
	setInt(&config.MinPasswordScore, c.MinPasswordScore)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
