package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/securepass/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   admin HTTP bind address (e.g., ":8081")
//	-d string   PostgreSQL DSN
//	-s string   recovery grant HMAC secret key
//	-i int      PBKDF2 iterations
//	-w int      concurrent key derivations
//	-t int      reset token validity, minutes
//	-r int      recovery grant validity, minutes
//	-p int      expired token prune interval, minutes
//	-l int      minimum master secret length
//	-q int      minimum zxcvbn score (0 disables)
//	-v string   log level
//
// os.Args is filtered with flagx.FilterArgs first, so -c/-config and flags
// owned by other components do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-s", "-i", "-w", "-t", "-r", "-p", "-l", "-q", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.EndpointAddrAdmin, "m", config.EndpointAddrAdmin, "admin HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.IntVar(&config.KDFIterations, "i", config.KDFIterations, "PBKDF2 iterations")
	fs.IntVar(&config.KDFWorkers, "w", config.KDFWorkers, "concurrent key derivations")

	resetTokenTTL := fs.Int("t", int(config.ResetTokenTTL.Minutes()), "reset token validity (in minutes)")
	recoveryGrantTTL := fs.Int("r", int(config.RecoveryGrantTTL.Minutes()), "recovery grant validity (in minutes)")
	pruneInterval := fs.Int("p", int(config.TokenPruneInterval.Minutes()), "expired token prune interval (in minutes)")

	fs.IntVar(&config.MinPasswordLength, "l", config.MinPasswordLength, "minimum master secret length")
	fs.IntVar(&config.MinPasswordScore, "q", config.MinPasswordScore, "minimum zxcvbn score, 0 disables")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ResetTokenTTL = time.Duration(*resetTokenTTL) * time.Minute
	config.RecoveryGrantTTL = time.Duration(*recoveryGrantTTL) * time.Minute
	config.TokenPruneInterval = time.Duration(*pruneInterval) * time.Minute
}
