package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/recoverykeys"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
	RecoveryKeys(db dbx.DBTX) recoverykeys.Repository
}
