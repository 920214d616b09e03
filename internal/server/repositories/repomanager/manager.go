package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/logintokens"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/users"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/verifications"
)

// RepositoryManager binds repositories to a DBTX so that services can run
// several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Verifications(db dbx.DBTX) verifications.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
	LoginTokens(db dbx.DBTX) logintokens.Repository
}
