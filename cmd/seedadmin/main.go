// Command seedadmin creates a verified SUPER_ADMIN account. It reads the
// same configuration as the server (environment, -c file, flags) and asks
// for the password on the terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/flagx"
	"github.com/dmitrijs2005/parceltrack/internal/seedadmin"
	"github.com/dmitrijs2005/parceltrack/internal/server"
	"github.com/dmitrijs2005/parceltrack/internal/server/config"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/parceltrack/internal/server/services"
)

func main() {

	var email string
	fs := flag.NewFlagSet("seedadmin", flag.ExitOnError)
	fs.StringVar(&email, "email", "", "admin email (prompted when empty)")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email"}))

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, syncLog, err := server.NewLogger(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = syncLog() }()

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	accounts := services.NewAccountService(db, m, cfg, services.Deps{
		Hasher: cryptox.NewArgon2Hasher(cryptox.DefaultArgon2Params),
		Logger: logger,
	})

	if _, err := seedadmin.Run(ctx, accounts, bufio.NewReader(os.Stdin), os.Stdout, email); err != nil {
		log.Fatalf("%v", err)
	}
}
