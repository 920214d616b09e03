package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/repomanager"
)

// resolveAttempts bounds how often a unit of work that lost a first-login
// race is replayed. The second attempt finds the winner's row.
const resolveAttempts = 2

// IdentityService maps a Telegram identity to its account, creating a
// verified account on first sight.
type IdentityService struct {
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	logger      logging.Logger
}

func NewIdentityService(m repomanager.RepositoryManager, hasher cryptox.PasswordHasher, logger logging.Logger) *IdentityService {
	return &IdentityService{repomanager: m, hasher: hasher, logger: logger.With("module", "identity")}
}

// ResolveOrRegister returns the account linked to profile.ID unchanged, or
// creates one. A concurrent creation surfaces as common.ErrorAlreadyExists;
// run the surrounding transaction through InTx to replay it as a lookup.
func (s *IdentityService) ResolveOrRegister(ctx context.Context, db dbx.DBTX, profile models.TelegramProfile) (*models.User, error) {
	repo := s.repomanager.Users(db)

	user, err := repo.GetByTelegramID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	// the account gets a password nobody knows
	secret, err := common.MakeRandURLToken(32)
	if err != nil {
		return nil, fmt.Errorf("random password: %w", err)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	telegramID := profile.ID
	user, err = repo.Create(ctx, &models.User{
		Identifier:   profile.Identifier(),
		PasswordHash: hash,
		Role:         common.RoleUser,
		Verified:     true,
		TelegramID:   &telegramID,
		Telegram:     profile,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "telegram account created", "telegram_id", profile.ID)
	return user, nil
}

// InTx runs fn in a transaction and replays it once when it lost a
// uniqueness race.
func (s *IdentityService) InTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	err := dbx.WithTxRetry(ctx, db, nil, resolveAttempts, isCreateRace, fn)
	if isCreateRace(err) {
		return fmt.Errorf("identity still contended after %d attempts: %w", resolveAttempts, err)
	}
	return err
}

func isCreateRace(err error) bool {
	return errors.Is(err, common.ErrorAlreadyExists)
}
