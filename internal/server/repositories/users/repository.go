// Package users declares the identity store: user records keyed by their
// canonical identifier and, for linked accounts, by Telegram id.
package users

import (
	"context"

	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

type Repository interface {
	// Create inserts the user. A taken identifier or Telegram id yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	// GetByIdentifierForUpdate also locks the row until the surrounding
	// transaction ends.
	GetByIdentifierForUpdate(ctx context.Context, identifier string) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	SetVerified(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
}
