// Package logintokens stores the one-time startapp tokens handed out by the
// Telegram bot.
package logintokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.LoginToken) error
	// Consume deletes the token if it is still valid at now and returns the
	// profile it was issued for. A second Consume of the same token yields
	// common.ErrorNotFound.
	Consume(ctx context.Context, token string, now time.Time) (*models.LoginToken, error)
	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
