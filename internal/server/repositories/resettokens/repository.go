// Package resettokens stores password reset tokens by their SHA-256 hash.
// A user has at most one live token.
package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

type Repository interface {
	// Upsert replaces the user's previous token, invalidating it.
	Upsert(ctx context.Context, t *models.PasswordResetToken) error
	// Consume atomically deletes the token with the given hash if it is still
	// valid at now and returns its owner. common.ErrorNotFound otherwise.
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
}
