// Package verifications stores the pending email verification code of each
// unverified user.
package verifications

import (
	"context"

	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

type Repository interface {
	// Upsert replaces any previous code of the user.
	Upsert(ctx context.Context, v *models.Verification) error
	Get(ctx context.Context, userID string) (*models.Verification, error)
	Delete(ctx context.Context, userID string) error
}
