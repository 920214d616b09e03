package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/auth"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

// SessionIssuer mints session tokens for authenticated users.
type SessionIssuer interface {
	Issue(user *models.User) (*auth.Token, error)
}

// Notifier delivers account emails.
type Notifier interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, resetLink string) error
}

// Deps are the collaborators shared by the account and Telegram services.
type Deps struct {
	Hasher   cryptox.PasswordHasher
	Sessions SessionIssuer
	Notifier Notifier
	Logger   logging.Logger
}

// LoginResult is the outcome of every login flow. Unverified accounts get no
// token and a zero ExpiresIn.
type LoginResult struct {
	Token      string
	ExpiresIn  int64 // milliseconds
	IsVerified bool
	Identifier string
}

func loginResult(ctx context.Context, issuer SessionIssuer, logger logging.Logger, user *models.User) (*LoginResult, error) {
	if !user.Verified {
		return &LoginResult{IsVerified: false, Identifier: user.Identifier}, nil
	}

	tok, err := issuer.Issue(user)
	if err != nil {
		logger.Error(ctx, "session signing failed", "identifier", user.Identifier, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrSigningFailed, err)
	}

	return &LoginResult{
		Token:      tok.Value,
		ExpiresIn:  tok.Lifetime.Milliseconds(),
		IsVerified: true,
		Identifier: user.Identifier,
	}, nil
}

// expose passes categorized errors through and hides everything else behind
// common.ErrInternal after logging it.
func expose(ctx context.Context, logger logging.Logger, op string, err error) error {
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Error(ctx, op+" failed", "error", err)
	return common.ErrInternal
}
