package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/repomanager"
)

// StartAppTokenTTL is the lifetime of a startapp token.
const StartAppTokenTTL = 300 * time.Second

const startAppTokenBytes = 32

// StartAppBroker issues and redeems one-time startapp tokens.
type StartAppBroker struct {
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewStartAppBroker(m repomanager.RepositoryManager) *StartAppBroker {
	return &StartAppBroker{repomanager: m, now: time.Now}
}

// Issue stores a fresh token for profile and returns it. Tokens that have
// already expired are purged first.
func (b *StartAppBroker) Issue(ctx context.Context, db dbx.DBTX, profile models.TelegramProfile) (string, error) {
	repo := b.repomanager.LoginTokens(db)

	if _, err := repo.DeleteExpired(ctx, b.now()); err != nil {
		return "", fmt.Errorf("purge expired startapp tokens: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		token, err := common.MakeRandURLToken(startAppTokenBytes)
		if err != nil {
			return "", fmt.Errorf("random token: %w", err)
		}

		err = repo.Create(ctx, &models.LoginToken{
			Token:     token,
			Profile:   profile,
			ExpiresAt: b.now().Add(StartAppTokenTTL),
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}

	return "", fmt.Errorf("startapp token collided repeatedly: %w", common.ErrorAlreadyExists)
}

// Redeem consumes token and returns the profile it was issued for. Unknown,
// expired and already used tokens all yield common.ErrLoginTokenInvalid.
func (b *StartAppBroker) Redeem(ctx context.Context, db dbx.DBTX, token string) (models.TelegramProfile, error) {
	if strings.TrimSpace(token) == "" {
		return models.TelegramProfile{}, common.ErrLoginTokenInvalid
	}

	lt, err := b.repomanager.LoginTokens(db).Consume(ctx, token, b.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.TelegramProfile{}, common.ErrLoginTokenInvalid
		}
		return models.TelegramProfile{}, err
	}

	return lt.Profile, nil
}

// StartAppLink appends the startapp parameter to the Mini App link.
func StartAppLink(miniAppLink, token string) string {
	sep := "?"
	if strings.Contains(miniAppLink, "?") {
		sep = "&"
	}
	return miniAppLink + sep + "startapp=" + token
}
