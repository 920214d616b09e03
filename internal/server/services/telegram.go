package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/config"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/parceltrack/internal/server/telegram"
)

// TelegramVerifier checks Telegram login payloads.
type TelegramVerifier interface {
	VerifyWidget(p telegram.WidgetPayload) (models.TelegramProfile, error)
	VerifyInitData(raw string) (models.TelegramProfile, error)
}

// TelegramAuthService implements the three Telegram login flows. Each
// resolves a profile from its credential and converges on the same
// identity resolution and session issuance.
type TelegramAuthService struct {
	db          *sql.DB
	verifier    TelegramVerifier
	identity    *IdentityService
	broker      *StartAppBroker
	sessions    SessionIssuer
	logger      logging.Logger
	botToken    string
	frontendURL string
	miniAppLink string
	now         func() time.Time
}

func NewTelegramAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, verifier TelegramVerifier, deps Deps) *TelegramAuthService {
	return &TelegramAuthService{
		db:          db,
		verifier:    verifier,
		identity:    NewIdentityService(m, deps.Hasher, deps.Logger),
		broker:      NewStartAppBroker(m),
		sessions:    deps.Sessions,
		logger:      deps.Logger.With("module", "telegram_auth"),
		botToken:    cfg.TelegramBotToken,
		frontendURL: cfg.FrontendURL,
		miniAppLink: cfg.MiniAppLink,
		now:         time.Now,
	}
}

// LoginWidget authenticates a Login Widget callback.
func (s *TelegramAuthService) LoginWidget(ctx context.Context, p telegram.WidgetPayload) (*LoginResult, error) {
	profile, err := s.verifier.VerifyWidget(p)
	if err != nil {
		s.logger.Warn(ctx, "telegram widget rejected", "telegram_id", p.ID, "error", err)
		return nil, err
	}
	return s.resolve(ctx, "telegram widget login", func(ctx context.Context, tx dbx.DBTX) (models.TelegramProfile, error) {
		return profile, nil
	})
}

// LoginInitData authenticates a Mini App launch.
func (s *TelegramAuthService) LoginInitData(ctx context.Context, initData string) (*LoginResult, error) {
	profile, err := s.verifier.VerifyInitData(initData)
	if err != nil {
		s.logger.Warn(ctx, "telegram initData rejected", "error", err)
		return nil, err
	}
	return s.resolve(ctx, "telegram initData login", func(ctx context.Context, tx dbx.DBTX) (models.TelegramProfile, error) {
		return profile, nil
	})
}

// LoginStartApp exchanges a startapp token for a session. The token is
// consumed in the same transaction that resolves the account, so a failed
// resolution leaves the token usable.
func (s *TelegramAuthService) LoginStartApp(ctx context.Context, token string) (*LoginResult, error) {
	return s.resolve(ctx, "telegram startapp login", func(ctx context.Context, tx dbx.DBTX) (models.TelegramProfile, error) {
		return s.broker.Redeem(ctx, tx, token)
	})
}

// StartAppLink issues a startapp token for profile and returns the Mini App
// deep link carrying it.
func (s *TelegramAuthService) StartAppLink(ctx context.Context, profile models.TelegramProfile) (string, error) {
	token, err := s.broker.Issue(ctx, s.db, profile)
	if err != nil {
		return "", expose(ctx, s.logger, "issue startapp token", err)
	}
	return StartAppLink(s.miniAppLink, token), nil
}

// LoginLink returns a widget callback URL for profile signed with the bot
// token.
func (s *TelegramAuthService) LoginLink(profile models.TelegramProfile) string {
	return telegram.LoginLink(s.frontendURL, s.botToken, profile, s.now().Unix())
}

func (s *TelegramAuthService) resolve(ctx context.Context, op string, credential func(ctx context.Context, tx dbx.DBTX) (models.TelegramProfile, error)) (*LoginResult, error) {
	var user *models.User
	err := s.identity.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		profile, err := credential(ctx, tx)
		if err != nil {
			return err
		}
		user, err = s.identity.ResolveOrRegister(ctx, tx, profile)
		return err
	})
	if err != nil {
		return nil, expose(ctx, s.logger, op, err)
	}

	return loginResult(ctx, s.sessions, s.logger, user)
}
