package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/config"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/repomanager"
)

const (
	VerificationTTL       = 15 * time.Minute
	ResendVerificationTTL = time.Hour
	ResetTokenTTL         = 30 * time.Minute
)

const RegisteredMessage = "Registration successful. Check your email for the verification code."

// AccountService owns the email account lifecycle: registration,
// verification, password login, reset and change.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	sessions    SessionIssuer
	notifier    Notifier
	logger      logging.Logger
	resetURL    string
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, deps Deps) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      deps.Hasher,
		sessions:    deps.Sessions,
		notifier:    deps.Notifier,
		logger:      deps.Logger.With("module", "account"),
		resetURL:    cfg.ResetPasswordURL,
		now:         time.Now,
	}
}

// Register creates an unverified account and emails its verification code.
// A mail failure leaves the account in place; Resend delivers a new code.
func (s *AccountService) Register(ctx context.Context, identifier, password string) (string, error) {
	id := common.NormalizeIdentifier(identifier)
	if !common.IsEmailIdentifier(id) {
		return "", common.ErrInvalidEmail
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", expose(ctx, s.logger, "hash password", err)
	}
	code, err := newVerificationCode()
	if err != nil {
		return "", expose(ctx, s.logger, "verification code", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		if _, err := users.GetByIdentifier(ctx, id); err == nil {
			return common.ErrUserExists
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		user, err := users.Create(ctx, &models.User{
			Identifier:   id,
			PasswordHash: hash,
			Role:         common.RoleUser,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.ErrUserExists
		}
		if err != nil {
			return err
		}

		return s.repomanager.Verifications(tx).Upsert(ctx, &models.Verification{
			UserID:    user.ID,
			Code:      code,
			ExpiresAt: s.now().Add(VerificationTTL),
		})
	})
	if err != nil {
		return "", expose(ctx, s.logger, "register", err)
	}

	s.logger.Info(ctx, "user registered", "identifier", id)

	if err := s.notifier.SendVerificationCode(ctx, id, code); err != nil {
		s.logger.Warn(ctx, "verification email not sent", "identifier", id, "error", err)
		return "", fmt.Errorf("%w: %w", common.ErrNotificationFailed, err)
	}

	return RegisteredMessage, nil
}

// Login checks the password of an email or Telegram identifier. Unknown
// identifiers and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	id := common.NormalizeIdentifier(identifier)

	user, err := s.repomanager.Users(s.db).GetByIdentifier(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		s.burnHash(password)
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, expose(ctx, s.logger, "login", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		s.logger.Warn(ctx, "stored password hash unreadable", "identifier", id, "error", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	return loginResult(ctx, s.sessions, s.logger, user)
}

// Verify consumes the verification code of identifier and marks the account
// verified. The user row is locked for the duration, so two calls with the
// same code cannot both succeed.
func (s *AccountService) Verify(ctx context.Context, identifier, code string) error {
	id := common.NormalizeIdentifier(identifier)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.lockUnverified(ctx, tx, id)
		if err != nil {
			return err
		}

		verifications := s.repomanager.Verifications(tx)
		v, err := verifications.Get(ctx, user.ID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrCodeExpired
		}
		if err != nil {
			return err
		}
		if v.Expired(s.now()) {
			return common.ErrCodeExpired
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(v.Code)) != 1 {
			return common.ErrInvalidCode
		}

		if err := verifications.Delete(ctx, user.ID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).SetVerified(ctx, user.ID)
	})
	if err != nil {
		return expose(ctx, s.logger, "verify", err)
	}

	s.logger.Info(ctx, "user verified", "identifier", id)
	return nil
}

// Resend replaces the verification code of an unverified account with a new
// one valid for an hour and emails it.
func (s *AccountService) Resend(ctx context.Context, identifier string) error {
	id := common.NormalizeIdentifier(identifier)

	code, err := newVerificationCode()
	if err != nil {
		return expose(ctx, s.logger, "verification code", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.lockUnverified(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.repomanager.Verifications(tx).Upsert(ctx, &models.Verification{
			UserID:    user.ID,
			Code:      code,
			ExpiresAt: s.now().Add(ResendVerificationTTL),
		})
	})
	if err != nil {
		return expose(ctx, s.logger, "resend", err)
	}

	if err := s.notifier.SendVerificationCode(ctx, id, code); err != nil {
		s.logger.Warn(ctx, "verification email not sent", "identifier", id, "error", err)
		return fmt.Errorf("%w: %w", common.ErrNotificationFailed, err)
	}
	return nil
}

// ForgotPassword issues a reset token for an email account that is not
// linked to Telegram and emails the reset link. Only the token hash is
// stored; a new request invalidates the previous token.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	id := common.NormalizeIdentifier(email)
	if !common.IsEmailIdentifier(id) {
		return common.ErrResetEmailOnly
	}

	user, err := s.repomanager.Users(s.db).GetByIdentifier(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUserNotFound
	}
	if err != nil {
		return expose(ctx, s.logger, "forgot password", err)
	}
	if user.HasTelegram() {
		return common.ErrResetTelegramUser
	}

	token, err := common.MakeRandURLToken(32)
	if err != nil {
		return expose(ctx, s.logger, "reset token", err)
	}

	err = s.repomanager.ResetTokens(s.db).Upsert(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: cryptox.SHA256Hex(token),
		ExpiresAt: s.now().Add(ResetTokenTTL),
	})
	if err != nil {
		return expose(ctx, s.logger, "forgot password", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, id, s.resetLink(token)); err != nil {
		s.logger.Warn(ctx, "reset email not sent", "identifier", id, "error", err)
		return fmt.Errorf("%w: %w", common.ErrNotificationFailed, err)
	}
	return nil
}

// ResetPassword redeems token and sets the new password. The token is
// deleted in the same statement that checks it, so it works at most once.
func (s *AccountService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return common.ErrPasswordsMismatch
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return expose(ctx, s.logger, "hash password", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userID, err := s.repomanager.ResetTokens(tx).Consume(ctx, cryptox.SHA256Hex(token), s.now())
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrResetTokenInvalid
		}
		if err != nil {
			return err
		}

		err = s.repomanager.Users(tx).UpdatePassword(ctx, userID, hash)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return expose(ctx, s.logger, "reset password", err)
	}

	s.logger.Info(ctx, "password reset")
	return nil
}

// ChangePassword replaces the password of an authenticated account after
// checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, identifier, current, password, confirm string) error {
	if password != confirm {
		return common.ErrPasswordsMismatch
	}

	id := common.NormalizeIdentifier(identifier)
	users := s.repomanager.Users(s.db)

	user, err := users.GetByIdentifier(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUserNotFound
	}
	if err != nil {
		return expose(ctx, s.logger, "change password", err)
	}
	if user.IsTelegramOnly() {
		return common.ErrChangeTelegramUser
	}

	ok, err := s.hasher.Verify(user.PasswordHash, current)
	if err != nil {
		s.logger.Warn(ctx, "stored password hash unreadable", "identifier", id, "error", err)
	}
	if !ok {
		return common.ErrWrongPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return expose(ctx, s.logger, "hash password", err)
	}
	if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return expose(ctx, s.logger, "change password", err)
	}

	s.logger.Info(ctx, "password changed", "identifier", id)
	return nil
}

// Me returns the account behind an authenticated identifier.
func (s *AccountService) Me(ctx context.Context, identifier string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByIdentifier(ctx, identifier)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, expose(ctx, s.logger, "me", err)
	}
	return user, nil
}

// --- helpers below ---

func (s *AccountService) lockUnverified(ctx context.Context, tx dbx.DBTX, identifier string) (*models.User, error) {
	user, err := s.repomanager.Users(tx).GetByIdentifierForUpdate(ctx, identifier)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return nil, common.ErrAlreadyVerified
	}
	return user, nil
}

func (s *AccountService) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.resetURL, "?") {
		sep = "&"
	}
	return s.resetURL + sep + "token=" + url.QueryEscape(token)
}

// burnHash runs one password check against a throwaway hash, keeping login
// latency the same for unknown identifiers.
func (s *AccountService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("parceltrack-dummy-password")
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(s.dummyHash, password)
	}
}

func newVerificationCode() (string, error) {
	n, err := common.RandIntRange(100000, 999999)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}
