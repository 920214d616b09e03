package http

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/dmitrijs2005/parceltrack/internal/server/services"
	"github.com/dmitrijs2005/parceltrack/internal/server/telegram"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// AccountAPI is the email account lifecycle.
type AccountAPI interface {
	Register(ctx context.Context, identifier, password string) (string, error)
	Login(ctx context.Context, identifier, password string) (*services.LoginResult, error)
	Verify(ctx context.Context, identifier, code string) error
	Resend(ctx context.Context, identifier string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
	ChangePassword(ctx context.Context, identifier, current, password, confirm string) error
	Me(ctx context.Context, identifier string) (*models.User, error)
}

// TelegramAPI is the set of Telegram login flows.
type TelegramAPI interface {
	LoginWidget(ctx context.Context, p telegram.WidgetPayload) (*services.LoginResult, error)
	LoginInitData(ctx context.Context, initData string) (*services.LoginResult, error)
	LoginStartApp(ctx context.Context, token string) (*services.LoginResult, error)
}

type Handler struct {
	accounts AccountAPI
	telegram TelegramAPI
	tokens   TokenParser
	limiter  RateLimiter
	validate *validator.Validate
	logger   logging.Logger

	trustedProxies []string
}

// NewHandler wires the API. limiter may be nil to disable rate limiting.
func NewHandler(accounts AccountAPI, tg TelegramAPI, tokens TokenParser, limiter RateLimiter, logger logging.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		telegram: tg,
		tokens:   tokens,
		limiter:  limiter,
		validate: newValidator(),
		logger:   logger.With("module", "http_handler"),
	}
}

// WithTrustedProxies sets the proxies whose X-Forwarded-For is believed
// when resolving the client IP. With none, only the peer address counts.
func (h *Handler) WithTrustedProxies(proxies []string) *Handler {
	h.trustedProxies = proxies
	return h
}

// Routes builds the gin engine.
func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(h.trustedProxies); err != nil {
		h.logger.Warn(context.Background(), "invalid trusted proxies, forwarded headers ignored",
			"proxies", h.trustedProxies, "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(requestID(), recovery(h.logger), accessLog(h.logger))

	r.GET("/health", h.health)

	api := r.Group("/api/v1/auth")
	api.POST("/register", rateLimit(h.limiter, "register", h.logger), h.register)
	api.POST("/login", h.login)
	api.POST("/telegram", h.telegramWidget)
	api.POST("/telegram/init", h.telegramInitData)
	api.POST("/telegram/startapp", h.telegramStartApp)
	api.POST("/verify", h.verify)
	api.POST("/resend", rateLimit(h.limiter, "resend", h.logger), h.resend)
	api.POST("/forgot-password", rateLimit(h.limiter, "forgot-password", h.logger), h.forgotPassword)
	api.POST("/reset-password", h.resetPassword)

	secured := api.Group("", bearer(h.tokens))
	secured.POST("/change-password", h.changePassword)
	secured.GET("/me", h.me)

	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// bindJSON decodes and validates the body into dst. On failure it writes
// the error response and returns false.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWith(c, http.StatusBadRequest, codeRequestValidation, "Malformed request body", nil)
		return false
	}
	return h.check(c, dst)
}

func (h *Handler) check(c *gin.Context, dst any) bool {
	fields, err := fieldErrors(h.validate, dst)
	if err != nil {
		h.logger.Error(c.Request.Context(), "validation setup", "error", err)
		abortWithError(c, err)
		return false
	}
	if fields != nil {
		abortWith(c, http.StatusBadRequest, codeRequestValidation, "Validation failed", fields)
		return false
	}
	return true
}

func (h *Handler) register(c *gin.Context) {
	var req authRequest
	if !h.bindJSON(c, &req) {
		return
	}

	msg, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.String(http.StatusCreated, msg)
}

func (h *Handler) login(c *gin.Context) {
	var req authRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(res))
}

func (h *Handler) telegramWidget(c *gin.Context) {
	var req telegramWidgetRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.telegram.LoginWidget(c.Request.Context(), telegram.WidgetPayload{
		ID:        *req.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		PhotoURL:  req.PhotoURL,
		AuthDate:  *req.AuthDate,
		Hash:      req.Hash,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(res))
}

func (h *Handler) telegramInitData(c *gin.Context) {
	var req telegramInitDataRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.telegram.LoginInitData(c.Request.Context(), req.InitData)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(res))
}

func (h *Handler) telegramStartApp(c *gin.Context) {
	var req telegramStartAppRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.telegram.LoginStartApp(c.Request.Context(), req.Token)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(res))
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.accounts.Verify(c.Request.Context(), req.Email, req.VerificationCode); err != nil {
		abortWithError(c, err)
		return
	}

	c.String(http.StatusOK, "Account verified successfully")
}

func (h *Handler) resend(c *gin.Context) {
	var q resendQuery
	_ = c.ShouldBindQuery(&q)
	if !h.check(c, &q) {
		return
	}

	if err := h.accounts.Resend(c.Request.Context(), q.EmailOrTelegramID); err != nil {
		abortWithError(c, err)
		return
	}

	c.String(http.StatusOK, "Verification code sent")
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, err)
		return
	}

	c.String(http.StatusOK, "Password reset email sent")
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		abortWithError(c, err)
		return
	}

	c.String(http.StatusOK, "Password reset successfully")
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	identifier := claimsFrom(c).Identifier
	if err := h.accounts.ChangePassword(c.Request.Context(), identifier, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		abortWithError(c, err)
		return
	}

	c.String(http.StatusOK, "Password changed successfully")
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.accounts.Me(c.Request.Context(), claimsFrom(c).Identifier)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{
		ID:               user.ID,
		Identifier:       user.Identifier,
		Role:             user.Role,
		Verified:         user.Verified,
		TelegramID:       user.TelegramID,
		TelegramUsername: user.Telegram.Username,
		FirstName:        user.Telegram.FirstName,
		LastName:         user.Telegram.LastName,
		PhotoURL:         user.Telegram.PhotoURL,
	})
}
