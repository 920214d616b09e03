// Package common defines the error taxonomy and small helpers shared by the
// parceltrack server packages. Callers should use errors.Is / errors.As to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Categories surfaced to callers.
	ErrorValidation         = errors.New("validation error")
	ErrorConflict           = errors.New("conflict")
	ErrorUnauthorized       = errors.New("unauthorized")
	ErrorServiceUnavailable = errors.New("service unavailable")
	ErrorInternal           = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Error is a categorized error with a message that is safe to show to the
// client. Unwrap returns the category, so errors.Is(err, ErrorConflict)
// matches every conflict regardless of its message.
type Error struct {
	Kind    error
	Message string
}

// NewError builds a categorized error.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Account lifecycle errors.
var (
	ErrUserExists         = NewError(ErrorConflict, "user with this identifier already exists")
	ErrInvalidEmail       = NewError(ErrorValidation, "a valid email address is required")
	ErrUserNotFound       = NewError(ErrorNotFound, "user not found")
	ErrAlreadyVerified    = NewError(ErrorConflict, "account is already verified")
	ErrCodeExpired        = NewError(ErrorValidation, "verification code has expired")
	ErrInvalidCode        = NewError(ErrorValidation, "invalid verification code")
	ErrPasswordsMismatch  = NewError(ErrorValidation, "passwords do not match")
	ErrResetEmailOnly     = NewError(ErrorValidation, "password reset is only available for users registered with email")
	ErrResetTelegramUser  = NewError(ErrorValidation, "password reset is not available for telegram users")
	ErrChangeTelegramUser = NewError(ErrorValidation, "password change is not available for telegram users")
	ErrWrongPassword      = NewError(ErrorValidation, "current password is incorrect")
	ErrResetTokenInvalid  = NewError(ErrorNotFound, "invalid or expired reset token")
	ErrInvalidCredentials = NewError(ErrorUnauthorized, "invalid credentials")
	ErrTelegramAuthFailed = NewError(ErrorUnauthorized, "invalid or expired telegram authentication")
	ErrLoginTokenInvalid  = NewError(ErrorUnauthorized, "invalid or expired login token")
	ErrNotificationFailed = NewError(ErrorServiceUnavailable, "failed to send email, please retry")
	ErrSigningFailed      = NewError(ErrorInternal, "internal error")
	ErrInternal           = NewError(ErrorInternal, "internal error")
)
