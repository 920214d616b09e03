package models

import "time"

// PasswordResetToken is the live reset token of a user. Only the SHA-256 of
// the token is stored.
type PasswordResetToken struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}
