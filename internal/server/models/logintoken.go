package models

import "time"

// LoginToken is a one-time startapp token issued by the bot. It carries the
// Telegram profile of the user the token was issued to.
type LoginToken struct {
	Token     string
	Profile   TelegramProfile
	ExpiresAt time.Time
	CreatedAt time.Time
}
