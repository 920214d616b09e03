// Package models holds the server-side records persisted by the
// repositories.
package models

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
)

// User is the canonical account. Identifier is either an email address or
// the decimal Telegram id of a Telegram-born account. TelegramID is set for
// every account linked to Telegram, including email accounts that linked it
// later.
type User struct {
	ID           string
	Identifier   string
	PasswordHash string
	Role         string
	Verified     bool
	TelegramID   *int64
	Telegram     TelegramProfile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasTelegram reports whether the account is linked to a Telegram identity.
func (u *User) HasTelegram() bool {
	return u.TelegramID != nil
}

// IsTelegramOnly reports whether the account was created through Telegram
// and has no email identity.
func (u *User) IsTelegramOnly() bool {
	return u.HasTelegram() && !common.IsEmailIdentifier(u.Identifier)
}

// TelegramProfile is the optional profile Telegram supplies at login.
type TelegramProfile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	PhotoURL  string
}

// Identifier returns the canonical identifier of a Telegram-born account.
func (p TelegramProfile) Identifier() string {
	return strconv.FormatInt(p.ID, 10)
}
