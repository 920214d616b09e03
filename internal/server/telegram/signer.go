package telegram

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

// SignWidget fills in p.Hash the way the Login Widget would, using the
// widget secret derived from botToken.
func SignWidget(botToken string, p WidgetPayload) WidgetPayload {
	secret := cryptox.SHA256([]byte(botToken))
	p.Hash = hex.EncodeToString(cryptox.HMACSHA256(secret, []byte(dataCheckString(p.fields()))))
	return p
}

// SignInitData builds a signed initData string from raw, already-encoded
// pairs. Used by tests and local tooling.
func SignInitData(botToken string, pairs map[string]string) string {
	secret := cryptox.HMACSHA256([]byte("WebAppData"), []byte(botToken))
	hash := hex.EncodeToString(cryptox.HMACSHA256(secret, []byte(dataCheckString(pairs))))

	parts := make([]string, 0, len(pairs)+1)
	for k, v := range pairs {
		parts = append(parts, k+"="+v)
	}
	parts = append(parts, "hash="+hash)
	return strings.Join(parts, "&")
}

// LoginLink returns the frontend callback URL carrying a signed widget
// payload for profile, issued at authDate.
func LoginLink(frontendURL, botToken string, profile models.TelegramProfile, authDate int64) string {
	p := SignWidget(botToken, WidgetPayload{
		ID:        profile.ID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Username:  profile.Username,
		PhotoURL:  profile.PhotoURL,
		AuthDate:  authDate,
	})

	q := url.Values{}
	q.Set("id", strconv.FormatInt(p.ID, 10))
	q.Set("auth_date", strconv.FormatInt(p.AuthDate, 10))
	q.Set("hash", p.Hash)
	for k, v := range map[string]string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"username":   p.Username,
		"photo_url":  p.PhotoURL,
	} {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}

	return strings.TrimRight(frontendURL, "/") + "/telegram/callback?" + q.Encode()
}
