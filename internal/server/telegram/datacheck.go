// Package telegram verifies Telegram login payloads: the Login Widget
// callback and the Mini App initData string. It also signs widget payloads
// for links generated by our own bot.
package telegram

import (
	"sort"
	"strconv"
	"strings"
)

// WidgetPayload is the field set posted back by the Telegram Login Widget.
type WidgetPayload struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	PhotoURL  string
	AuthDate  int64
	Hash      string
}

// fields returns the signed fields of p. Blank optional fields are left out;
// id and auth_date are always present.
func (p WidgetPayload) fields() map[string]string {
	m := map[string]string{
		"id":        strconv.FormatInt(p.ID, 10),
		"auth_date": strconv.FormatInt(p.AuthDate, 10),
	}
	optional := map[string]string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"username":   p.Username,
		"photo_url":  p.PhotoURL,
	}
	for k, v := range optional {
		if strings.TrimSpace(v) != "" {
			m[k] = v
		}
	}
	return m
}

// dataCheckString serializes fields as sorted key=value lines joined by
// "\n", without a trailing newline.
func dataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}
