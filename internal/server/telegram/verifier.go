package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

// DefaultMaxAge is the widget and initData freshness window.
const DefaultMaxAge = 24 * time.Hour

// Reasons a payload is rejected. Callers only ever see
// common.ErrTelegramAuthFailed; the reason is joined for logging.
var (
	errNotConfigured    = errors.New("bot token not configured")
	errMissingHash      = errors.New("missing hash")
	errBadSignature     = errors.New("signature mismatch")
	errMissingAuthDate  = errors.New("missing auth_date")
	errExpired          = errors.New("auth_date outside freshness window")
	errMalformedPayload = errors.New("malformed payload")
)

func fail(reason error) error {
	return fmt.Errorf("%w: %w", common.ErrTelegramAuthFailed, reason)
}

// Verifier checks Telegram signatures. It derives the secret from the bot
// token on every call and keeps no other state.
type Verifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{botToken: botToken, maxAge: maxAge, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// VerifyWidget checks a Login Widget payload and returns the profile it
// carries.
func (v *Verifier) VerifyWidget(p WidgetPayload) (models.TelegramProfile, error) {
	if v.botToken == "" {
		return models.TelegramProfile{}, fail(errNotConfigured)
	}
	if p.Hash == "" {
		return models.TelegramProfile{}, fail(errMissingHash)
	}
	if p.ID <= 0 {
		return models.TelegramProfile{}, fail(errMalformedPayload)
	}

	secret := cryptox.SHA256([]byte(v.botToken))
	mac := cryptox.HMACSHA256(secret, []byte(dataCheckString(p.fields())))
	if !cryptox.EqualHex(mac, p.Hash) {
		return models.TelegramProfile{}, fail(errBadSignature)
	}

	if err := v.checkFresh(p.AuthDate); err != nil {
		return models.TelegramProfile{}, fail(err)
	}

	return models.TelegramProfile{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Username:  p.Username,
		PhotoURL:  p.PhotoURL,
	}, nil
}

type initDataUser struct {
	ID        json.Number `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Username  string      `json:"username"`
	PhotoURL  string      `json:"photo_url"`
}

// VerifyInitData checks a Mini App initData query string. The data-check
// string is built from the still-encoded values; the user field is decoded
// only once the signature holds.
func (v *Verifier) VerifyInitData(raw string) (models.TelegramProfile, error) {
	if v.botToken == "" {
		return models.TelegramProfile{}, fail(errNotConfigured)
	}
	if strings.TrimSpace(raw) == "" {
		return models.TelegramProfile{}, fail(errMalformedPayload)
	}

	params := parseRaw(raw)
	hash := params["hash"]
	delete(params, "hash")
	if hash == "" {
		return models.TelegramProfile{}, fail(errMissingHash)
	}

	secret := cryptox.HMACSHA256([]byte("WebAppData"), []byte(v.botToken))
	mac := cryptox.HMACSHA256(secret, []byte(dataCheckString(params)))
	if !cryptox.EqualHex(mac, hash) {
		return models.TelegramProfile{}, fail(errBadSignature)
	}

	authDate, err := strconv.ParseInt(params["auth_date"], 10, 64)
	if err != nil {
		return models.TelegramProfile{}, fail(errMissingAuthDate)
	}
	if err := v.checkFresh(authDate); err != nil {
		return models.TelegramProfile{}, fail(err)
	}

	rawUser := params["user"]
	if rawUser == "" {
		return models.TelegramProfile{}, fail(errMalformedPayload)
	}
	decoded, err := url.QueryUnescape(rawUser)
	if err != nil {
		return models.TelegramProfile{}, fail(errMalformedPayload)
	}

	var u initDataUser
	dec := json.NewDecoder(strings.NewReader(decoded))
	dec.UseNumber()
	if err := dec.Decode(&u); err != nil {
		return models.TelegramProfile{}, fail(errMalformedPayload)
	}
	id, err := u.ID.Int64()
	if err != nil || id <= 0 {
		return models.TelegramProfile{}, fail(errMalformedPayload)
	}

	return models.TelegramProfile{
		ID:        id,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		PhotoURL:  u.PhotoURL,
	}, nil
}

func (v *Verifier) checkFresh(authDate int64) error {
	if authDate <= 0 {
		return errMissingAuthDate
	}
	age := v.now().Unix() - authDate
	if age > int64(v.maxAge/time.Second) {
		return errExpired
	}
	return nil
}

// parseRaw splits an initData string into its raw, still-encoded pairs.
// Pairs without a key are skipped.
func parseRaw(raw string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(raw, "&") {
		k, val, _ := strings.Cut(part, "=")
		if k == "" {
			continue
		}
		params[k] = val
	}
	return params
}
