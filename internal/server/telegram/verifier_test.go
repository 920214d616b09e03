package telegram

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

var fixedNow = time.Unix(1_700_000_000, 0)

func newVerifier() *Verifier {
	return NewVerifier(botToken, DefaultMaxAge).WithClock(func() time.Time { return fixedNow })
}

func signedWidget(authDate int64) WidgetPayload {
	return SignWidget(botToken, WidgetPayload{
		ID:        42,
		FirstName: "Thomas",
		Username:  "neo",
		AuthDate:  authDate,
	})
}

func TestDataCheckString_SortedWithoutTrailingNewline(t *testing.T) {
	p := WidgetPayload{ID: 7, FirstName: "A", Username: "u", LastName: " ", AuthDate: 100}
	assert.Equal(t, "auth_date=100\nfirst_name=A\nid=7\nusername=u", dataCheckString(p.fields()))
}

func TestVerifyWidget_FreshnessBoundary(t *testing.T) {
	v := newVerifier()
	maxAge := int64(DefaultMaxAge / time.Second)

	profile, err := v.VerifyWidget(signedWidget(fixedNow.Unix() - maxAge))
	require.NoError(t, err, "age equal to the window is accepted")
	assert.Equal(t, int64(42), profile.ID)
	assert.Equal(t, "neo", profile.Username)

	_, err = v.VerifyWidget(signedWidget(fixedNow.Unix() - maxAge - 1))
	assert.ErrorIs(t, err, common.ErrTelegramAuthFailed)
	assert.ErrorIs(t, err, errExpired)
}

func TestVerifyWidget_TamperedFields(t *testing.T) {
	v := newVerifier()
	good := signedWidget(fixedNow.Unix())

	tamper := map[string]func(p *WidgetPayload){
		"id":         func(p *WidgetPayload) { p.ID = 43 },
		"first_name": func(p *WidgetPayload) { p.FirstName = "Tom" },
		"username":   func(p *WidgetPayload) { p.Username = "trinity" },
		"added":      func(p *WidgetPayload) { p.LastName = "Anderson" },
		"auth_date":  func(p *WidgetPayload) { p.AuthDate-- },
		"hash":       func(p *WidgetPayload) { p.Hash = strings.Repeat("0", 64) },
	}

	for name, mutate := range tamper {
		t.Run(name, func(t *testing.T) {
			p := good
			mutate(&p)
			_, err := v.VerifyWidget(p)
			assert.ErrorIs(t, err, common.ErrTelegramAuthFailed)
		})
	}
}

func TestVerifyWidget_UppercaseHash(t *testing.T) {
	p := signedWidget(fixedNow.Unix())
	p.Hash = strings.ToUpper(p.Hash)

	_, err := newVerifier().VerifyWidget(p)
	assert.NoError(t, err)
}

func TestVerifyWidget_MissingAuthDate(t *testing.T) {
	_, err := newVerifier().VerifyWidget(signedWidget(0))
	assert.ErrorIs(t, err, errMissingAuthDate)
}

func TestVerifyWidget_WrongBotToken(t *testing.T) {
	p := SignWidget("other-token", WidgetPayload{ID: 42, AuthDate: fixedNow.Unix()})
	_, err := newVerifier().VerifyWidget(p)
	assert.ErrorIs(t, err, errBadSignature)
}

func TestVerifyWidget_NotConfigured(t *testing.T) {
	_, err := NewVerifier("", 0).VerifyWidget(signedWidget(fixedNow.Unix()))
	assert.ErrorIs(t, err, common.ErrTelegramAuthFailed)
}

func initData(t *testing.T, user string, authDate int64) string {
	t.Helper()
	return SignInitData(botToken, map[string]string{
		"auth_date": strconv.FormatInt(authDate, 10),
		"query_id":  "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":      url.QueryEscape(user),
	})
}

func TestVerifyInitData_Success(t *testing.T) {
	raw := initData(t, `{"id":555,"first_name":"Ann","username":"ann_k"}`, fixedNow.Unix()-60)

	profile, err := newVerifier().VerifyInitData(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(555), profile.ID)
	assert.Equal(t, "Ann", profile.FirstName)
	assert.Equal(t, "ann_k", profile.Username)
}

func TestVerifyInitData_SignatureCoversRawValues(t *testing.T) {
	raw := initData(t, `{"id":555}`, fixedNow.Unix())

	// same JSON, different percent-encoding
	swapped := strings.Replace(raw, "%7B", "%7b", 1)
	require.NotEqual(t, raw, swapped)

	_, err := newVerifier().VerifyInitData(swapped)
	assert.ErrorIs(t, err, errBadSignature)
}

func TestVerifyInitData_Failures(t *testing.T) {
	v := newVerifier()
	stale := fixedNow.Unix() - int64(DefaultMaxAge/time.Second) - 1

	cases := map[string]struct {
		raw    string
		reason error
	}{
		"empty":        {"", errMalformedPayload},
		"no hash":      {"auth_date=1&user=%7B%7D", errMissingHash},
		"bad hash":     {"auth_date=1&user=%7B%7D&hash=abcd", errBadSignature},
		"expired":      {initData(t, `{"id":555}`, stale), errExpired},
		"no auth_date": {SignInitData(botToken, map[string]string{"user": url.QueryEscape(`{"id":1}`)}), errMissingAuthDate},
		"no user":      {SignInitData(botToken, map[string]string{"auth_date": strconv.FormatInt(fixedNow.Unix(), 10)}), errMalformedPayload},
		"bad json":     {initData(t, `{"id":`, fixedNow.Unix()), errMalformedPayload},
		"no id":        {initData(t, `{"first_name":"x"}`, fixedNow.Unix()), errMalformedPayload},
		"text id":      {initData(t, `{"id":"abc"}`, fixedNow.Unix()), errMalformedPayload},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.VerifyInitData(tc.raw)
			assert.ErrorIs(t, err, common.ErrTelegramAuthFailed)
			assert.ErrorIs(t, err, tc.reason)
		})
	}
}

func TestParseRaw_KeepsEncodingAndSplitsOnFirstEquals(t *testing.T) {
	got := parseRaw("a=1&b=x%3Dy=z&=skipped&c")
	assert.Equal(t, map[string]string{"a": "1", "b": "x%3Dy=z", "c": ""}, got)
}
