package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/dmitrijs2005/parceltrack/internal/server/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type telegramFixture struct {
	svc   *TelegramAuthService
	store *memStore
	mock  sqlmock.Sqlmock
	clock *clock
}

func newTelegramFixture(t *testing.T) *telegramFixture {
	t.Helper()
	db, mock := newMockDB(t)
	store := newMemStore()
	c := &clock{t: testNow}
	cfg := testConfig()

	verifier := telegram.NewVerifier(cfg.TelegramBotToken, 24*time.Hour).WithClock(c.Now)
	svc := NewTelegramAuthService(db, memRepoManager{store}, cfg, verifier, testDeps(&fakeNotifier{}))
	svc.now = c.Now
	svc.broker.now = c.Now

	return &telegramFixture{svc: svc, store: store, mock: mock, clock: c}
}

func (f *telegramFixture) initData(user string) string {
	return telegram.SignInitData(f.svc.botToken, map[string]string{
		"auth_date": strconv.FormatInt(f.clock.Now().Unix(), 10),
		"user":      url.QueryEscape(user),
	})
}

func TestLoginInitData_CreatesOnceThenReturnsSameUser(t *testing.T) {
	f := newTelegramFixture(t)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	first, err := f.svc.LoginInitData(ctx, f.initData(`{"id":555,"first_name":"Ann"}`))
	require.NoError(t, err)
	assert.True(t, first.IsVerified)
	assert.NotEmpty(t, first.Token)
	assert.Equal(t, "555", first.Identifier)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	second, err := f.svc.LoginInitData(ctx, f.initData(`{"id":555,"first_name":"Annie","username":"annie"}`))
	require.NoError(t, err)
	assert.Equal(t, first.Identifier, second.Identifier)

	require.Len(t, f.store.users, 1)
	user, err := memUsers{f.store}.GetByTelegramID(ctx, 555)
	require.NoError(t, err)
	assert.True(t, user.Verified)
	assert.Equal(t, common.RoleUser, user.Role)
	assert.Equal(t, "Ann", user.Telegram.FirstName, "stored profile is not overwritten")
	assert.Empty(t, user.Telegram.Username)

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginInitData_RandomPasswordIsUnusable(t *testing.T) {
	f := newTelegramFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.svc.LoginInitData(context.Background(), f.initData(`{"id":9}`))
	require.NoError(t, err)

	user, _ := memUsers{f.store}.GetByTelegramID(context.Background(), 9)
	assert.NotEmpty(t, user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))
}

func TestLoginWidget(t *testing.T) {
	f := newTelegramFixture(t)
	ctx := context.Background()

	p := telegram.SignWidget(f.svc.botToken, telegram.WidgetPayload{
		ID:        42,
		FirstName: "Thomas",
		Username:  "neo",
		AuthDate:  f.clock.Now().Unix(),
	})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.LoginWidget(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Identifier)

	p.Username = "trinity"
	_, err = f.svc.LoginWidget(ctx, p)
	assert.ErrorIs(t, err, common.ErrTelegramAuthFailed)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginWidget_UnverifiedLinkedAccount(t *testing.T) {
	f := newTelegramFixture(t)
	f.store.insertUser(models.User{Identifier: "a@b.com", TelegramID: ptr(int64(42)), Role: common.RoleUser})

	p := telegram.SignWidget(f.svc.botToken, telegram.WidgetPayload{ID: 42, AuthDate: f.clock.Now().Unix()})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.LoginWidget(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.IsVerified)
	assert.Empty(t, res.Token)
	assert.Equal(t, "a@b.com", res.Identifier)
}

func TestLoginStartApp_SingleUse(t *testing.T) {
	f := newTelegramFixture(t)
	ctx := context.Background()

	link, err := f.svc.StartAppLink(ctx, models.TelegramProfile{ID: 77, FirstName: "Kate", Username: "kate"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "https://t.me/parcel_bot/app?startapp="))
	token := strings.TrimPrefix(link, "https://t.me/parcel_bot/app?startapp=")
	assert.GreaterOrEqual(t, len(token), 32)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.LoginStartApp(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "77", res.Identifier)

	user, _ := memUsers{f.store}.GetByTelegramID(ctx, 77)
	assert.Equal(t, "kate", user.Telegram.Username)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.LoginStartApp(ctx, token)
	assert.ErrorIs(t, err, common.ErrLoginTokenInvalid)

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginStartApp_Expired(t *testing.T) {
	f := newTelegramFixture(t)
	ctx := context.Background()

	link, err := f.svc.StartAppLink(ctx, models.TelegramProfile{ID: 77})
	require.NoError(t, err)
	token := link[strings.Index(link, "startapp=")+len("startapp="):]

	f.clock.Advance(StartAppTokenTTL)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.LoginStartApp(ctx, token)
	assert.ErrorIs(t, err, common.ErrLoginTokenInvalid)
}

func TestLoginStartApp_Blank(t *testing.T) {
	f := newTelegramFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.LoginStartApp(context.Background(), "  ")
	assert.ErrorIs(t, err, common.ErrLoginTokenInvalid)
}

func TestResolve_LoserOfCreateRaceGetsWinner(t *testing.T) {
	f := newTelegramFixture(t)
	f.store.beforeCreate = func(s *memStore) {
		s.insertUser(models.User{ID: "winner", Identifier: "555", Verified: true, TelegramID: ptr(int64(555)), Role: common.RoleUser})
	}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.LoginInitData(context.Background(), f.initData(`{"id":555}`))
	require.NoError(t, err)
	assert.Equal(t, "555", res.Identifier)
	assert.Len(t, f.store.users, 1)

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolve_PersistentConflictIsInternal(t *testing.T) {
	f := newTelegramFixture(t)
	// identifier taken by an account not linked to this Telegram id
	f.store.insertUser(models.User{Identifier: "555", Role: common.RoleUser})

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.LoginInitData(context.Background(), f.initData(`{"id":555}`))
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestStartAppBroker_ConcurrentRedeem(t *testing.T) {
	store := newMemStore()
	broker := NewStartAppBroker(memRepoManager{store})
	ctx := context.Background()

	token, err := broker.Issue(ctx, nil, models.TelegramProfile{ID: 1})
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := broker.Redeem(ctx, nil, token); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, common.ErrLoginTokenInvalid) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestStartAppBroker_IssueStoresTTL(t *testing.T) {
	store := newMemStore()
	broker := NewStartAppBroker(memRepoManager{store})
	broker.now = func() time.Time { return testNow }

	token, err := broker.Issue(context.Background(), nil, models.TelegramProfile{ID: 5, LastName: "Doe"})
	require.NoError(t, err)

	lt := store.logins[token]
	assert.Equal(t, testNow.Add(5*time.Minute), lt.ExpiresAt)
	assert.Equal(t, "Doe", lt.Profile.LastName)
}

func TestStartAppLink_PurgesExpiredTokens(t *testing.T) {
	f := newTelegramFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartAppLink(ctx, models.TelegramProfile{ID: 1})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.StartAppLink(ctx, models.TelegramProfile{ID: 2})
	require.NoError(t, err)
	require.Len(t, f.store.logins, 2)

	f.clock.Advance(StartAppTokenTTL - 30*time.Second)
	_, err = f.svc.StartAppLink(ctx, models.TelegramProfile{ID: 3})
	require.NoError(t, err)

	assert.Len(t, f.store.logins, 2, "the first token expired and is gone")
	for _, lt := range f.store.logins {
		assert.NotEqual(t, int64(1), lt.Profile.ID)
	}
}

func TestStartAppLink_Separator(t *testing.T) {
	assert.Equal(t, "https://t.me/bot/app?startapp=abc", StartAppLink("https://t.me/bot/app", "abc"))
	assert.Equal(t, "https://t.me/bot/app?mode=compact&startapp=abc", StartAppLink("https://t.me/bot/app?mode=compact", "abc"))
}

func TestLoginLink_IsAcceptedByWidgetLogin(t *testing.T) {
	f := newTelegramFixture(t)

	link := f.svc.LoginLink(models.TelegramProfile{ID: 31, FirstName: "Sam"})
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://app.example.com/telegram/callback?"))

	q := u.Query()
	id, _ := strconv.ParseInt(q.Get("id"), 10, 64)
	authDate, _ := strconv.ParseInt(q.Get("auth_date"), 10, 64)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.LoginWidget(context.Background(), telegram.WidgetPayload{
		ID: id, FirstName: q.Get("first_name"), AuthDate: authDate, Hash: q.Get("hash"),
	})
	require.NoError(t, err)
	assert.Equal(t, "31", res.Identifier)
}
