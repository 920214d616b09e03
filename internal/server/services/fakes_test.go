package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/auth"
	"github.com/dmitrijs2005/parceltrack/internal/server/config"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/logintokens"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/users"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/verifications"
)

// --- helpers ---

const testSecret = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:               testSecret,
		SessionValidityDuration: time.Hour,
		TelegramBotToken:        "123456:TEST-TOKEN",
		FrontendURL:             "https://app.example.com",
		MiniAppLink:             "https://t.me/parcel_bot/app",
		ResetPasswordURL:        "https://app.example.com/reset-password",
	}
}

func testDeps(n *fakeNotifier) Deps {
	return Deps{
		Hasher:   cryptox.NewArgon2Hasher(cryptox.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}),
		Sessions: auth.NewIssuer([]byte(testSecret), time.Hour),
		Notifier: n,
		Logger:   logging.Nop{},
	}
}

// clock is a movable time source shared by a service under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeNotifier struct {
	mu      sync.Mutex
	err     error
	codes   map[string]string
	resetTo string
	link    string
}

func (n *fakeNotifier) SendVerificationCode(ctx context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = map[string]string{}
	}
	n.codes[to] = code
	return n.err
}

func (n *fakeNotifier) SendPasswordReset(ctx context.Context, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetTo, n.link = to, link
	return n.err
}

// memStore is an in-memory stand-in for the database behind all
// repositories. Every method holds the lock, which makes Consume atomic.
type memStore struct {
	mu     sync.Mutex
	seq    int
	users  map[string]models.User
	verifs map[string]models.Verification
	resets map[string]models.PasswordResetToken
	logins map[string]models.LoginToken

	// beforeCreate runs once, before the next user insert.
	beforeCreate func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]models.User{},
		verifs: map[string]models.Verification{},
		resets: map[string]models.PasswordResetToken{},
		logins: map[string]models.LoginToken{},
	}
}

func (s *memStore) insertUser(u models.User) models.User {
	s.seq++
	if u.ID == "" {
		u.ID = "u-" + strconv.Itoa(s.seq)
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) userBy(match func(u models.User) bool) (*models.User, error) {
	for _, u := range s.users {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if hook := r.s.beforeCreate; hook != nil {
		r.s.beforeCreate = nil
		hook(r.s)
	}
	for _, existing := range r.s.users {
		if existing.Identifier == u.Identifier {
			return nil, common.ErrorAlreadyExists
		}
		if u.TelegramID != nil && existing.TelegramID != nil && *existing.TelegramID == *u.TelegramID {
			return nil, common.ErrorAlreadyExists
		}
	}
	created := r.s.insertUser(*u)
	return &created, nil
}

func (r memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.userBy(func(u models.User) bool { return u.ID == id })
}

func (r memUsers) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.userBy(func(u models.User) bool { return u.Identifier == identifier })
}

func (r memUsers) GetByIdentifierForUpdate(ctx context.Context, identifier string) (*models.User, error) {
	return r.GetByIdentifier(ctx, identifier)
}

func (r memUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.userBy(func(u models.User) bool { return u.TelegramID != nil && *u.TelegramID == telegramID })
}

func (r memUsers) SetVerified(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.Verified = true
	r.s.users[userID] = u
	return nil
}

func (r memUsers) UpdatePassword(ctx context.Context, userID string, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	r.s.users[userID] = u
	return nil
}

type memVerifications struct{ s *memStore }

func (r memVerifications) Upsert(ctx context.Context, v *models.Verification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.verifs[v.UserID] = *v
	return nil
}

func (r memVerifications) Get(ctx context.Context, userID string) (*models.Verification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.verifs[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &v, nil
}

func (r memVerifications) Delete(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.verifs, userID)
	return nil
}

type memResetTokens struct{ s *memStore }

func (r memResetTokens) Upsert(ctx context.Context, t *models.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.resets[t.UserID] = *t
	return nil
}

func (r memResetTokens) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for userID, t := range r.s.resets {
		if t.TokenHash == tokenHash && t.ExpiresAt.After(now) {
			delete(r.s.resets, userID)
			return userID, nil
		}
	}
	return "", common.ErrorNotFound
}

type memLoginTokens struct{ s *memStore }

func (r memLoginTokens) Create(ctx context.Context, t *models.LoginToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.logins[t.Token]; ok {
		return common.ErrorAlreadyExists
	}
	r.s.logins[t.Token] = *t
	return nil
}

func (r memLoginTokens) Consume(ctx context.Context, token string, now time.Time) (*models.LoginToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.logins[token]
	if !ok || !t.ExpiresAt.After(now) {
		return nil, common.ErrorNotFound
	}
	delete(r.s.logins, token)
	return &t, nil
}

func (r memLoginTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, t := range r.s.logins {
		if !t.ExpiresAt.After(now) {
			delete(r.s.logins, k)
			n++
		}
	}
	return n, nil
}

type memRepoManager struct{ s *memStore }

func (m memRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m memRepoManager) Users(db dbx.DBTX) users.Repository {
	return memUsers{m.s}
}

func (m memRepoManager) Verifications(db dbx.DBTX) verifications.Repository {
	return memVerifications{m.s}
}

func (m memRepoManager) ResetTokens(db dbx.DBTX) resettokens.Repository {
	return memResetTokens{m.s}
}

func (m memRepoManager) LoginTokens(db dbx.DBTX) logintokens.Repository {
	return memLoginTokens{m.s}
}

// failingUsers fails every call with err.
type failingUsers struct{ err error }

func (f failingUsers) Create(context.Context, *models.User) (*models.User, error) {
	return nil, f.err
}

func (f failingUsers) GetByID(context.Context, string) (*models.User, error) {
	return nil, f.err
}

func (f failingUsers) GetByIdentifier(context.Context, string) (*models.User, error) {
	return nil, f.err
}

func (f failingUsers) GetByIdentifierForUpdate(context.Context, string) (*models.User, error) {
	return nil, f.err
}

func (f failingUsers) GetByTelegramID(context.Context, int64) (*models.User, error) {
	return nil, f.err
}

func (f failingUsers) SetVerified(context.Context, string) error {
	return f.err
}

func (f failingUsers) UpdatePassword(context.Context, string, string) error {
	return f.err
}

type brokenRepoManager struct{ memRepoManager }

func (m brokenRepoManager) Users(db dbx.DBTX) users.Repository {
	return failingUsers{err: errors.New("db error: connection reset")}
}
