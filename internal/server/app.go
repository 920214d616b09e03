// Package server wires the parceltrack auth components together and runs
// the HTTP API, the gRPC endpoint and the optional Telegram bot until the
// process receives a termination signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dmitrijs2005/parceltrack/internal/cryptox"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/auth"
	"github.com/dmitrijs2005/parceltrack/internal/server/bot"
	"github.com/dmitrijs2005/parceltrack/internal/server/config"
	"github.com/dmitrijs2005/parceltrack/internal/server/notify"
	"github.com/dmitrijs2005/parceltrack/internal/server/ratelimit"
	"github.com/dmitrijs2005/parceltrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/parceltrack/internal/server/services"
	"github.com/dmitrijs2005/parceltrack/internal/server/telegram"

	gs "github.com/dmitrijs2005/parceltrack/internal/server/grpc"
	hs "github.com/dmitrijs2005/parceltrack/internal/server/http"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	issuer   *auth.Issuer
	accounts *services.AccountService
	telegram *services.TelegramAuthService
	limiter  hs.RateLimiter
	closers  []func() error
}

// NewLogger builds the logger selected by c.LogBackend.
func NewLogger(c *config.Config) (logging.Logger, func() error, error) {
	switch c.LogBackend {
	case "zap":
		zl, err := logging.BuildZap(logging.ZapOptions{Level: c.LogLevel, File: c.LogFile})
		if err != nil {
			return nil, nil, fmt.Errorf("zap init: %w", err)
		}
		l := logging.NewZapLogger(zl)
		return l, l.Sync, nil
	case "", "slog":
		return logging.NewJSONSlogLogger(os.Stdout, c.LogLevel), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", c.LogBackend)
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, syncLog, err := NewLogger(c)
	if err != nil {
		return nil, err
	}

	if len(c.SecretKey) < auth.MinSecretLen {
		return nil, auth.ErrSecretTooShort
	}

	app := &App{config: c, logger: logger}
	app.closers = append(app.closers, syncLog)

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("repository manager: %w", err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	notifier, err := app.newNotifier(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.issuer = auth.NewIssuer([]byte(c.SecretKey), c.SessionValidityDuration)

	deps := services.Deps{
		Hasher:   cryptox.NewArgon2Hasher(cryptox.DefaultArgon2Params),
		Sessions: app.issuer,
		Notifier: notifier,
		Logger:   logger,
	}

	app.accounts = services.NewAccountService(db, m, c, deps)
	verifier := telegram.NewVerifier(c.TelegramBotToken, c.TelegramAuthMaxAge)
	app.telegram = services.NewTelegramAuthService(db, m, c, verifier, deps)

	if c.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(ctx, c.RedisAddr)
		if err != nil {
			// mail endpoints stay usable without the limiter
			logger.Warn(ctx, "rate limiting disabled", "error", err)
		} else {
			app.closers = append(app.closers, client.Close)
			app.limiter = ratelimit.NewLimiter(client, c.RateLimitPerMinute, time.Minute)
		}
	}

	return app, nil
}

func (app *App) newNotifier(ctx context.Context) (*notify.Notifier, error) {
	c := app.config

	var mailer notify.Mailer
	if c.SMTPHost != "" {
		node, err := snowflake.NewNode(c.SnowflakeNode)
		if err != nil {
			return nil, fmt.Errorf("snowflake node: %w", err)
		}
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		}, node)
	} else {
		app.logger.Warn(ctx, "SMTP not configured, emails are written to the log")
		mailer = notify.NewLogMailer(app.logger)
	}

	var sources []notify.TemplateSource
	if c.S3Bucket != "" {
		src, err := notify.NewS3Source(ctx, notify.S3Config{
			Endpoint:  c.S3BaseEndpoint,
			Region:    c.S3Region,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
			Bucket:    c.S3Bucket,
			Prefix:    c.S3Prefix,
		})
		if err != nil {
			app.logger.Warn(ctx, "template bucket unavailable, using embedded templates", "error", err)
		} else {
			sources = append(sources, src)
		}
	}

	return notify.NewNotifier(mailer, notify.NewRenderer(sources...), app.logger), nil
}

// Close releases everything NewApp opened, in reverse order.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := hs.NewHandler(app.accounts, app.telegram, app.issuer, app.limiter, app.logger).
		WithTrustedProxies(app.config.TrustedProxies)
	s := hs.NewHTTPServer(app.config.HTTPAddr, app.logger, h)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.accounts, app.issuer)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startBot runs the bot; a bot that cannot connect does not stop the API.
func (app *App) startBot(ctx context.Context) {
	b, err := bot.New(app.config.TelegramBotToken, app.telegram, app.config.MiniAppLink != "", app.logger)
	if err != nil {
		app.logger.Error(ctx, "telegram bot disabled", "error", err)
		return
	}

	if err := b.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.TelegramBotPolling && app.config.TelegramBotToken != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startBot(ctx)
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
}
