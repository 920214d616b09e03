// Package bot runs the Telegram bot that hands out login links: a Mini App
// deep link with a one-time startapp token and a signed Login Widget
// callback link.
package bot

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	helpText = "Use /app to open the parcel tracker inside Telegram or /login to sign in on the website."

	pollTimeout = 30
)

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// LinkIssuer builds login links for a Telegram user.
type LinkIssuer interface {
	StartAppLink(ctx context.Context, profile models.TelegramProfile) (string, error)
	LoginLink(profile models.TelegramProfile) string
}

type Bot struct {
	api     botAPI
	links   LinkIssuer
	miniApp bool
	logger  logging.Logger
}

// New connects to the Bot API with token. miniApp enables the /app command;
// without a Mini App link configured only /login is offered.
func New(token string, links LinkIssuer, miniApp bool, logger logging.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	return newBot(api, links, miniApp, logger), nil
}

func newBot(api botAPI, links LinkIssuer, miniApp bool, logger logging.Logger) *Bot {
	return &Bot{api: api, links: links, miniApp: miniApp, logger: logger.With("module", "telegram_bot")}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info(ctx, "Starting Telegram bot")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info(ctx, "Stopping Telegram bot...")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return
	}

	profile := models.TelegramProfile{
		ID:        msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.UserName,
	}

	var reply tgbotapi.MessageConfig
	switch msg.Command() {
	case "start", "app":
		if !b.miniApp {
			reply = b.loginReply(msg.Chat.ID, profile)
			break
		}
		link, err := b.links.StartAppLink(ctx, profile)
		if err != nil {
			b.logger.Error(ctx, "startapp link", "telegram_id", profile.ID, "error", err)
			reply = tgbotapi.NewMessage(msg.Chat.ID, "Sorry, something went wrong. Please try again later.")
			break
		}
		reply = tgbotapi.NewMessage(msg.Chat.ID, "Tap the button to open the app. The link works once and expires in 5 minutes.")
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Open app", link)),
		)
	case "login":
		reply = b.loginReply(msg.Chat.ID, profile)
	default:
		reply = tgbotapi.NewMessage(msg.Chat.ID, helpText)
	}

	if _, err := b.api.Send(reply); err != nil {
		b.logger.Warn(ctx, "send reply", "telegram_id", profile.ID, "error", err)
	}
}

func (b *Bot) loginReply(chatID int64, profile models.TelegramProfile) tgbotapi.MessageConfig {
	reply := tgbotapi.NewMessage(chatID, "Tap the button to sign in on the website.")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Log in", b.links.LoginLink(profile))),
	)
	return reply
}
