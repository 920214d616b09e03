// Package notify sends the account emails: verification codes and password
// reset links. Bodies are rendered from HTML templates that ship with the
// binary and may be overridden from an S3 bucket.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
)

// Mailer delivers a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendMail is a seam for tests.
var sendMail = smtp.SendMail

// SMTPMailer sends mail through an SMTP relay using PLAIN auth when a
// username is configured.
type SMTPMailer struct {
	cfg  SMTPConfig
	ids  *snowflake.Node
	now  func() time.Time
	auth smtp.Auth
}

func NewSMTPMailer(cfg SMTPConfig, ids *snowflake.Node) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, ids: ids, now: time.Now}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	msg := m.compose(to, subject, html)
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := sendMail(addr, m.auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	return nil
}

func (m *SMTPMailer) compose(to, subject, html string) []byte {
	headers := [][2]string{
		{"From", m.cfg.From},
		{"To", to},
		{"Subject", subject},
		{"Date", m.now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", m.ids.Generate().String(), m.cfg.Host)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// LogMailer writes emails to the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mailer")}
}

// Send logs the envelope at info level. The body carries codes and reset
// links, so it only goes out at debug level.
func (m *LogMailer) Send(ctx context.Context, to, subject, html string) error {
	m.logger.Info(ctx, "email not sent, no smtp host configured", "to", to, "subject", subject)
	m.logger.Debug(ctx, "unsent email body", "to", to, "body", html)
	return nil
}
