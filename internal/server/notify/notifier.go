package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/parceltrack/internal/logging"
)

const (
	verificationSubject = "Account Verification"
	resetSubject        = "Password Reset"
)

// Notifier renders account emails and hands them to a Mailer.
type Notifier struct {
	mailer   Mailer
	renderer *Renderer
	logger   logging.Logger
}

func NewNotifier(mailer Mailer, renderer *Renderer, logger logging.Logger) *Notifier {
	return &Notifier{mailer: mailer, renderer: renderer, logger: logger.With("module", "notify")}
}

func (n *Notifier) SendVerificationCode(ctx context.Context, to, code string) error {
	body, err := n.renderer.Render(ctx, VerificationTemplate, struct{ Code string }{Code: code})
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}
	return n.send(ctx, to, verificationSubject, body)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	body, err := n.renderer.Render(ctx, ResetPasswordTemplate, struct{ ResetLink string }{ResetLink: resetLink})
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	return n.send(ctx, to, resetSubject, body)
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) error {
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		return err
	}
	n.logger.Info(ctx, "email sent", "to", to, "subject", subject)
	return nil
}
