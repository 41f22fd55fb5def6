// ABOUTME: Email verification delivery behind a Sender interface
// ABOUTME: Builds deep links carrying the email-scope token for new accounts

package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// Sender delivers a single email. Implementations: SMTPSender for real
// delivery, LogSender when SMTP is disabled, fakes in tests.
type Sender interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

// Verifier sends account verification mails with a tokenized deep link
type Verifier struct {
	sender    Sender
	verifyURL string
	logger    *slog.Logger
}

// NewVerifier creates a verifier that appends tokens to verifyURL
func NewVerifier(sender Sender, verifyURL string) *Verifier {
	return &Verifier{
		sender:    sender,
		verifyURL: verifyURL,
		logger:    slog.Default().With("component", "mail"),
	}
}

// VerificationLink builds the deep link the user follows to verify
// their email address. The token is an email-scope token with a short
// TTL.
func (v *Verifier) VerificationLink(token string) string {
	return v.verifyURL + "?token=" + url.QueryEscape(token)
}

// SendVerification emails the verification link to a freshly registered
// user. Delivery failures are returned, not swallowed; registration
// handlers log them without failing the registration itself.
func (v *Verifier) SendVerification(ctx context.Context, toEmail, toName, token string) error {
	link := v.VerificationLink(token)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nConfirm your email address by opening the link below. The link expires shortly.\r\n\r\n%s\r\n",
		toName, link)

	if err := v.sender.Send(ctx, toEmail, toName, "Verify your email address", body); err != nil {
		return fmt.Errorf("sending verification mail: %w", err)
	}

	v.logger.Info("verification mail sent", "to", toEmail)
	return nil
}

// LogSender logs instead of delivering. Used when SMTP is disabled.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender() *LogSender {
	return &LogSender{logger: slog.Default().With("component", "mail")}
}

// Send logs the message metadata and succeeds
func (s *LogSender) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	s.logger.Info("mail delivery disabled, dropping message", "to", toEmail, "subject", subject)
	return nil
}
