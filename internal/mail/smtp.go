// ABOUTME: SMTP implementation of the Sender interface
// ABOUTME: Plain-auth delivery using the configured relay

package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/hollowgrove/vaultgate/internal/config"
)

// SMTPSender delivers mail through a configured SMTP relay
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender creates a sender for the given SMTP configuration
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one message. The context governs nothing here: net/smtp
// has no context support, so the server config's timeouts bound delivery
// at the dialer level.
func (s *SMTPSender) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)

	msg := fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s <%s>\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		s.cfg.SenderName, s.cfg.SenderEmail, toName, toEmail, subject, body)

	if err := smtp.SendMail(addr, auth, s.cfg.SenderEmail, []string{toEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp delivery to %s: %w", toEmail, err)
	}
	return nil
}
