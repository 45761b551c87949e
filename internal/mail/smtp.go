package mail

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/nhle/audit-mailer/internal/model"
)

// SMTPSender keeps one SMTP connection open for the whole run and redials
// lazily after a failure. A failed send is never retried on the same call,
// so a message the server may already have accepted is not sent twice.
type SMTPSender struct {
	dialer *gomail.Dialer
	conn   gomail.SendCloser
}

// NewSMTPSender creates a sender for the given server settings. Port 465
// implies implicit TLS; cfg.TLS forces it on other ports.
func NewSMTPSender(cfg model.SMTPConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.TLS {
		d.SSL = true
	}
	if cfg.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host} //nolint:gosec // opt-in for internal relays
	}
	return &SMTPSender{dialer: d}
}

// Send transmits msg over the shared connection.
func (s *SMTPSender) Send(ctx context.Context, msg *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.conn == nil {
		conn, err := s.dialer.Dial()
		if err != nil {
			return fmt.Errorf("dialing SMTP %s:%d: %w", s.dialer.Host, s.dialer.Port, err)
		}
		s.conn = conn
	}

	if err := gomail.Send(s.conn, msg); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		return fmt.Errorf("sending via SMTP %s: %w", s.dialer.Host, err)
	}

	return nil
}

// Close quits the SMTP session if one is open.
func (s *SMTPSender) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
