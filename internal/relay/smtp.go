package relay

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/Zachkp/folio/internal/contact"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

// SMTP sends submissions directly through an SMTP server.
type SMTP struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an SMTP relay.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.User == "" || cfg.Pass == "" {
		return nil, errors.New("SMTP credentials not configured")
	}
	if cfg.Host == "" || cfg.Port == "" || cfg.To == "" {
		return nil, errors.New("SMTP host, port and recipient are required")
	}
	return &SMTP{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Dispatch implements contact.Dispatcher. net/smtp has no context support,
// so the send keeps running in the background if ctx ends first.
func (s *SMTP) Dispatch(ctx context.Context, f contact.Fields) error {
	msg := s.compose(f)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(s.cfg.Host+":"+s.cfg.Port, auth, s.cfg.User, []string{s.cfg.To}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, "failed to send email")
		}
		zlog.Info().Str("from", f.Email).Msg("Email sent over SMTP")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "smtp send")
	}
}

func (s *SMTP) compose(f contact.Fields) []byte {
	subject := fmt.Sprintf("Portfolio Contact: %s", f.Subject)
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Subject: %s
Message:
%s

---
Sent from your portfolio contact form
`, f.Name, f.Email, f.Subject, f.Message)

	return []byte("To: " + s.cfg.To + "\r\n" +
		"Subject: " + sanitizeHeader(subject) + "\r\n" +
		"From: " + s.cfg.User + "\r\n" +
		"Reply-To: " + sanitizeHeader(f.Email) + "\r\n" +
		"\r\n" +
		body + "\r\n")
}

var headerBreaks = strings.NewReplacer("\r", "", "\n", "")

// sanitizeHeader drops CR and LF so form input cannot inject headers.
func sanitizeHeader(v string) string {
	return headerBreaks.Replace(v)
}
