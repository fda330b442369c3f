// Package mailer delivers digest messages over SMTP, or writes them out
// when no SMTP server is configured.
package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"feedsieve/internal/config"
	"feedsieve/internal/digest"
	"feedsieve/internal/version"
)

const sendTimeout = 30 * time.Second

// Build turns a digest message into a multipart/alternative mail with a
// plain-text body and an HTML alternative.
func Build(m digest.Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("from %q: %w", m.From, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("to %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetUserAgent(version.GetVersion())
	if m.ID != "" {
		msg.SetMessageIDWithValue(m.ID)
	} else {
		msg.SetMessageID()
	}
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}

// SMTP sends through a mail server.
type SMTP struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTP(cfg config.SMTPConfig, logger *slog.Logger) *SMTP {
	return &SMTP{cfg: cfg, logger: logger.With("component", "mailer")}
}

func (s *SMTP) options() []mail.Option {
	opts := []mail.Option{mail.WithTimeout(sendTimeout)}
	if s.cfg.Port != 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	switch strings.ToLower(s.cfg.TLS) {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case "ssl":
		opts = append(opts, mail.WithSSL())
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *SMTP) Send(ctx context.Context, m digest.Message) digest.SendResult {
	msg, err := Build(m)
	if err != nil {
		return digest.Failed(err)
	}
	client, err := mail.NewClient(s.cfg.Host, s.options()...)
	if err != nil {
		return digest.Failed(fmt.Errorf("smtp client: %w", err))
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Warn("smtp delivery failed", "host", s.cfg.Host, "error", err)
		return digest.Failed(fmt.Errorf("smtp send: %w", err))
	}
	return digest.Sent(m.ID)
}

// Writer writes each message as RFC 5322 text to w. It stands in for SMTP
// when none is configured.
type Writer struct {
	w      io.Writer
	logger *slog.Logger
}

func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	return &Writer{w: w, logger: logger.With("component", "mailer")}
}

func (w *Writer) Send(_ context.Context, m digest.Message) digest.SendResult {
	msg, err := Build(m)
	if err != nil {
		return digest.Failed(err)
	}
	if _, err := msg.WriteTo(w.w); err != nil {
		return digest.Failed(fmt.Errorf("write message: %w", err))
	}
	w.logger.Info("digest written instead of mailed", "to", m.To, "subject", m.Subject)
	return digest.Sent(m.ID)
}

// New picks SMTP when a host is configured and falls back to writing
// messages to fallback.
func New(cfg config.SMTPConfig, fallback io.Writer, logger *slog.Logger) digest.Sender {
	if cfg.Configured() {
		return NewSMTP(cfg, logger)
	}
	return NewWriter(fallback, logger)
}
