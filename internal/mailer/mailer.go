// Package mailer sends plain-text mail over SMTP, or only logs it when no
// SMTP host is configured.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/wneessen/go-mail"
)

// Message is one outbound plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Production refuses the log-only fallback.
	Production bool
}

// ErrNoSMTPHost is returned by New in production when no host is configured.
var ErrNoSMTPHost = errors.New("SMTP_HOST is required in production")

// SMTP sends mail through one server.
type SMTP struct {
	client *mail.Client
	from   string
}

// NewSMTP builds a sender for cfg. Authentication is only negotiated when a
// username is set.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return &SMTP{client: client, from: cfg.From}, nil
}

// Send dials the server and delivers msg.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

func buildMessage(from string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender returns a sender that only logs.
func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

// Send logs msg and never fails. Link paths are redacted so one-shot
// tokens never reach the log.
func (l *LogSender) Send(ctx context.Context, msg Message) error {
	l.log.InfoContext(ctx, "Mail not delivered (no SMTP host configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", RedactLinks(msg.Body),
	)
	return nil
}

// linkPath matches a URL up to its first path segment and captures the rest.
var linkPath = regexp.MustCompile(`(https?://[^/\s]+/[^/\s]+/)[^\s]+`)

// RedactLinks keeps the host and first path segment of every URL in text and
// replaces the remainder.
func RedactLinks(text string) string {
	return linkPath.ReplaceAllString(text, "${1}[redacted]")
}

// New returns an SMTP sender when cfg names a host, otherwise a LogSender.
func New(cfg SMTPConfig, log *slog.Logger) (Sender, error) {
	if cfg.Host == "" {
		if cfg.Production {
			return nil, ErrNoSMTPHost
		}
		return NewLogSender(log), nil
	}
	return NewSMTP(cfg)
}
