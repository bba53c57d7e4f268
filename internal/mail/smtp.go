// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package mail delivers auth emails over SMTP or to the log.
package mail

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"

	"github.com/passgate/passgate/internal/auth"
)

// implicitTLSPort is the SMTPS port that needs TLS from the first byte.
const implicitTLSPort = 465

// SMTPConfig configures an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// sender is the part of *gomail.Client the mailer uses.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPMailer sends mail through an authenticated SMTP relay. A new
// connection is made per message and failures are not retried.
type SMTPMailer struct {
	client sender
	from   string
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for cfg. STARTTLS is mandatory except on
// port 465, which uses implicit TLS.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(cfg.Timeout),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// Send delivers msg with a plain text body and an HTML alternative.
func (m *SMTPMailer) Send(ctx context.Context, msg auth.Message) error {
	out, err := buildMessage(m.from, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "smtp send").Wrap(err)
	}
	return nil
}

func buildMessage(from string, msg auth.Message) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, oops.Code("MAIL_SEND_FAILED").With("operation", "set sender").Wrap(err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, oops.Code("MAIL_SEND_FAILED").With("operation", "set recipient").Wrap(err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return out, nil
}

// LogMailer writes messages to the log instead of sending them. It is meant
// for local development, where the reset code has to be read from the log.
type LogMailer struct {
	logger *slog.Logger
}

var _ auth.Mailer = (*LogMailer)(nil)

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default().
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg and never fails.
func (m *LogMailer) Send(ctx context.Context, msg auth.Message) error {
	m.logger.InfoContext(ctx, "mail delivery disabled, message logged",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
