package notifications

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"otithi/pkg/kafka"
	"otithi/pkg/logger"
	"strings"
	"time"
)

type Email struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type SMTPMailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		addr: net.JoinHostPort(host, port),
		host: host,
		auth: smtp.PlainAuth("", username, password, host),
		from: from,
		send: smtp.SendMail,
	}
}

// Send classifies failures for the consumer: 5xx replies are permanent,
// anything else is retried.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return kafka.NewTransientError("mail cancelled", err)
	}

	err := m.send(m.addr, m.auth, m.from, []string{email.To}, m.compose(email))
	if err == nil {
		return nil
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 {
		return kafka.NewPermanentError("mail rejected", err).WithDetail("to", email.To)
	}
	return kafka.NewTransientError("mail delivery failed", err).WithDetail("to", email.To)
}

func (m *SMTPMailer) compose(email Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: Otithi <%s>\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(email.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer writes emails to the log. Used when SMTP is not configured.
type LogMailer struct {
	log *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.log.Info("Email (SMTP not configured)",
		"to", email.To,
		"subject", email.Subject,
		"body", email.Body,
	)
	return nil
}
