// Package smtp delivers outreach emails over SMTP.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// Config holds the relay settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer implements ports.Mailer with net/smtp. Authentication is used
// only when a user is configured.
type Mailer struct {
	cfg  Config
	from *mail.Address
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// New validates the sender address and returns a Mailer.
func New(cfg Config) (*Mailer, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}
	return &Mailer{cfg: cfg, from: from, send: smtp.SendMail, now: time.Now}, nil
}

// Send delivers one email. net/smtp has no context support, so ctx is only
// checked before dialing.
func (m *Mailer) Send(ctx context.Context, email *domain.OutreachEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := mail.ParseAddress(email.To)
	if err != nil {
		return fmt.Errorf("parse recipient: %w", err)
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.from.Address, []string{to.Address}, m.message(to, email)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to.Address, err)
	}
	return nil
}

func (m *Mailer) message(to *mail.Address, email *domain.OutreachEmail) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.HTML)
	return b.Bytes()
}
