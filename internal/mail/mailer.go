// Package mail sends transactional email over SMTP.
package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ybmbakes/bakery-backend/internal/config"
)

// Sender delivers one message. The worker tests substitute a fake.
type Sender interface {
	Send(msg Message) error
}

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer is the SMTP Sender.
type Mailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewMailer builds a Mailer from the SMTP settings.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
		auth: auth,
	}
}

// Send delivers the message.
func (m *Mailer) Send(msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Confirmation renders the order confirmation email.
func Confirmation(to, name, orderNumber string, totalCents int64) Message {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	body := fmt.Sprintf(
		"%s,\n\nThanks for your order! Your order number is %s.\n\nOrder total: $%.2f\n\nWe'll be in touch when your order is on its way.\n\nYBM Bakes\n",
		greeting, orderNumber, float64(totalCents)/100)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Order confirmation %s", orderNumber),
		Body:    body,
	}
}
