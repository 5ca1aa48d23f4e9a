package notifier

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"portal-api/internal/domain/notification"
)

// SMTPConfig addresses the mail relay and the single recipient.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender mails notifications to a fixed address.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

// NewSMTPSender sends through net/smtp, upgrading to STARTTLS when offered.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, n notification.Notification) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	msg := buildMessage(s.cfg.From, s.cfg.To, n)

	// net/smtp has no context support; the send is abandoned, not aborted, on timeout.
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.sendMail(addr, auth, s.cfg.From, []string{s.cfg.To}, msg)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send mail via %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail via %s: %w", addr, ctx.Err())
	}
}

func buildMessage(from, to string, n notification.Notification) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", n.Subject) + "\r\n")
	b.WriteString("Date: " + n.OccurredAt.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("X-Portal-Event: " + string(n.Event) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(n.Text(), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
