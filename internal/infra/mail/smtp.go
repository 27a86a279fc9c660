package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"time"

	"quizzy-service/internal/app"
)

// SMTPConfig holds relay settings. Port 465 uses implicit TLS, any other port STARTTLS when offered.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg app.Email) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.Port == "465" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrSendFailed, addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer client.Close()

	if s.cfg.Port != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return fmt.Errorf("%w: starttls: %v", ErrSendFailed, err)
			}
		}
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("%w: auth: %v", ErrSendFailed, err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("%w: mail from: %v", ErrSendFailed, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("%w: rcpt: %v", ErrSendFailed, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%w: data: %v", ErrSendFailed, err)
	}
	if _, err := w.Write(s.compose(msg)); err != nil {
		return fmt.Errorf("%w: write: %v", ErrSendFailed, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: close data: %v", ErrSendFailed, err)
	}
	return client.Quit()
}

func (s *SMTPSender) compose(msg app.Email) []byte {
	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.From)
	}
	body := msg.HTML
	contentType := `text/html; charset="utf-8"`
	if body == "" {
		body = msg.Text
		contentType = `text/plain; charset="utf-8"`
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n\r\n", contentType)
	b.WriteString(body)
	return b.Bytes()
}
