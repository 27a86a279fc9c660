package mail

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"quizzy-service/internal/app"
)

func TestLogSenderLogsInsteadOfSending(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := NewLogSender(zap.New(core))

	err := sender.Send(context.Background(), app.Email{To: "ada@example.com", Subject: "Your OTP Code", Text: "code 123456"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["to"] != "ada@example.com" || fields["body"] != "code 123456" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestComposePrefersHTML(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: "465", Username: "bot@example.com", FromName: "Quizzy Team"})
	raw := string(s.compose(app.Email{To: "ada@example.com", Subject: "Your OTP Code", Text: "plain", HTML: "<p>html</p>"}))

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	if !ok {
		t.Fatalf("no header separator in %q", raw)
	}
	for _, want := range []string{
		"From: Quizzy Team <bot@example.com>",
		"To: ada@example.com",
		"Subject: Your OTP Code",
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="utf-8"`,
	} {
		if !strings.Contains(head, want) {
			t.Fatalf("missing header %q in %q", want, head)
		}
	}
	if body != "<p>html</p>" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestComposeEncodesNonASCIISubject(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "bot@example.com"})
	raw := string(s.compose(app.Email{To: "ada@example.com", Subject: "Código", Text: "plain"}))
	if !strings.Contains(raw, "Subject: =?utf-8?q?") {
		t.Fatalf("subject not encoded: %q", raw)
	}
	if !strings.Contains(raw, "From: bot@example.com\r\n") || !strings.Contains(raw, `text/plain; charset="utf-8"`) {
		t.Fatalf("unexpected plain message: %q", raw)
	}
}

func TestSMTPSendFailsWhenUnreachable(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: "1"})
	err := s.Send(context.Background(), app.Email{To: "ada@example.com", Subject: "x", Text: "y"})
	if err == nil || !strings.Contains(err.Error(), ErrSendFailed.Error()) {
		t.Fatalf("expected send failure, got %v", err)
	}
}
