package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"quizzy-service/internal/app"
)

// PostmarkConfig holds API tokens and the sender address.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string
	Tag          string
}

type PostmarkSender struct {
	client *postmark.Client
	cfg    PostmarkConfig
}

func NewPostmarkSender(cfg PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, errors.New("mail: postmark server token is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail: sender address is required")
	}
	return &PostmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:    cfg,
	}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, msg app.Email) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.cfg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      s.cfg.Tag,
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
