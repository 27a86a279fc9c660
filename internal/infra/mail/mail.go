package mail

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"quizzy-service/internal/app"
)

// ErrSendFailed wraps every delivery failure.
var ErrSendFailed = errors.New("mail: send failed")

// LogSender writes messages to the log instead of delivering them. Used in development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg app.Email) error {
	s.logger.Info("mail not delivered (log driver)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
