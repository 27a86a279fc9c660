package app

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quizzy-service/internal/domain"
)

// QuestionBank holds a read-only snapshot of the question set. The snapshot is
// replaced wholesale by Refresh; readers never see a partially loaded set.
type QuestionBank struct {
	source   QuestionSource
	snapshot atomic.Pointer[[]domain.Question]
	sf       singleflight.Group
	pick     func(n int) int
	logger   *zap.Logger
}

func NewQuestionBank(source QuestionSource, logger *zap.Logger) *QuestionBank {
	return &QuestionBank{
		source: source,
		pick:   rand.IntN,
		logger: logger,
	}
}

// Refresh fetches the set again. On failure the previous snapshot stays in place.
func (b *QuestionBank) Refresh(ctx context.Context) error {
	_, err, _ := b.sf.Do("questions", func() (interface{}, error) {
		questions, err := b.source.FetchQuestions(ctx)
		if err != nil {
			return nil, err
		}
		snapshot := make([]domain.Question, len(questions))
		copy(snapshot, questions)
		b.snapshot.Store(&snapshot)
		b.logger.Info("question set loaded", zap.Int("count", len(snapshot)))
		return nil, nil
	})
	return err
}

// Len is the number of questions currently served.
func (b *QuestionBank) Len() int {
	if s := b.snapshot.Load(); s != nil {
		return len(*s)
	}
	return 0
}

// Random returns one uniformly chosen question.
func (b *QuestionBank) Random() (domain.Question, error) {
	s := b.snapshot.Load()
	if s == nil || len(*s) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return (*s)[b.pick(len(*s))], nil
}

// RunRefresher refreshes every interval until ctx is done. Failures are logged and
// the next tick tries again.
func (b *QuestionBank) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Refresh(ctx); err != nil {
				b.logger.Warn("question refresh failed", zap.Error(err))
			}
		}
	}
}
