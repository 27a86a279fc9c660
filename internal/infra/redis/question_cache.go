package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
)

const questionsKey = "quiz:questions"

// QuestionCache keeps the last fetched question set in Redis so that restarts and
// sibling instances do not all hit the content provider.
// The set is stored as one JSON array: SET quiz:questions [...] EX ttl
type QuestionCache struct {
	client *redis.Client
	source app.QuestionSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionCache(client *redis.Client, source app.QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{client: client, source: source, ttl: ttl}
}

func (c *QuestionCache) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(ctx); ok {
			return questions, nil
		}
		questions, err := c.source.FetchQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if len(questions) > 0 {
			if raw, err := json.Marshal(questions); err == nil {
				_ = c.client.Set(ctx, questionsKey, raw, c.ttlWithJitter()).Err()
			}
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached set so the next fetch goes to the provider.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, questionsKey).Err()
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, questionsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

// isMiss reports whether err is the plain "key does not exist" reply.
func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
