package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizzy-service/internal/domain"
	"quizzy-service/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	source := &countingSource{StaticQuestionSource: memory.NewStaticQuestionSource(sampleQuestions())}
	cache := NewQuestionCache(client, source, time.Minute)

	questions, err := cache.FetchQuestions(context.Background())
	if err != nil {
		t.Fatalf("fetch questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}
	if !mr.Exists(questionsKey) {
		t.Fatalf("expected %s to be set", questionsKey)
	}

	// Second call should hit cache, source not incremented.
	again, err := cache.FetchQuestions(context.Background())
	if err != nil {
		t.Fatalf("fetch questions again: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
	if string(again[0]) != string(questions[0]) {
		t.Fatalf("cached question differs: %s vs %s", again[0], questions[0])
	}

	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.FetchQuestions(context.Background()); err != nil {
		t.Fatalf("fetch after invalidate: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected source hit after invalidate, calls=%d", source.calls)
	}
}

func TestQuestionCacheSkipsEmptySet(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewQuestionCache(newClient(mr), memory.NewStaticQuestionSource(nil), time.Minute)
	if _, err := cache.FetchQuestions(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if mr.Exists(questionsKey) {
		t.Fatalf("empty set must not be cached")
	}
}

type countingSource struct {
	*memory.StaticQuestionSource
	calls int
}

func (s *countingSource) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	s.calls++
	return s.StaticQuestionSource.FetchQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		domain.Question(`{"question":"What is 2 + 2?","answer":"4"}`),
		domain.Question(`{"question":"Capital of France?","answer":"Paris"}`),
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
