package memory

import (
	"context"

	"quizzy-service/internal/domain"
)

// StaticQuestionSource serves a fixed question set (useful for tests/demos).
type StaticQuestionSource struct {
	questions []domain.Question
}

func NewStaticQuestionSource(questions []domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{questions: questions}
}

func (s *StaticQuestionSource) FetchQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out, nil
}
