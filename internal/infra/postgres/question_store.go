package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizzy-service/internal/domain"
)

// QuestionStore keeps a copy of the question set as JSONB rows. It serves as a
// question source when the external provider is not configured.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, domain.Question(append([]byte(nil), raw...)))
	}
	return questions, rows.Err()
}

// ReplaceAll swaps the stored set for questions in one transaction.
func (s *QuestionStore) ReplaceAll(ctx context.Context, questions []domain.Question) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		for _, q := range questions {
			if _, err := tx.Exec(ctx, `INSERT INTO questions (data) VALUES ($1::jsonb)`, string(q)); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
		}
		return nil
	})
}
