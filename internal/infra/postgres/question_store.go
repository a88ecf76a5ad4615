package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"agribank-quiz/internal/domain"
)

// QuestionStore keeps the question bank in the questions table. Options are JSONB.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

// ListQuestions returns the bank in insertion order.
func (s *QuestionStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, question, options, correct_answer, explanation, category FROM questions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Question, &raw, &q.CorrectAnswer, &q.Explanation, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AddQuestions inserts questions in one round trip. Existing IDs are overwritten.
func (s *QuestionStore) AddQuestions(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options of %s: %w", q.ID, err)
		}
		batch.Queue(`INSERT INTO questions (id, question, options, correct_answer, explanation, category)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET question = EXCLUDED.question, options = EXCLUDED.options,
    correct_answer = EXCLUDED.correct_answer, explanation = EXCLUDED.explanation, category = EXCLUDED.category`,
			q.ID, q.Question, string(options), q.CorrectAnswer, q.Explanation, q.Category)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range questions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return nil
}

func (s *QuestionStore) ClearQuestions(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	return nil
}
