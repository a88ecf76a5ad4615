package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"agribank-quiz/internal/domain"
)

// TemplateStore persists quiz templates. Category counts are stored as JSONB.
type TemplateStore struct {
	pool *pgxpool.Pool
}

func NewTemplateStore(pool *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{pool: pool}
}

const templateColumns = `id, name, description, mode, time_limit, total_questions, categories, created_by, is_active, created_at, updated_at`

func (s *TemplateStore) GetTemplate(ctx context.Context, id string) (domain.QuizTemplate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM quiz_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizTemplate{}, domain.ErrTemplateNotFound
	}
	return t, err
}

// ListTemplates returns templates newest first.
func (s *TemplateStore) ListTemplates(ctx context.Context, activeOnly bool) ([]domain.QuizTemplate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM quiz_templates
WHERE is_active OR NOT $1 ORDER BY created_at DESC, id`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	templates := make([]domain.QuizTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// SaveTemplate inserts or replaces a template. created_at and created_by never change.
func (s *TemplateStore) SaveTemplate(ctx context.Context, t domain.QuizTemplate) error {
	categories := t.Categories
	if categories == nil {
		categories = map[string]int{}
	}
	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO quiz_templates (`+templateColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, mode = EXCLUDED.mode,
    time_limit = EXCLUDED.time_limit, total_questions = EXCLUDED.total_questions, categories = EXCLUDED.categories,
    is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`,
		t.ID, t.Name, t.Description, string(t.Mode), t.TimeLimitMinutes, t.TotalQuestions, string(raw),
		t.CreatedBy, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func scanTemplate(row pgx.Row) (domain.QuizTemplate, error) {
	var (
		t    domain.QuizTemplate
		mode string
		raw  []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &mode, &t.TimeLimitMinutes, &t.TotalQuestions, &raw,
		&t.CreatedBy, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QuizTemplate{}, err
		}
		return domain.QuizTemplate{}, fmt.Errorf("scan template: %w", err)
	}
	t.Mode = domain.Mode(mode)
	if err := json.Unmarshal(raw, &t.Categories); err != nil {
		return domain.QuizTemplate{}, fmt.Errorf("unmarshal categories of %s: %w", t.ID, err)
	}
	return t, nil
}
