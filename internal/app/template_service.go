package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/quiz"
)

// TemplateError lists why a template cannot be served by the current bank.
type TemplateError struct {
	Reason    string
	Shortfall []quiz.Shortfall
}

func (e *TemplateError) Error() string {
	if len(e.Shortfall) == 0 {
		return fmt.Sprintf("%v: %s", domain.ErrInvalidTemplate, e.Reason)
	}
	parts := make([]string, 0, len(e.Shortfall))
	for _, s := range e.Shortfall {
		if s.Category == "" {
			parts = append(parts, fmt.Sprintf("%s (%d > %d)", s.Reason, s.Requested, s.Available))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%d requested, %d available)", s.Category, s.Reason, s.Requested, s.Available))
	}
	return fmt.Sprintf("%v: %s", domain.ErrInvalidTemplate, strings.Join(parts, "; "))
}

func (e *TemplateError) Unwrap() error {
	return domain.ErrInvalidTemplate
}

// TemplateService manages quiz templates.
type TemplateService struct {
	templates TemplateRepository
	questions QuestionRepository
	now       func() time.Time
}

func NewTemplateService(templates TemplateRepository, questions QuestionRepository) *TemplateService {
	return &TemplateService{templates: templates, questions: questions, now: time.Now}
}

// List returns templates, newest first. Players only see active ones.
func (s *TemplateService) List(ctx context.Context, activeOnly bool) ([]domain.QuizTemplate, error) {
	return s.templates.ListTemplates(ctx, activeOnly)
}

func (s *TemplateService) Get(ctx context.Context, id string) (domain.QuizTemplate, error) {
	return s.templates.GetTemplate(ctx, id)
}

// Create validates t against the question bank and stores it as active.
func (s *TemplateService) Create(ctx context.Context, t domain.QuizTemplate, createdBy string) (domain.QuizTemplate, error) {
	if err := s.validate(ctx, t); err != nil {
		return domain.QuizTemplate{}, err
	}
	now := s.now()
	t.ID = uuid.NewString()
	t.CreatedBy = createdBy
	t.IsActive = true
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.templates.SaveTemplate(ctx, t); err != nil {
		return domain.QuizTemplate{}, fmt.Errorf("save template: %w", err)
	}
	log.Printf("templates: %s created %q (%s)", createdBy, t.Name, t.ID)
	return t, nil
}

// Update replaces the editable fields of an existing template.
func (s *TemplateService) Update(ctx context.Context, t domain.QuizTemplate) (domain.QuizTemplate, error) {
	existing, err := s.templates.GetTemplate(ctx, t.ID)
	if err != nil {
		return domain.QuizTemplate{}, err
	}
	if err := s.validate(ctx, t); err != nil {
		return domain.QuizTemplate{}, err
	}
	existing.Name = t.Name
	existing.Description = t.Description
	existing.Mode = t.Mode
	existing.TimeLimitMinutes = t.TimeLimitMinutes
	existing.TotalQuestions = t.TotalQuestions
	existing.Categories = t.Categories
	existing.IsActive = t.IsActive
	existing.UpdatedAt = s.now()
	if err := s.templates.SaveTemplate(ctx, existing); err != nil {
		return domain.QuizTemplate{}, fmt.Errorf("save template: %w", err)
	}
	return existing, nil
}

// Delete hides a template from players. The record is kept for history.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	t, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	t.IsActive = false
	t.UpdatedAt = s.now()
	if err := s.templates.SaveTemplate(ctx, t); err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	log.Printf("templates: deactivated %s", id)
	return nil
}

func (s *TemplateService) validate(ctx context.Context, t domain.QuizTemplate) error {
	switch {
	case strings.TrimSpace(t.Name) == "":
		return &TemplateError{Reason: "name is required"}
	case !t.Mode.Valid():
		return &TemplateError{Reason: fmt.Sprintf("unknown mode %q", t.Mode)}
	case t.TimeLimitMinutes <= 0:
		return &TemplateError{Reason: "time limit must be positive"}
	case t.TotalQuestions <= 0:
		return &TemplateError{Reason: "total questions must be positive"}
	}
	for name, n := range t.Categories {
		if n < 0 {
			return &TemplateError{Reason: fmt.Sprintf("negative count for %q", name)}
		}
	}

	pool, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if problems := quiz.CheckAvailability(pool, t.Config()); len(problems) > 0 {
		return &TemplateError{Shortfall: problems}
	}
	return nil
}
