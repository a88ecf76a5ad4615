package memory

import (
	"context"
	"sort"
	"sync"

	"agribank-quiz/internal/domain"
)

// TemplateStore keeps quiz templates in memory.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]domain.QuizTemplate
}

func NewTemplateStore(templates ...domain.QuizTemplate) *TemplateStore {
	s := &TemplateStore{templates: make(map[string]domain.QuizTemplate)}
	for _, t := range templates {
		s.templates[t.ID] = copyTemplate(t)
	}
	return s
}

func (s *TemplateStore) GetTemplate(_ context.Context, id string) (domain.QuizTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return domain.QuizTemplate{}, domain.ErrTemplateNotFound
	}
	return copyTemplate(t), nil
}

func (s *TemplateStore) ListTemplates(_ context.Context, activeOnly bool) ([]domain.QuizTemplate, error) {
	s.mu.RLock()
	out := make([]domain.QuizTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, copyTemplate(t))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *TemplateStore) SaveTemplate(_ context.Context, t domain.QuizTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = copyTemplate(t)
	return nil
}

func copyTemplate(t domain.QuizTemplate) domain.QuizTemplate {
	categories := make(map[string]int, len(t.Categories))
	for k, v := range t.Categories {
		categories[k] = v
	}
	t.Categories = categories
	return t
}
