package memory

import (
	"context"
	"sort"
	"sync"

	"agribank-quiz/internal/domain"
)

// UserStore keeps accounts in memory.
type UserStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.UserProfile
	email map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:  make(map[string]domain.UserProfile),
		email: make(map[string]string),
	}
}

func (s *UserStore) CreateUser(_ context.Context, u domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.email[u.Email]; taken {
		return domain.ErrUserExists
	}
	s.byID[u.ID] = u
	s.email[u.Email] = u.ID
	return nil
}

func (s *UserStore) GetUser(_ context.Context, id string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.email[email]
	if !ok {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *UserStore) ListUsers(context.Context) ([]domain.UserProfile, error) {
	s.mu.RLock()
	out := make([]domain.UserProfile, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (s *UserStore) UpdateUser(_ context.Context, u domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if old.Email != u.Email {
		delete(s.email, old.Email)
		s.email[u.Email] = u.ID
	}
	s.byID[u.ID] = u
	return nil
}

// DisplayName returns the user's full name, or "" when unknown. It fits NameLookup.
func (s *UserStore) DisplayName(ctx context.Context, userID string) string {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
