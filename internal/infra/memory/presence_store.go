package memory

import (
	"context"
	"sync"
	"time"

	"agribank-quiz/internal/domain"
)

// PresenceStore tracks logged-in devices in memory, keyed by session ID.
type PresenceStore struct {
	mu       sync.Mutex
	sessions map[string]domain.ActiveSession
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{sessions: make(map[string]domain.ActiveSession)}
}

func (s *PresenceStore) Activate(_ context.Context, active domain.ActiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.sessions {
		if other.UserID == active.UserID && id != active.SessionID && other.IsActive {
			other.IsActive = false
			s.sessions[id] = other
		}
	}
	if existing, ok := s.sessions[active.SessionID]; ok {
		active.CreatedAt = existing.CreatedAt
	}
	active.IsActive = true
	s.sessions[active.SessionID] = active
	return nil
}

func (s *PresenceStore) IsActive(_ context.Context, userID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	return ok && session.UserID == userID && session.IsActive, nil
}

func (s *PresenceStore) Touch(_ context.Context, userID, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok && session.UserID == userID {
		session.LastActivity = at
		s.sessions[sessionID] = session
	}
	return nil
}

func (s *PresenceStore) Deactivate(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok && session.UserID == userID {
		session.IsActive = false
		s.sessions[sessionID] = session
	}
	return nil
}

// Session returns the stored record, for inspection.
func (s *PresenceStore) Session(sessionID string) (domain.ActiveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}
