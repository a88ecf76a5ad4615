package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"agribank-quiz/internal/quiz"
)

// SessionStore keeps live quiz sessions in process and mirrors their liveness
// to Redis so other instances and operators can see who is mid-quiz.
//
//	HSET quiz:session:{id} user {userID} mode {mode}
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*quiz.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*quiz.Session),
	}
}

func (s *SessionStore) Put(session *quiz.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	// best-effort liveness marker
	ctx := context.Background()
	key := s.key(session.ID())
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "user", session.UserID(), "mode", string(session.Config().Mode))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (s *SessionStore) Get(id string) (*quiz.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(id)).Err()
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
