package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agribank-quiz/internal/domain"
)

// PresenceStore records logged-in devices in Redis:
//
//	HSET presence:session:{sessionID} user ... device ... ip ... active 0|1 last_activity ... created_at ...
//	SADD presence:user:{userID} {sessionID}
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceStore keeps records for ttl after their last activity. Zero keeps them forever.
func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

func (s *PresenceStore) Activate(ctx context.Context, active domain.ActiveSession) error {
	others, err := s.client.SMembers(ctx, s.userKey(active.UserID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range others {
		if id != active.SessionID {
			pipe.HSet(ctx, s.sessionKey(id), "active", "0")
		}
	}
	key := s.sessionKey(active.SessionID)
	pipe.HSetNX(ctx, key, "created_at", active.CreatedAt.UTC().Format(time.RFC3339Nano))
	pipe.HSet(ctx, key,
		"user", active.UserID,
		"device", active.DeviceInfo,
		"ip", active.IPAddress,
		"active", "1",
		"last_activity", active.LastActivity.UTC().Format(time.RFC3339Nano),
	)
	pipe.SAdd(ctx, s.userKey(active.UserID), active.SessionID)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, s.userKey(active.UserID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	return nil
}

func (s *PresenceStore) IsActive(ctx context.Context, userID, sessionID string) (bool, error) {
	fields, err := s.client.HMGet(ctx, s.sessionKey(sessionID), "user", "active").Result()
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	return fields[0] == userID && fields[1] == "1", nil
}

func (s *PresenceStore) Touch(ctx context.Context, userID, sessionID string, at time.Time) error {
	key := s.sessionKey(sessionID)
	owner, err := s.client.HGet(ctx, key, "user").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read session: %w", err)
	}
	if owner != userID {
		return nil
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_activity", at.UTC().Format(time.RFC3339Nano))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *PresenceStore) Deactivate(ctx context.Context, userID, sessionID string) error {
	key := s.sessionKey(sessionID)
	owner, err := s.client.HGet(ctx, key, "user").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read session: %w", err)
	}
	if owner != userID {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "active", "0")
	pipe.SRem(ctx, s.userKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

func (s *PresenceStore) sessionKey(id string) string {
	return "presence:session:" + id
}

func (s *PresenceStore) userKey(userID string) string {
	return "presence:user:" + userID
}
