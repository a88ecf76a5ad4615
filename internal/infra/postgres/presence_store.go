package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"agribank-quiz/internal/domain"
)

// PresenceStore tracks logged-in devices in active_sessions.
type PresenceStore struct {
	pool *pgxpool.Pool
}

func NewPresenceStore(pool *pgxpool.Pool) *PresenceStore {
	return &PresenceStore{pool: pool}
}

// Activate deactivates the user's other sessions and upserts this one in a single transaction.
func (s *PresenceStore) Activate(ctx context.Context, active domain.ActiveSession) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE active_sessions SET is_active = FALSE
WHERE user_id = $1 AND session_id <> $2 AND is_active`, active.UserID, active.SessionID); err != nil {
			return fmt.Errorf("deactivate other sessions: %w", err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO active_sessions (session_id, user_id, device_info, ip_address, is_active, last_activity, created_at)
VALUES ($1, $2, $3, $4, TRUE, $5, $6)
ON CONFLICT (session_id) DO UPDATE SET user_id = EXCLUDED.user_id, device_info = EXCLUDED.device_info,
    ip_address = EXCLUDED.ip_address, is_active = TRUE, last_activity = EXCLUDED.last_activity`,
			active.SessionID, active.UserID, active.DeviceInfo, active.IPAddress, active.LastActivity, active.CreatedAt)
		if err != nil {
			return fmt.Errorf("activate session: %w", err)
		}
		return nil
	})
}

func (s *PresenceStore) IsActive(ctx context.Context, userID, sessionID string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (
    SELECT 1 FROM active_sessions WHERE session_id = $1 AND user_id = $2 AND is_active
)`, sessionID, userID).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return active, nil
}

func (s *PresenceStore) Touch(ctx context.Context, userID, sessionID string, at time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE active_sessions SET last_activity = $3 WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID, at); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *PresenceStore) Deactivate(ctx context.Context, userID, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `UPDATE active_sessions SET is_active = FALSE WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}
