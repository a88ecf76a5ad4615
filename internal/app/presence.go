package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/quiz"
)

// DefaultHeartbeat is how often a logged-in device confirms it still owns the account.
const DefaultHeartbeat = 30 * time.Second

// Presence enforces one active device per account.
type Presence struct {
	store    PresenceStore
	now      func() time.Time
	sched    quiz.Scheduler
	interval time.Duration
}

func NewPresence(store PresenceStore, interval time.Duration) *Presence {
	return NewPresenceWithClock(store, interval, time.Now, quiz.SystemScheduler)
}

// NewPresenceWithClock replaces the wall clock and the heartbeat scheduler.
func NewPresenceWithClock(store PresenceStore, interval time.Duration, now func() time.Time, sched quiz.Scheduler) *Presence {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	return &Presence{store: store, now: now, sched: sched, interval: interval}
}

// Begin registers sessionID as the user's only active device.
func (p *Presence) Begin(ctx context.Context, userID, sessionID, userAgent, ip string) (domain.ActiveSession, error) {
	if ip == "" {
		ip = "Unknown"
	}
	now := p.now()
	s := domain.ActiveSession{
		UserID:       userID,
		SessionID:    sessionID,
		DeviceInfo:   DeviceInfo(userAgent),
		IPAddress:    ip,
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := p.store.Activate(ctx, s); err != nil {
		return domain.ActiveSession{}, fmt.Errorf("activate session: %w", err)
	}
	log.Printf("presence: %s active on %s (%s)", userID, s.DeviceInfo, sessionID)
	return s, nil
}

// Check runs one heartbeat. It reports false once another device took over.
func (p *Presence) Check(ctx context.Context, userID, sessionID string) (bool, error) {
	active, err := p.store.IsActive(ctx, userID, sessionID)
	if err != nil {
		return true, fmt.Errorf("check session: %w", err)
	}
	if !active {
		return false, nil
	}
	if err := p.store.Touch(ctx, userID, sessionID, p.now()); err != nil {
		return true, fmt.Errorf("touch session: %w", err)
	}
	return true, nil
}

// Watch heartbeats until ctx ends or the session is taken over, in which case
// onTerminated runs once. Store errors are logged and retried next beat.
func (p *Presence) Watch(ctx context.Context, userID, sessionID string, onTerminated func()) {
	beat := make(chan struct{}, 1)
	arm := func() func() bool {
		return p.sched.AfterFunc(p.interval, func() {
			select {
			case beat <- struct{}{}:
			default:
			}
		})
	}
	stop := arm()
	defer func() { stop() }()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			active, err := p.Check(ctx, userID, sessionID)
			if err != nil {
				log.Printf("presence: heartbeat %s: %v", sessionID, err)
				stop = arm()
				continue
			}
			if !active {
				log.Printf("presence: %s terminated by another login", sessionID)
				if onTerminated != nil {
					onTerminated()
				}
				return
			}
			stop = arm()
		}
	}
}

// End marks the session inactive.
func (p *Presence) End(ctx context.Context, userID, sessionID string) error {
	if err := p.store.Deactivate(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// DeviceInfo summarises a User-Agent as "<device> - <browser>".
func DeviceInfo(userAgent string) string {
	ua := strings.ToLower(userAgent)
	device := "Desktop"
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		device = "Tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		device = "Mobile"
	}
	return device + " - " + browser(ua)
}

// Edge and Chrome both advertise "chrome"; Chrome and Safari both advertise "safari".
func browser(ua string) string {
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		return "Chrome"
	case strings.Contains(ua, "firefox") || strings.Contains(ua, "fxios"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Unknown"
	}
}
