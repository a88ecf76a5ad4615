package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"agribank-quiz/internal/domain"
)

func TestPresenceStoreKeepsOneActiveDevice(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewPresenceStore(newClient(mr), time.Hour)
	at := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

	if err := store.Activate(ctx, domain.ActiveSession{UserID: "u1", SessionID: "laptop", DeviceInfo: "Desktop - Chrome", IPAddress: "10.0.0.1", LastActivity: at, CreatedAt: at}); err != nil {
		t.Fatalf("activate laptop: %v", err)
	}
	if active, _ := store.IsActive(ctx, "u1", "laptop"); !active {
		t.Fatalf("expected laptop active")
	}
	if active, _ := store.IsActive(ctx, "u2", "laptop"); active {
		t.Fatalf("sessions belong to one user")
	}

	if err := store.Activate(ctx, domain.ActiveSession{UserID: "u1", SessionID: "phone", LastActivity: at, CreatedAt: at}); err != nil {
		t.Fatalf("activate phone: %v", err)
	}
	if active, _ := store.IsActive(ctx, "u1", "laptop"); active {
		t.Fatalf("laptop should be deactivated by the newer login")
	}
	if active, _ := store.IsActive(ctx, "u1", "phone"); !active {
		t.Fatalf("expected phone active")
	}

	later := at.Add(time.Minute)
	if err := store.Touch(ctx, "u1", "phone", later); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if got := mr.HGet("presence:session:phone", "last_activity"); got != later.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected last activity %q", got)
	}
	if err := store.Touch(ctx, "u1", "unknown", later); err != nil {
		t.Fatalf("touching an unknown session is a no-op, got %v", err)
	}
	if mr.Exists("presence:session:unknown") {
		t.Fatalf("touch must not create sessions")
	}

	if err := store.Deactivate(ctx, "u1", "phone"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if active, _ := store.IsActive(ctx, "u1", "phone"); active {
		t.Fatalf("expected phone inactive")
	}
	if active, _ := store.IsActive(ctx, "u1", "missing"); active {
		t.Fatalf("unknown sessions are inactive")
	}
}
