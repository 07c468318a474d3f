package stores

import (
	"context"
	"testing"
	"time"

	"github.com/oarkflow/permit"
)

func TestMemorySessionLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := permit.NewManualClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	store := NewMemorySessionStore(clock)

	if valid, _ := store.IsSessionValid(ctx, "u1"); valid {
		t.Fatalf("expected no session before StartSession")
	}

	if err := store.StartSession(ctx, "u1", time.Hour); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if valid, _ := store.IsSessionValid(ctx, "u1"); !valid {
		t.Fatalf("expected live session")
	}

	if err := store.EndSession(ctx, "u1"); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if valid, _ := store.IsSessionValid(ctx, "u1"); valid {
		t.Fatalf("expected session ended")
	}
}

func TestMemorySessionExpiry(t *testing.T) {
	ctx := context.Background()
	clock := permit.NewManualClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	store := NewMemorySessionStore(clock)

	_ = store.StartSession(ctx, "u1", time.Minute)

	clock.Advance(59 * time.Second)
	if valid, _ := store.IsSessionValid(ctx, "u1"); !valid {
		t.Fatalf("expected session still live")
	}

	// expiry instant itself is invalid
	clock.Advance(time.Second)
	if valid, _ := store.IsSessionValid(ctx, "u1"); valid {
		t.Fatalf("expected session expired")
	}
	// expired but not yet swept
	if store.Size() != 1 {
		t.Fatalf("expected expired row to linger, got size %d", store.Size())
	}
}

func TestMemorySessionRefresh(t *testing.T) {
	ctx := context.Background()
	clock := permit.NewManualClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	store := NewMemorySessionStore(clock)

	_ = store.StartSession(ctx, "u1", time.Minute)
	clock.Advance(50 * time.Second)
	// restarting resets the expiry from now
	_ = store.StartSession(ctx, "u1", time.Minute)
	clock.Advance(50 * time.Second)

	if valid, _ := store.IsSessionValid(ctx, "u1"); !valid {
		t.Fatalf("expected refreshed session to survive the original expiry")
	}
}

func TestMemorySessionCleanup(t *testing.T) {
	ctx := context.Background()
	clock := permit.NewManualClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	store := NewMemorySessionStore(clock)

	_ = store.StartSession(ctx, "u1", time.Minute)
	_ = store.StartSession(ctx, "u2", time.Hour)
	_ = store.StartSession(ctx, "u3", 30*time.Second)

	clock.Advance(2 * time.Minute)
	removed, err := store.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 expired sessions removed, got %d", removed)
	}
	if store.Size() != 1 {
		t.Fatalf("expected 1 session left, got %d", store.Size())
	}
	if valid, _ := store.IsSessionValid(ctx, "u2"); !valid {
		t.Fatalf("expected the long session to survive cleanup")
	}
}

func TestMemorySessionValidatesInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(nil)

	if err := store.StartSession(ctx, "", time.Minute); err == nil {
		t.Fatalf("expected empty user ID to be rejected")
	}
	if err := store.StartSession(ctx, "u1", 0); err == nil {
		t.Fatalf("expected zero ttl to be rejected")
	}
	if err := store.StartSession(ctx, "u1", -time.Minute); err == nil {
		t.Fatalf("expected negative ttl to be rejected")
	}
}

func TestMemorySessionAsEngineValidator(t *testing.T) {
	var _ permit.SessionValidator = &MemorySessionStore{}
}
