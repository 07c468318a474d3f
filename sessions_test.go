package permit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCachedValidatorMemoizesVerdicts(t *testing.T) {
	ctx := context.Background()
	inner := &scriptedSessions{valid: true}
	v, err := NewCachedSessionValidator(inner, time.Minute, SessionCacheConfig{})
	if err != nil {
		t.Fatalf("new cached validator: %v", err)
	}
	defer v.Close()

	valid, err := v.IsSessionValid(ctx, "u1")
	if err != nil || !valid {
		t.Fatalf("expected valid verdict, got valid=%v err=%v", valid, err)
	}
	v.Wait()

	// the memo answers now; the inner validator is not consulted again
	for i := 0; i < 5; i++ {
		if valid, _ := v.IsSessionValid(ctx, "u1"); !valid {
			t.Fatalf("expected memoized verdict on call %d", i)
		}
	}
	inner.mu.Lock()
	calls := inner.calls
	inner.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", calls)
	}
}

func TestCachedValidatorMemoizesInvalidToo(t *testing.T) {
	ctx := context.Background()
	inner := &scriptedSessions{valid: false}
	v, err := NewCachedSessionValidator(inner, time.Minute, SessionCacheConfig{})
	if err != nil {
		t.Fatalf("new cached validator: %v", err)
	}
	defer v.Close()

	if valid, _ := v.IsSessionValid(ctx, "u1"); valid {
		t.Fatalf("expected invalid verdict")
	}
	v.Wait()

	// flipping the backend is not visible until the memo ages out or is
	// invalidated
	inner.mu.Lock()
	inner.valid = true
	inner.mu.Unlock()
	if valid, _ := v.IsSessionValid(ctx, "u1"); valid {
		t.Fatalf("expected stale invalid verdict from memo")
	}

	v.Invalidate("u1")
	if valid, _ := v.IsSessionValid(ctx, "u1"); !valid {
		t.Fatalf("expected fresh verdict after Invalidate")
	}
}

func TestCachedValidatorNeverMemoizesErrors(t *testing.T) {
	ctx := context.Background()
	inner := &scriptedSessions{err: fmt.Errorf("backend down")}
	v, err := NewCachedSessionValidator(inner, time.Minute, SessionCacheConfig{})
	if err != nil {
		t.Fatalf("new cached validator: %v", err)
	}
	defer v.Close()

	if _, err := v.IsSessionValid(ctx, "u1"); err == nil {
		t.Fatalf("expected error to pass through")
	}
	v.Wait()

	// recovery is visible immediately: the failure was not cached
	inner.mu.Lock()
	inner.err = nil
	inner.valid = true
	inner.mu.Unlock()
	valid, err := v.IsSessionValid(ctx, "u1")
	if err != nil || !valid {
		t.Fatalf("expected recovery to be visible, got valid=%v err=%v", valid, err)
	}
	inner.mu.Lock()
	calls := inner.calls
	inner.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected both calls to reach the inner validator, got %d", calls)
	}
}

func TestCachedValidatorForwardsCleanup(t *testing.T) {
	ctx := context.Background()
	inner := &scriptedSessions{valid: true}
	v, err := NewCachedSessionValidator(inner, time.Minute, SessionCacheConfig{})
	if err != nil {
		t.Fatalf("new cached validator: %v", err)
	}
	defer v.Close()

	if _, err := v.CleanupExpiredSessions(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	inner.mu.Lock()
	cleaned := inner.cleaned
	inner.mu.Unlock()
	if cleaned != 1 {
		t.Fatalf("expected cleanup forwarded once, got %d", cleaned)
	}
}

func TestEngineWrapsValidatorWhenMemoizationEnabled(t *testing.T) {
	cfg := seededConfig()
	cfg.Engine.SessionCheckTTL = time.Minute.Milliseconds()
	inner := &scriptedSessions{valid: true}

	eng := newTestEngine(t, cfg, WithSessionValidator(inner))

	ctx := context.Background()
	if dec := eng.CheckPermission(ctx, "u1", "data", "write", nil); !dec.Granted() {
		t.Fatalf("expected grant, got %s (%s)", dec.Outcome, dec.Reason)
	}
	if eng.sessionMemo == nil {
		t.Fatalf("expected the engine to wrap the validator in a session memo")
	}

	// with a zero TTL the raw validator is used as-is
	bare, err := NewEngine(seededConfig(), WithSessionValidator(inner))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if bare.sessionMemo != nil {
		t.Fatalf("expected no session memo with memoization disabled")
	}
}
