package permit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMatchesGatesOnResourceActionActive(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(nil)
	p := &Permission{ID: "p1", Resource: "data", Actions: []string{"read", "write"}, Active: true}

	if ok, _ := ev.Matches(ctx, p, "data", "write", nil); !ok {
		t.Fatalf("expected match for listed action")
	}
	if ok, _ := ev.Matches(ctx, p, "data", "delete", nil); ok {
		t.Fatalf("expected no match for unlisted action")
	}
	if ok, _ := ev.Matches(ctx, p, "database", "write", nil); ok {
		t.Fatalf("expected no match for different resource")
	}

	p.Active = false
	if ok, _ := ev.Matches(ctx, p, "data", "write", nil); ok {
		t.Fatalf("expected inactive permission to never match")
	}
	if ok, _ := ev.Matches(ctx, nil, "data", "write", nil); ok {
		t.Fatalf("expected nil permission to never match")
	}
}

func TestConditionsCombineConjunctively(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	ev := NewEvaluator(clock)

	p := &Permission{
		ID:       "p1",
		Resource: "report",
		Actions:  []string{"view"},
		Active:   true,
		Conditions: Conditions{
			TimeRangeCondition{
				Start: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
			},
			AttributeCondition{Key: "department", Expected: "finance"},
		},
	}

	rc := &RequestContext{Attributes: map[string]any{"department": "finance"}}
	if ok, err := ev.Matches(ctx, p, "report", "view", rc); err != nil || !ok {
		t.Fatalf("expected match with both conditions holding, got ok=%v err=%v", ok, err)
	}

	// one failing condition sinks the permission
	rc.Attributes["department"] = "sales"
	if ok, _ := ev.Matches(ctx, p, "report", "view", rc); ok {
		t.Fatalf("expected no match with attribute mismatch")
	}

	rc.Attributes["department"] = "finance"
	clock.Set(time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	if ok, _ := ev.Matches(ctx, p, "report", "view", rc); ok {
		t.Fatalf("expected no match outside time window")
	}
}

func TestTimeRangeOpenBounds(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	ev := NewEvaluator(clock)

	openEnd := &Permission{
		ID: "p1", Resource: "r", Actions: []string{"a"}, Active: true,
		Conditions: Conditions{TimeRangeCondition{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}},
	}
	if ok, _ := ev.Matches(ctx, openEnd, "r", "a", nil); !ok {
		t.Fatalf("expected zero End to mean no upper bound")
	}

	openStart := &Permission{
		ID: "p2", Resource: "r", Actions: []string{"a"}, Active: true,
		Conditions: Conditions{TimeRangeCondition{End: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}},
	}
	if ok, _ := ev.Matches(ctx, openStart, "r", "a", nil); ok {
		t.Fatalf("expected zero Start with past End to reject")
	}

	clock.Set(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if ok, _ := ev.Matches(ctx, openStart, "r", "a", nil); !ok {
		t.Fatalf("expected zero Start to mean no lower bound")
	}
}

func TestIPRangeCondition(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(nil)
	p := &Permission{
		ID: "p1", Resource: "admin", Actions: []string{"login"}, Active: true,
		Conditions: Conditions{IPRangeCondition{Allowed: []string{"10.0.0.0/8", "192.168.1.7"}}},
	}

	// inside the CIDR block, the exact address, a neighboring address,
	// outside the block, no client IP, unparseable
	cases := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.7", true},
		{"192.168.1.8", false},
		{"11.0.0.1", false},
		{"", false},
		{"not-an-ip", false},
	}
	for _, tc := range cases {
		rc := &RequestContext{ClientIP: tc.ip}
		ok, err := ev.Matches(ctx, p, "admin", "login", rc)
		if err != nil {
			t.Fatalf("ip %q: unexpected error %v", tc.ip, err)
		}
		if ok != tc.want {
			t.Fatalf("ip %q: expected %v, got %v", tc.ip, tc.want, ok)
		}
	}

	// a nil request context carries no IP
	if ok, _ := ev.Matches(ctx, p, "admin", "login", nil); ok {
		t.Fatalf("expected nil context to fail IP condition")
	}
}

func TestAttributeConditionIsTypeStrict(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(nil)
	p := &Permission{
		ID: "p1", Resource: "r", Actions: []string{"a"}, Active: true,
		Conditions: Conditions{AttributeCondition{Key: "level", Expected: 3}},
	}

	if ok, _ := ev.Matches(ctx, p, "r", "a", &RequestContext{Attributes: map[string]any{"level": 3}}); !ok {
		t.Fatalf("expected match on equal int")
	}
	// 3.0 as float64 is a different type, so no match
	if ok, _ := ev.Matches(ctx, p, "r", "a", &RequestContext{Attributes: map[string]any{"level": 3.0}}); ok {
		t.Fatalf("expected type mismatch to reject")
	}
	if ok, _ := ev.Matches(ctx, p, "r", "a", &RequestContext{Attributes: map[string]any{"other": 3}}); ok {
		t.Fatalf("expected absent key to reject")
	}
	if ok, _ := ev.Matches(ctx, p, "r", "a", nil); ok {
		t.Fatalf("expected nil context to reject")
	}
}

func TestCustomConditionRegistry(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(nil)
	p := &Permission{
		ID: "p1", Resource: "r", Actions: []string{"a"}, Active: true,
		Conditions: Conditions{CustomCondition{Name: "quorum", Params: map[string]any{"need": 2}}},
	}

	if ok, err := ev.Matches(ctx, p, "r", "a", nil); err != nil || ok {
		t.Fatalf("expected unregistered handler to fail closed, got ok=%v err=%v", ok, err)
	}

	ev.RegisterHandler("quorum", func(ctx context.Context, rc *RequestContext, params map[string]any) (bool, error) {
		need, _ := params["need"].(int)
		got, _ := rc.attribute("votes")
		n, _ := got.(int)
		return n >= need, nil
	})

	rc := &RequestContext{Attributes: map[string]any{"votes": 2}}
	if ok, err := ev.Matches(ctx, p, "r", "a", rc); err != nil || !ok {
		t.Fatalf("expected registered handler to grant, got ok=%v err=%v", ok, err)
	}

	// removing the handler restores the fail-closed default
	ev.RegisterHandler("quorum", nil)
	if ok, _ := ev.Matches(ctx, p, "r", "a", rc); ok {
		t.Fatalf("expected removal to fail closed again")
	}
}

func TestHandlerErrorSurfacesAsFault(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(nil)
	ev.RegisterHandler("broken", func(ctx context.Context, rc *RequestContext, params map[string]any) (bool, error) {
		return false, fmt.Errorf("lookup failed")
	})

	faulty := &Permission{
		ID: "p1", Resource: "r", Actions: []string{"a"}, Active: true,
		Conditions: Conditions{CustomCondition{Name: "broken"}},
	}
	clean := &Permission{ID: "p2", Resource: "r", Actions: []string{"a"}, Active: true}

	if _, err := ev.Matches(ctx, faulty, "r", "a", nil); err == nil {
		t.Fatalf("expected handler error to surface")
	}

	// a fault aborts the scan even when a later permission would grant
	if _, err := ev.HasGrant(ctx, []*Permission{faulty, clean}, "r", "a", nil); err == nil {
		t.Fatalf("expected HasGrant to surface the fault")
	}
	ok, err := ev.HasGrant(ctx, []*Permission{clean, faulty}, "r", "a", nil)
	if err != nil || !ok {
		t.Fatalf("expected earlier grant to short-circuit, got ok=%v err=%v", ok, err)
	}
}

func TestMatchingPermissionsCollectsAllMatches(t *testing.T) {
	ctx := context.Background()
	ev := NewEvaluator(nil)
	perms := []*Permission{
		{ID: "p1", Resource: "data", Actions: []string{"read"}, Active: true},
		{ID: "p2", Resource: "data", Actions: []string{"read", "write"}, Active: true},
		{ID: "p3", Resource: "data", Actions: []string{"write"}, Active: false},
		{ID: "p4", Resource: "files", Actions: []string{"read"}, Active: true},
	}

	matched, err := ev.MatchingPermissions(ctx, perms, "data", "read", nil)
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if len(matched) != 2 || matched[0] != "p1" || matched[1] != "p2" {
		t.Fatalf("expected [p1 p2], got %v", matched)
	}
}
