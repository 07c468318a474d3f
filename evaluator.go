package permit

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"sync"
)

// CustomConditionFunc evaluates a CustomCondition. Returning an error
// marks the whole check as failed (an Error decision), not denied.
type CustomConditionFunc func(ctx context.Context, rc *RequestContext, params map[string]any) (bool, error)

// Evaluator decides whether permissions match a request. It owns the
// custom-condition handler registry and reads time from the injected
// clock so window conditions are testable.
type Evaluator struct {
	clock Clock

	mu       sync.RWMutex
	handlers map[string]CustomConditionFunc
}

func NewEvaluator(clock Clock) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Evaluator{
		clock:    clock,
		handlers: make(map[string]CustomConditionFunc),
	}
}

// RegisterHandler installs fn for custom conditions named name. A nil
// fn removes the registration, returning those conditions to their
// fail-closed default.
func (e *Evaluator) RegisterHandler(name string, fn CustomConditionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		delete(e.handlers, name)
		return
	}
	e.handlers[name] = fn
}

func (e *Evaluator) handler(name string) (CustomConditionFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.handlers[name]
	return fn, ok
}

// Matches reports whether the permission grants action on resource for
// this request: the permission is active, the resource identifier is
// equal, the action is in the action set, and every condition holds
// (conditions AND together). Across permissions the caller ORs.
func (e *Evaluator) Matches(ctx context.Context, p *Permission, resource, action string, rc *RequestContext) (bool, error) {
	if p == nil || !p.Active {
		return false, nil
	}
	if p.Resource != resource {
		return false, nil
	}
	if !p.HasAction(action) {
		return false, nil
	}
	for _, cond := range p.Conditions {
		ok, err := e.evalCondition(ctx, cond, rc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// HasGrant reports whether any permission in perms matches. A
// condition evaluation fault aborts the scan and surfaces as an error.
func (e *Evaluator) HasGrant(ctx context.Context, perms []*Permission, resource, action string, rc *RequestContext) (bool, error) {
	for _, p := range perms {
		ok, err := e.Matches(ctx, p, resource, action, rc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// MatchingPermissions returns the ids of every permission in perms
// that matches. Used by the diagnostic evaluation path.
func (e *Evaluator) MatchingPermissions(ctx context.Context, perms []*Permission, resource, action string, rc *RequestContext) ([]string, error) {
	var matched []string
	for _, p := range perms {
		ok, err := e.Matches(ctx, p, resource, action, rc)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p.ID)
		}
	}
	return matched, nil
}

// evalCondition is the closed variant match over condition kinds.
func (e *Evaluator) evalCondition(ctx context.Context, cond Condition, rc *RequestContext) (bool, error) {
	switch c := cond.(type) {
	case TimeRangeCondition:
		now := e.clock.Now()
		if !c.Start.IsZero() && now.Before(c.Start) {
			return false, nil
		}
		if !c.End.IsZero() && now.After(c.End) {
			return false, nil
		}
		return true, nil

	case IPRangeCondition:
		raw := rc.clientIP()
		if raw == "" {
			return false, nil
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			return false, nil
		}
		for _, entry := range c.Allowed {
			if _, block, err := net.ParseCIDR(entry); err == nil {
				if block.Contains(ip) {
					return true, nil
				}
				continue
			}
			if allowed := net.ParseIP(entry); allowed != nil && allowed.Equal(ip) {
				return true, nil
			}
		}
		return false, nil

	case AttributeCondition:
		v, ok := rc.attribute(c.Key)
		if !ok {
			return false, nil
		}
		return reflect.DeepEqual(v, c.Expected), nil

	case CustomCondition:
		fn, ok := e.handler(c.Name)
		if !ok {
			// Fail closed: an unclaimed custom condition never grants.
			return false, nil
		}
		return fn(ctx, rc, c.Params)

	default:
		return false, fmt.Errorf("unknown condition type %T", cond)
	}
}
