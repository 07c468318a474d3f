// Package permit implements an in-process access control engine. A
// permission grants actions on a resource, optionally narrowed by
// contextual conditions (time windows, network ranges, attribute
// matches, custom hooks). Users hold permissions directly or through
// roles; the engine answers permission checks behind a TTL-bounded
// decision cache while keeping an append-only audit trail and live
// statistics.
package permit

import (
	"fmt"
	"net"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// User is a principal known to the entity directory.
type User struct {
	ID            string         `json:"id"`
	RoleIDs       []string       `json:"role_ids"`
	PermissionIDs []string       `json:"permission_ids"` // direct grants
	Active        bool           `json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
	LastLoginAt   time.Time      `json:"last_login_at,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Role bundles permissions for assignment to users. Inherits lists
// parent roles whose permissions are resolved transitively at check
// time; cycles are tolerated and broken during resolution.
type Role struct {
	ID            string         `json:"id"`
	PermissionIDs []string       `json:"permission_ids"`
	Inherits      []string       `json:"inherits,omitempty"`
	Active        bool           `json:"active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Permission grants a set of actions on one resource. The grant
// applies only when every attached condition holds for the request
// context.
type Permission struct {
	ID         string     `json:"id"`
	Resource   string     `json:"resource"`
	Actions    []string   `json:"actions"`
	Conditions Conditions `json:"conditions,omitempty"`
	Active     bool       `json:"active"`
}

// HasAction reports whether the permission's action set contains action.
func (p *Permission) HasAction(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Validate rejects malformed permissions at creation time so condition
// evaluation never trips on shape errors during checks.
func (p *Permission) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("permission ID is required")
	}
	if p.Resource == "" {
		return fmt.Errorf("permission %s: resource is required", p.ID)
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("permission %s: at least one action is required", p.ID)
	}
	for i, c := range p.Conditions {
		if err := validateCondition(c); err != nil {
			return fmt.Errorf("permission %s: condition %d: %w", p.ID, i, err)
		}
	}
	return nil
}

// RequestContext carries the caller-supplied context of a check:
// client network identity and free-form attributes evaluated by
// conditions. A nil RequestContext behaves like an empty one.
type RequestContext struct {
	ClientIP   string         `json:"client_ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (rc *RequestContext) attribute(key string) (any, bool) {
	if rc == nil || rc.Attributes == nil {
		return nil, false
	}
	v, ok := rc.Attributes[key]
	return v, ok
}

func (rc *RequestContext) clientIP() string {
	if rc == nil {
		return ""
	}
	return rc.ClientIP
}

// ============================================================================
// CONDITIONS
// ============================================================================

// Condition narrows when a permission applies. The variant set is
// closed: evaluation type-switches over exactly these four kinds, and
// adding a kind means extending that switch.
type Condition interface {
	condition()
}

// Conditions is a condition list with a tagged wire representation;
// the codec lives in config.go.
type Conditions []Condition

// TimeRangeCondition holds between Start and End inclusive. A zero
// bound is open on that side.
type TimeRangeCondition struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// IPRangeCondition holds when the request's client IP is one of the
// allowed entries. Entries are exact addresses or CIDR blocks. A
// request without a client IP never satisfies it.
type IPRangeCondition struct {
	Allowed []string `json:"allowed"`
}

// AttributeCondition holds when the request attribute under Key equals
// Expected exactly, type included. An absent key never satisfies it.
type AttributeCondition struct {
	Key      string `json:"key"`
	Expected any    `json:"expected"`
}

// CustomCondition delegates to a handler registered on the engine
// under Name. With no handler registered it evaluates false: an
// unclaimed custom condition denies rather than silently passing.
type CustomCondition struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

func (TimeRangeCondition) condition() {}

func (IPRangeCondition) condition() {}

func (AttributeCondition) condition() {}

func (CustomCondition) condition() {}

func validateCondition(c Condition) error {
	switch v := c.(type) {
	case TimeRangeCondition:
		if !v.Start.IsZero() && !v.End.IsZero() && v.End.Before(v.Start) {
			return fmt.Errorf("time range end %s before start %s", v.End.Format(time.RFC3339), v.Start.Format(time.RFC3339))
		}
	case IPRangeCondition:
		if len(v.Allowed) == 0 {
			return fmt.Errorf("ip range requires at least one entry")
		}
		for _, entry := range v.Allowed {
			if _, _, err := net.ParseCIDR(entry); err == nil {
				continue
			}
			if net.ParseIP(entry) == nil {
				return fmt.Errorf("ip range entry %q is neither an IP nor a CIDR block", entry)
			}
		}
	case AttributeCondition:
		if v.Key == "" {
			return fmt.Errorf("attribute condition requires a key")
		}
	case CustomCondition:
		if v.Name == "" {
			return fmt.Errorf("custom condition requires a name")
		}
	case nil:
		return fmt.Errorf("nil condition")
	default:
		return fmt.Errorf("unknown condition type %T", c)
	}
	return nil
}

// ============================================================================
// CLONING
// ============================================================================

// Directory reads hand out copies so callers can never mutate engine
// state through a returned pointer.

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	dup := *u
	dup.RoleIDs = append([]string(nil), u.RoleIDs...)
	dup.PermissionIDs = append([]string(nil), u.PermissionIDs...)
	dup.Metadata = cloneMap(u.Metadata)
	return &dup
}

func cloneRole(r *Role) *Role {
	if r == nil {
		return nil
	}
	dup := *r
	dup.PermissionIDs = append([]string(nil), r.PermissionIDs...)
	dup.Inherits = append([]string(nil), r.Inherits...)
	dup.Metadata = cloneMap(r.Metadata)
	return &dup
}

func clonePermission(p *Permission) *Permission {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Actions = append([]string(nil), p.Actions...)
	dup.Conditions = append(Conditions(nil), p.Conditions...)
	return &dup
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	dup := make(map[string]any, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
