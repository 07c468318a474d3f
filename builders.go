package permit

import "time"

// Builders provide a fluent API for assembling permissions, roles,
// users and whole configs before handing them to the engine.

// PermissionBuilder builds a Permission
type PermissionBuilder struct {
	p   *Permission
	err error
}

func NewPermissionBuilder(id string) *PermissionBuilder {
	return &PermissionBuilder{p: &Permission{ID: id, Actions: []string{}, Active: true}}
}

func (b *PermissionBuilder) Resource(resource string) *PermissionBuilder {
	b.p.Resource = resource
	return b
}

func (b *PermissionBuilder) Actions(actions ...string) *PermissionBuilder {
	b.p.Actions = append(b.p.Actions, actions...)
	return b
}

func (b *PermissionBuilder) Condition(c Condition) *PermissionBuilder {
	b.p.Conditions = append(b.p.Conditions, c)
	return b
}

// ConditionString attaches a parsed compact condition string; a parse
// failure surfaces at Build.
func (b *PermissionBuilder) ConditionString(s string) *PermissionBuilder {
	c, err := ParseCondition(s)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.p.Conditions = append(b.p.Conditions, c)
	return b
}

func (b *PermissionBuilder) During(start, end time.Time) *PermissionBuilder {
	return b.Condition(TimeRangeCondition{Start: start, End: end})
}

func (b *PermissionBuilder) FromIPs(entries ...string) *PermissionBuilder {
	return b.Condition(IPRangeCondition{Allowed: entries})
}

func (b *PermissionBuilder) AttrEquals(key string, expected any) *PermissionBuilder {
	return b.Condition(AttributeCondition{Key: key, Expected: expected})
}

func (b *PermissionBuilder) Custom(name string, params map[string]any) *PermissionBuilder {
	return b.Condition(CustomCondition{Name: name, Params: params})
}

func (b *PermissionBuilder) Active(active bool) *PermissionBuilder {
	b.p.Active = active
	return b
}

// Build returns the permission, or the first condition parse or
// validation failure
func (b *PermissionBuilder) Build() (*Permission, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.p.Validate(); err != nil {
		return nil, err
	}
	return b.p, nil
}

// RoleBuilder builds a Role
type RoleBuilder struct {
	r *Role
}

func NewRoleBuilder(id string) *RoleBuilder {
	return &RoleBuilder{r: &Role{ID: id, PermissionIDs: []string{}, Active: true}}
}

func (b *RoleBuilder) Permissions(ids ...string) *RoleBuilder {
	b.r.PermissionIDs = append(b.r.PermissionIDs, ids...)
	return b
}

func (b *RoleBuilder) Inherits(ids ...string) *RoleBuilder {
	b.r.Inherits = append(b.r.Inherits, ids...)
	return b
}

func (b *RoleBuilder) Active(active bool) *RoleBuilder {
	b.r.Active = active
	return b
}

func (b *RoleBuilder) Meta(key string, value any) *RoleBuilder {
	if b.r.Metadata == nil {
		b.r.Metadata = make(map[string]any)
	}
	b.r.Metadata[key] = value
	return b
}

func (b *RoleBuilder) Build() *Role { return b.r }

// UserBuilder builds a User
type UserBuilder struct {
	u *User
}

func NewUserBuilder(id string) *UserBuilder {
	return &UserBuilder{u: &User{ID: id, Active: true}}
}

func (b *UserBuilder) Roles(ids ...string) *UserBuilder {
	b.u.RoleIDs = append(b.u.RoleIDs, ids...)
	return b
}

// Permissions adds direct grants that bypass role membership
func (b *UserBuilder) Permissions(ids ...string) *UserBuilder {
	b.u.PermissionIDs = append(b.u.PermissionIDs, ids...)
	return b
}

func (b *UserBuilder) Active(active bool) *UserBuilder {
	b.u.Active = active
	return b
}

func (b *UserBuilder) CreatedAt(t time.Time) *UserBuilder {
	b.u.CreatedAt = t
	return b
}

func (b *UserBuilder) Meta(key string, value any) *UserBuilder {
	if b.u.Metadata == nil {
		b.u.Metadata = make(map[string]any)
	}
	b.u.Metadata[key] = value
	return b
}

func (b *UserBuilder) Build() *User { return b.u }

// ConfigBuilder provides fluent API for building configurations
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: DefaultConfig()}
}

func (b *ConfigBuilder) Version(v uint16) *ConfigBuilder {
	b.cfg.Version = v
	return b
}

func (b *ConfigBuilder) EngineSettings(fn func(*EngineConfig)) *ConfigBuilder {
	fn(&b.cfg.Engine)
	return b
}

func (b *ConfigBuilder) AddPermission(p *Permission) *ConfigBuilder {
	b.cfg.Seed.Permissions = append(b.cfg.Seed.Permissions, p)
	return b
}

func (b *ConfigBuilder) AddRole(r *Role) *ConfigBuilder {
	b.cfg.Seed.Roles = append(b.cfg.Seed.Roles, r)
	return b
}

func (b *ConfigBuilder) AddUser(u *User) *ConfigBuilder {
	b.cfg.Seed.Users = append(b.cfg.Seed.Users, u)
	return b
}

func (b *ConfigBuilder) Assign(userID, roleID string) *ConfigBuilder {
	b.cfg.Seed.Assignments = append(b.cfg.Seed.Assignments, RoleAssignment{UserID: userID, RoleID: roleID})
	return b
}

func (b *ConfigBuilder) Build() *Config { return b.cfg }

func (b *ConfigBuilder) ToYAML() ([]byte, error) {
	return b.cfg.ToYAML()
}

func (b *ConfigBuilder) ToJSON() ([]byte, error) {
	return b.cfg.ToJSON()
}
