package permit

import (
	"fmt"
	"sync"
	"time"
)

// Directory is the engine-owned in-memory store of users, roles, and
// permissions. Pure CRUD: entitlement rules, cache invalidation, and
// statistics live in the Engine. Safe for concurrent use; every read
// returns a defensive copy.
type Directory struct {
	mu          sync.RWMutex
	users       map[string]*User
	roles       map[string]*Role
	permissions map[string]*Permission
}

func NewDirectory() *Directory {
	return &Directory{
		users:       make(map[string]*User),
		roles:       make(map[string]*Role),
		permissions: make(map[string]*Permission),
	}
}

// ============================================================================
// CREATE / GET
// ============================================================================

func (d *Directory) CreateUser(u *User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("user ID is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.ID]; ok {
		return alreadyExists("user", u.ID)
	}
	d.users[u.ID] = cloneUser(u)
	return nil
}

func (d *Directory) CreateRole(r *Role) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("role ID is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.roles[r.ID]; ok {
		return alreadyExists("role", r.ID)
	}
	d.roles[r.ID] = cloneRole(r)
	return nil
}

func (d *Directory) CreatePermission(p *Permission) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("permission ID is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.permissions[p.ID]; ok {
		return alreadyExists("permission", p.ID)
	}
	d.permissions[p.ID] = clonePermission(p)
	return nil
}

func (d *Directory) GetUser(id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return cloneUser(u), nil
}

func (d *Directory) GetRole(id string) (*Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.roles[id]
	if !ok {
		return nil, notFound("role", id)
	}
	return cloneRole(r), nil
}

func (d *Directory) GetPermission(id string) (*Permission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.permissions[id]
	if !ok {
		return nil, notFound("permission", id)
	}
	return clonePermission(p), nil
}

// ============================================================================
// ROLE MEMBERSHIP
// ============================================================================

// AssignRole adds roleID to the user's role set. Assigning a role the
// user already holds is reported as an error, never silently ignored.
func (d *Directory) AssignRole(userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	if _, ok := d.roles[roleID]; !ok {
		return notFound("role", roleID)
	}
	for _, id := range u.RoleIDs {
		if id == roleID {
			return ErrRoleAlreadyAssigned
		}
	}
	u.RoleIDs = append(u.RoleIDs, roleID)
	return nil
}

// RevokeRole removes roleID from the user's role set. Revoking a role
// the user does not hold is reported as an error.
func (d *Directory) RevokeRole(userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	if _, ok := d.roles[roleID]; !ok {
		return notFound("role", roleID)
	}
	for i, id := range u.RoleIDs {
		if id == roleID {
			u.RoleIDs = append(u.RoleIDs[:i], u.RoleIDs[i+1:]...)
			return nil
		}
	}
	return ErrRoleNotAssigned
}

// ============================================================================
// ACTIVATION / DELETION
// ============================================================================

func (d *Directory) SetUserActive(id string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.Active = active
	return nil
}

func (d *Directory) SetRoleActive(id string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.roles[id]
	if !ok {
		return notFound("role", id)
	}
	r.Active = active
	return nil
}

func (d *Directory) SetPermissionActive(id string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.permissions[id]
	if !ok {
		return notFound("permission", id)
	}
	p.Active = active
	return nil
}

func (d *Directory) DeleteUser(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return notFound("user", id)
	}
	delete(d.users, id)
	return nil
}

// DeleteRole removes the role. References from users and from other
// roles' Inherits become dangling and are skipped at resolution time.
func (d *Directory) DeleteRole(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.roles[id]; !ok {
		return notFound("role", id)
	}
	delete(d.roles, id)
	return nil
}

func (d *Directory) DeletePermission(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.permissions[id]; !ok {
		return notFound("permission", id)
	}
	delete(d.permissions, id)
	return nil
}

func (d *Directory) SetLastLogin(id string, t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.LastLoginAt = t
	return nil
}

// ============================================================================
// RESOLUTION
// ============================================================================

// ResolvePermissions returns copies of every permission the user holds
// directly or through active roles, transitively over role inheritance.
// Inactive roles are skipped entirely; dangling ids resolve to nothing;
// inheritance cycles are broken with a visited set. The result is
// deduplicated by permission id. Inactive permissions are included —
// the evaluator is the one place that decides what inactive means.
func (d *Directory) ResolvePermissions(userID string) ([]*Permission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, notFound("user", userID)
	}

	seen := make(map[string]bool)
	out := make([]*Permission, 0, len(u.PermissionIDs))
	collect := func(permIDs []string) {
		for _, pid := range permIDs {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			if p, ok := d.permissions[pid]; ok {
				out = append(out, clonePermission(p))
			}
		}
	}

	collect(u.PermissionIDs)
	visited := make(map[string]bool)
	for _, rid := range u.RoleIDs {
		d.collectRolePermissions(rid, visited, collect)
	}
	return out, nil
}

// collectRolePermissions walks a role and its ancestors. Must be
// called with d.mu held.
func (d *Directory) collectRolePermissions(roleID string, visited map[string]bool, collect func([]string)) {
	if visited[roleID] {
		return
	}
	visited[roleID] = true
	r, ok := d.roles[roleID]
	if !ok || !r.Active {
		return
	}
	collect(r.PermissionIDs)
	for _, parent := range r.Inherits {
		d.collectRolePermissions(parent, visited, collect)
	}
}

// UsersWithRole returns ids of users holding roleID, directly or via a
// role that inherits it. Drives targeted cache invalidation when a
// role is deactivated or deleted.
func (d *Directory) UsersWithRole(roleID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0)
	for id, u := range d.users {
		for _, rid := range u.RoleIDs {
			if rid == roleID || d.roleInherits(rid, roleID, make(map[string]bool)) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// UsersWithPermission returns ids of users that reference permID
// directly or through any role. Drives targeted cache invalidation
// when a permission is deactivated or deleted.
func (d *Directory) UsersWithPermission(permID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0)
	for id, u := range d.users {
		if containsString(u.PermissionIDs, permID) {
			out = append(out, id)
			continue
		}
		for _, rid := range u.RoleIDs {
			if d.roleGrantsPermission(rid, permID, make(map[string]bool)) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// roleInherits reports whether start transitively inherits target.
// Must be called with d.mu held.
func (d *Directory) roleInherits(start, target string, visited map[string]bool) bool {
	if visited[start] {
		return false
	}
	visited[start] = true
	r, ok := d.roles[start]
	if !ok {
		return false
	}
	for _, parent := range r.Inherits {
		if parent == target || d.roleInherits(parent, target, visited) {
			return true
		}
	}
	return false
}

// roleGrantsPermission reports whether the role or an ancestor lists
// permID. Activity is ignored here: invalidation must cover roles that
// are being toggled. Must be called with d.mu held.
func (d *Directory) roleGrantsPermission(roleID, permID string, visited map[string]bool) bool {
	if visited[roleID] {
		return false
	}
	visited[roleID] = true
	r, ok := d.roles[roleID]
	if !ok {
		return false
	}
	if containsString(r.PermissionIDs, permID) {
		return true
	}
	for _, parent := range r.Inherits {
		if d.roleGrantsPermission(parent, permID, visited) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// COUNTS
// ============================================================================

// DirectorySizes reports entity counts for statistics snapshots. The
// numbers are read live rather than tracked as counters, so they can
// never drift from the actual directory contents.
type DirectorySizes struct {
	Users             int `json:"users"`
	ActiveUsers       int `json:"active_users"`
	Roles             int `json:"roles"`
	ActiveRoles       int `json:"active_roles"`
	Permissions       int `json:"permissions"`
	ActivePermissions int `json:"active_permissions"`
}

func (d *Directory) Sizes() DirectorySizes {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := DirectorySizes{
		Users:       len(d.users),
		Roles:       len(d.roles),
		Permissions: len(d.permissions),
	}
	for _, u := range d.users {
		if u.Active {
			s.ActiveUsers++
		}
	}
	for _, r := range d.roles {
		if r.Active {
			s.ActiveRoles++
		}
	}
	for _, p := range d.permissions {
		if p.Active {
			s.ActivePermissions++
		}
	}
	return s
}
