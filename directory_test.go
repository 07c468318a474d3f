package permit

import (
	"errors"
	"sort"
	"testing"
	"time"
)

func TestDirectoryCreateGetReturnsCopies(t *testing.T) {
	d := NewDirectory()

	u := &User{ID: "u1", Active: true, Metadata: map[string]any{"team": "core"}}
	if err := d.CreateUser(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := d.CreateUser(&User{ID: "u1"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on duplicate, got %v", err)
	}

	got, err := d.GetUser("u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	// mutating the returned copy must not leak into the store
	got.Active = false
	got.Metadata["team"] = "changed"
	got.RoleIDs = append(got.RoleIDs, "sneaky")

	again, _ := d.GetUser("u1")
	if !again.Active || again.Metadata["team"] != "core" || len(again.RoleIDs) != 0 {
		t.Fatalf("stored user mutated through a read copy: %+v", again)
	}

	if _, err := d.GetUser("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := d.CreateUser(&User{}); err == nil {
		t.Fatalf("expected error for empty user ID")
	}
}

func TestDirectoryRoleMembership(t *testing.T) {
	d := NewDirectory()
	_ = d.CreateUser(&User{ID: "u1", Active: true})
	_ = d.CreateRole(&Role{ID: "r1", Active: true})

	if err := d.AssignRole("u1", "r1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := d.AssignRole("u1", "r1"); !errors.Is(err, ErrRoleAlreadyAssigned) {
		t.Fatalf("expected ErrRoleAlreadyAssigned, got %v", err)
	}
	if err := d.AssignRole("u1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing role, got %v", err)
	}
	if err := d.AssignRole("ghost", "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}

	if err := d.RevokeRole("u1", "r1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := d.RevokeRole("u1", "r1"); !errors.Is(err, ErrRoleNotAssigned) {
		t.Fatalf("expected ErrRoleNotAssigned, got %v", err)
	}

	u, _ := d.GetUser("u1")
	if len(u.RoleIDs) != 0 {
		t.Fatalf("expected no roles after revoke, got %v", u.RoleIDs)
	}
}

func TestResolvePermissionsMergesDirectAndRoleGrants(t *testing.T) {
	d := NewDirectory()
	_ = d.CreatePermission(&Permission{ID: "p-direct", Resource: "a", Actions: []string{"x"}, Active: true})
	_ = d.CreatePermission(&Permission{ID: "p-role", Resource: "b", Actions: []string{"x"}, Active: true})
	_ = d.CreatePermission(&Permission{ID: "p-parent", Resource: "c", Actions: []string{"x"}, Active: true})
	_ = d.CreateRole(&Role{ID: "r-parent", PermissionIDs: []string{"p-parent"}, Active: true})
	// the child also lists p-direct: resolution must dedupe it
	_ = d.CreateRole(&Role{ID: "r-child", PermissionIDs: []string{"p-role", "p-direct"}, Inherits: []string{"r-parent"}, Active: true})
	_ = d.CreateUser(&User{ID: "u1", PermissionIDs: []string{"p-direct"}, RoleIDs: []string{"r-child"}, Active: true})

	perms, err := d.ResolvePermissions("u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ids := make([]string, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	want := []string{"p-direct", "p-parent", "p-role"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	if _, err := d.ResolvePermissions("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestResolveSkipsInactiveRoleSubtree(t *testing.T) {
	d := NewDirectory()
	_ = d.CreatePermission(&Permission{ID: "p-live", Resource: "a", Actions: []string{"x"}, Active: true})
	_ = d.CreatePermission(&Permission{ID: "p-frozen", Resource: "b", Actions: []string{"x"}, Active: true})
	_ = d.CreatePermission(&Permission{ID: "p-ancestor", Resource: "c", Actions: []string{"x"}, Active: true})
	_ = d.CreateRole(&Role{ID: "r-ancestor", PermissionIDs: []string{"p-ancestor"}, Active: true})
	_ = d.CreateRole(&Role{ID: "r-frozen", PermissionIDs: []string{"p-frozen"}, Inherits: []string{"r-ancestor"}, Active: false})
	_ = d.CreateRole(&Role{ID: "r-live", PermissionIDs: []string{"p-live"}, Active: true})
	_ = d.CreateUser(&User{ID: "u1", RoleIDs: []string{"r-frozen", "r-live"}, Active: true})

	perms, _ := d.ResolvePermissions("u1")
	if len(perms) != 1 || perms[0].ID != "p-live" {
		ids := make([]string, 0, len(perms))
		for _, p := range perms {
			ids = append(ids, p.ID)
		}
		t.Fatalf("expected only p-live, got %v", ids)
	}
}

func TestResolveIncludesInactivePermissions(t *testing.T) {
	d := NewDirectory()
	_ = d.CreatePermission(&Permission{ID: "p1", Resource: "a", Actions: []string{"x"}, Active: false})
	_ = d.CreateUser(&User{ID: "u1", PermissionIDs: []string{"p1"}, Active: true})

	// inactive permissions resolve; deciding what inactive means is the
	// evaluator's job
	perms, _ := d.ResolvePermissions("u1")
	if len(perms) != 1 || perms[0].Active {
		t.Fatalf("expected the inactive permission in the result, got %v", perms)
	}
}

func TestResolveToleratesDanglingAndCycles(t *testing.T) {
	d := NewDirectory()
	_ = d.CreatePermission(&Permission{ID: "p1", Resource: "a", Actions: []string{"x"}, Active: true})
	_ = d.CreateRole(&Role{ID: "r-a", Inherits: []string{"r-b"}, Active: true})
	_ = d.CreateRole(&Role{ID: "r-b", PermissionIDs: []string{"p1", "p-ghost"}, Inherits: []string{"r-a", "r-ghost"}, Active: true})
	_ = d.CreateUser(&User{ID: "u1", RoleIDs: []string{"r-a", "r-ghost"}, Active: true})

	perms, err := d.ResolvePermissions("u1")
	if err != nil {
		t.Fatalf("resolve with cycle: %v", err)
	}
	if len(perms) != 1 || perms[0].ID != "p1" {
		t.Fatalf("expected p1 through the cycle, got %v", perms)
	}
}

func TestUsersWithRoleCoversInheritors(t *testing.T) {
	d := NewDirectory()
	_ = d.CreateRole(&Role{ID: "r-base", Active: true})
	_ = d.CreateRole(&Role{ID: "r-super", Inherits: []string{"r-base"}, Active: true})
	_ = d.CreateUser(&User{ID: "u-direct", RoleIDs: []string{"r-base"}, Active: true})
	_ = d.CreateUser(&User{ID: "u-inherit", RoleIDs: []string{"r-super"}, Active: true})
	_ = d.CreateUser(&User{ID: "u-none", Active: true})

	got := d.UsersWithRole("r-base")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "u-direct" || got[1] != "u-inherit" {
		t.Fatalf("expected [u-direct u-inherit], got %v", got)
	}
}

func TestUsersWithPermissionCoversAllPaths(t *testing.T) {
	d := NewDirectory()
	_ = d.CreatePermission(&Permission{ID: "p1", Resource: "a", Actions: []string{"x"}, Active: true})
	_ = d.CreateRole(&Role{ID: "r-holder", PermissionIDs: []string{"p1"}, Active: true})
	// activity is ignored for invalidation targeting
	_ = d.CreateRole(&Role{ID: "r-via", Inherits: []string{"r-holder"}, Active: false})
	_ = d.CreateUser(&User{ID: "u-direct", PermissionIDs: []string{"p1"}, Active: true})
	_ = d.CreateUser(&User{ID: "u-role", RoleIDs: []string{"r-holder"}, Active: true})
	_ = d.CreateUser(&User{ID: "u-inherit", RoleIDs: []string{"r-via"}, Active: true})
	_ = d.CreateUser(&User{ID: "u-none", Active: true})

	got := d.UsersWithPermission("p1")
	sort.Strings(got)
	want := []string{"u-direct", "u-inherit", "u-role"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDirectorySizes(t *testing.T) {
	d := NewDirectory()
	_ = d.CreateUser(&User{ID: "u1", Active: true})
	_ = d.CreateUser(&User{ID: "u2", Active: false})
	_ = d.CreateRole(&Role{ID: "r1", Active: true})
	_ = d.CreatePermission(&Permission{ID: "p1", Resource: "a", Actions: []string{"x"}, Active: true})
	_ = d.CreatePermission(&Permission{ID: "p2", Resource: "b", Actions: []string{"x"}, Active: false})

	s := d.Sizes()
	if s.Users != 2 || s.ActiveUsers != 1 {
		t.Fatalf("unexpected user counts: %+v", s)
	}
	if s.Roles != 1 || s.ActiveRoles != 1 {
		t.Fatalf("unexpected role counts: %+v", s)
	}
	if s.Permissions != 2 || s.ActivePermissions != 1 {
		t.Fatalf("unexpected permission counts: %+v", s)
	}
}

func TestSetLastLoginAndDeletes(t *testing.T) {
	d := NewDirectory()
	_ = d.CreateUser(&User{ID: "u1", Active: true})

	stamp := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if err := d.SetLastLogin("u1", stamp); err != nil {
		t.Fatalf("set last login: %v", err)
	}
	u, _ := d.GetUser("u1")
	if !u.LastLoginAt.Equal(stamp) {
		t.Fatalf("expected last login %v, got %v", stamp, u.LastLoginAt)
	}

	if err := d.DeleteUser("u1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := d.DeleteUser("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}
