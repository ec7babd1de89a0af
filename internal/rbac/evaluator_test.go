package rbac

import (
	"context"
	"testing"

	"github.com/meridian-admin/meridian-admin/internal/policy"
)

type stubMenus struct {
	perms map[string][]string // role name -> identifiers
}

func (s stubMenus) PermissionsFor(_ context.Context, _ []int64, roleNames []string) ([]string, error) {
	var out []string
	for _, name := range roleNames {
		out = append(out, s.perms[name]...)
	}
	return out, nil
}

func newEvaluator(t *testing.T, mode PermissionMode, menus MenuSource) (*Evaluator, *policy.Store) {
	t.Helper()
	store, err := policy.NewMemoryStore()
	if err != nil {
		t.Fatalf("policy store: %v", err)
	}
	if menus == nil {
		menus = stubMenus{}
	}
	return NewEvaluator(store, menus, mode), store
}

func TestSuperuserBypass(t *testing.T) {
	eval, _ := newEvaluator(t, ModeCasbin, nil)
	p := Principal{ID: 1, UUID: "su-uuid", IsSuperuser: true, Active: true}

	for _, method := range []string{"GET", "POST", "DELETE"} {
		allowed, err := eval.Allowed(context.Background(), p, "/api/v1/anything", method, "")
		if err != nil || !allowed {
			t.Fatalf("superuser must bypass all rules, method=%s allowed=%v err=%v", method, allowed, err)
		}
	}
}

func TestRoleRuleScenario(t *testing.T) {
	eval, store := newEvaluator(t, ModeCasbin, nil)
	if err := store.AddPolicy(policy.Rule{Subject: "R", Object: "/api/v1/users", Action: "GET"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	u := Principal{ID: 2, UUID: "u-uuid", Active: true, RoleNames: []string{"R"}}

	allowed, err := eval.Allowed(context.Background(), u, "/api/v1/users", "GET", "")
	if err != nil || !allowed {
		t.Fatalf("GET must be allowed via role rule, allowed=%v err=%v", allowed, err)
	}
	allowed, err = eval.Allowed(context.Background(), u, "/api/v1/users", "DELETE", "")
	if err != nil || allowed {
		t.Fatalf("DELETE must be denied, allowed=%v err=%v", allowed, err)
	}
}

func TestOrSemanticsRoleRuleSufficient(t *testing.T) {
	eval, store := newEvaluator(t, ModeCasbin, nil)
	// No direct principal-level rule exists; a role-level rule alone permits.
	if err := store.AddPolicy(policy.Rule{Subject: "auditors", Object: "/api/v1/logs", Action: "GET"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	u := Principal{ID: 3, UUID: "u3-uuid", Active: true, RoleNames: []string{"auditors"}}

	allowed, err := eval.Allowed(context.Background(), u, "/api/v1/logs", "GET", "")
	if err != nil || !allowed {
		t.Fatalf("role coverage is additive, allowed=%v err=%v", allowed, err)
	}
}

func TestDirectPrincipalRule(t *testing.T) {
	eval, store := newEvaluator(t, ModeCasbin, nil)
	if err := store.AddPolicy(policy.Rule{Subject: "u4-uuid", Object: "/api/v1/export", Action: "POST"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	u := Principal{ID: 4, UUID: "u4-uuid", Active: true}

	allowed, err := eval.Allowed(context.Background(), u, "/api/v1/export", "POST", "")
	if err != nil || !allowed {
		t.Fatalf("direct principal rule must allow, allowed=%v err=%v", allowed, err)
	}
}

func TestGroupRuleRolesAreEffective(t *testing.T) {
	eval, store := newEvaluator(t, ModeCasbin, nil)
	if err := store.AddPolicy(policy.Rule{Subject: "ops", Object: "/api/v1/jobs", Action: "GET"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	// Role reachable only through a g-rule, not direct membership.
	if err := store.AddGroup(policy.Group{UUID: "u5-uuid", Role: "ops"}); err != nil {
		t.Fatalf("add group: %v", err)
	}
	u := Principal{ID: 5, UUID: "u5-uuid", Active: true}

	allowed, err := eval.Allowed(context.Background(), u, "/api/v1/jobs", "GET", "")
	if err != nil || !allowed {
		t.Fatalf("g-rule role must grant access, allowed=%v err=%v", allowed, err)
	}
}

func TestExactPathMatching(t *testing.T) {
	eval, store := newEvaluator(t, ModeCasbin, nil)
	if err := store.AddPolicy(policy.Rule{Subject: "R", Object: "/api/v1/users", Action: "GET"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	u := Principal{ID: 6, UUID: "u6-uuid", Active: true, RoleNames: []string{"R"}}

	// No wildcard expansion: a sub-path does not match.
	allowed, err := eval.Allowed(context.Background(), u, "/api/v1/users/1", "GET", "")
	if err != nil || allowed {
		t.Fatalf("sub-path must not match exact rule, allowed=%v err=%v", allowed, err)
	}
}

func TestRoleMenuMode(t *testing.T) {
	menus := stubMenus{perms: map[string][]string{
		"editors": {"post:add,post:edit"},
		"viewers": {"post:view"},
	}}
	eval, store := newEvaluator(t, ModeRoleMenu, menus)

	u := Principal{ID: 7, UUID: "u7-uuid", Active: true, RoleNames: []string{"editors"}}
	allowed, err := eval.Allowed(context.Background(), u, "/api/v1/posts", "POST", "post:add")
	if err != nil || !allowed {
		t.Fatalf("menu identifier must grant access, allowed=%v err=%v", allowed, err)
	}
	allowed, err = eval.Allowed(context.Background(), u, "/api/v1/posts", "DELETE", "post:del")
	if err != nil || allowed {
		t.Fatalf("missing identifier must deny, allowed=%v err=%v", allowed, err)
	}

	// Roles bound through g-rules contribute their menus too.
	if err := store.AddGroup(policy.Group{UUID: "u8-uuid", Role: "viewers"}); err != nil {
		t.Fatalf("add group: %v", err)
	}
	bound := Principal{ID: 8, UUID: "u8-uuid", Active: true}
	allowed, err = eval.Allowed(context.Background(), bound, "/api/v1/posts", "GET", "post:view")
	if err != nil || !allowed {
		t.Fatalf("g-rule role menus must count, allowed=%v err=%v", allowed, err)
	}
}
