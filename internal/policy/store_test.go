package policy

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestAddPolicyRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	rule := Rule{Subject: "admin", Object: "/api/v1/users", Action: "GET"}

	if err := store.AddPolicy(rule); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := store.AddPolicy(rule)
	if !errors.Is(err, ErrDuplicateRule) {
		t.Fatalf("expected ErrDuplicateRule, got %v", err)
	}

	// Store state unchanged after the failed attempt.
	rules, err := store.PoliciesForSubject("admin")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
}

func TestRemovePolicyNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.RemovePolicy(Rule{Subject: "ghost", Object: "/x", Action: "GET"})
	if !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestBatchRemoveReportsCount(t *testing.T) {
	store := newTestStore(t)
	rules := []Rule{
		{Subject: "admin", Object: "/a", Action: "GET"},
		{Subject: "admin", Object: "/b", Action: "POST"},
	}
	if n, err := store.AddPolicies(rules); err != nil || n != 2 {
		t.Fatalf("batch add: n=%d err=%v", n, err)
	}

	// One of the three does not exist; only matching entries removed.
	n, err := store.RemovePolicies(append(rules, Rule{Subject: "admin", Object: "/c", Action: "GET"}))
	if err != nil {
		t.Fatalf("batch remove: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
}

func TestEnforceFollowsGroupRules(t *testing.T) {
	store := newTestStore(t)
	if err := store.AddPolicy(Rule{Subject: "ops", Object: "/api/v1/users", Action: "GET"}); err != nil {
		t.Fatalf("add policy: %v", err)
	}
	if err := store.AddGroup(Group{UUID: "uuid-1", Role: "ops"}); err != nil {
		t.Fatalf("add group: %v", err)
	}

	allowed, err := store.Enforce("uuid-1", "/api/v1/users", "GET")
	if err != nil || !allowed {
		t.Fatalf("expected allow via role binding, allowed=%v err=%v", allowed, err)
	}
	allowed, _ = store.Enforce("uuid-1", "/api/v1/users", "DELETE")
	if allowed {
		t.Fatal("method mismatch must deny")
	}
	allowed, _ = store.Enforce("uuid-2", "/api/v1/users", "GET")
	if allowed {
		t.Fatal("unbound principal must deny")
	}
}

func TestRemoveAllForSubject(t *testing.T) {
	store := newTestStore(t)
	mustAdd := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	mustAdd(store.AddPolicy(Rule{Subject: "ops", Object: "/a", Action: "GET"}))
	mustAdd(store.AddPolicy(Rule{Subject: "ops", Object: "/b", Action: "POST"}))
	mustAdd(store.AddPolicy(Rule{Subject: "other", Object: "/a", Action: "GET"}))
	mustAdd(store.AddGroup(Group{UUID: "uuid-1", Role: "ops"}))
	mustAdd(store.AddGroup(Group{UUID: "uuid-2", Role: "other"}))

	n, err := store.RemoveAllForSubject("ops")
	if err != nil {
		t.Fatalf("remove all: %v", err)
	}
	// Two p-rules plus the g-rule referencing the role.
	if n != 3 {
		t.Fatalf("expected 3 tuples removed, got %d", n)
	}

	if allowed, _ := store.Enforce("uuid-1", "/a", "GET"); allowed {
		t.Fatal("rules for deleted subject must be gone")
	}
	if allowed, _ := store.Enforce("uuid-2", "/a", "GET"); !allowed {
		t.Fatal("unrelated subject must keep its rules")
	}
}

func TestUpdatePolicy(t *testing.T) {
	store := newTestStore(t)
	old := Rule{Subject: "ops", Object: "/a", Action: "GET"}
	updated := Rule{Subject: "ops", Object: "/a", Action: "POST"}

	if err := store.UpdatePolicy(old, updated); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound for missing rule, got %v", err)
	}

	if err := store.AddPolicy(old); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.UpdatePolicy(old, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if allowed, _ := store.Enforce("ops", "/a", "POST"); !allowed {
		t.Fatal("updated rule must enforce")
	}
	if allowed, _ := store.Enforce("ops", "/a", "GET"); allowed {
		t.Fatal("old rule must be gone")
	}
}

// memoryAdapter mirrors the storage surface of the pgx adapter
// (persist.Adapter + persist.BatchAdapter, nothing more) so auto-save
// paths run against the same interface set as production.
type memoryAdapter struct {
	ops   []string
	rules [][]string
}

func (a *memoryAdapter) LoadPolicy(m casbinmodel.Model) error {
	for _, line := range a.rules {
		if err := persist.LoadPolicyArray(line, m); err != nil {
			return err
		}
	}
	return nil
}

func (a *memoryAdapter) SavePolicy(casbinmodel.Model) error { return nil }

func (a *memoryAdapter) AddPolicy(_ string, ptype string, rule []string) error {
	a.rules = append(a.rules, append([]string{ptype}, rule...))
	a.ops = append(a.ops, "add "+strings.Join(rule, " "))
	return nil
}

func (a *memoryAdapter) RemovePolicy(_ string, ptype string, rule []string) error {
	line := append([]string{ptype}, rule...)
	for i, r := range a.rules {
		if slices.Equal(r, line) {
			a.rules = append(a.rules[:i], a.rules[i+1:]...)
			break
		}
	}
	a.ops = append(a.ops, "remove "+strings.Join(rule, " "))
	return nil
}

func (a *memoryAdapter) RemoveFilteredPolicy(string, string, int, ...string) error { return nil }

func (a *memoryAdapter) AddPolicies(sec, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.AddPolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

func (a *memoryAdapter) RemovePolicies(sec, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.RemovePolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

func newPersistStore(t *testing.T, seed ...Rule) (*Store, *memoryAdapter) {
	t.Helper()
	adapter := &memoryAdapter{}
	for _, r := range seed {
		adapter.rules = append(adapter.rules, []string{"p", r.Subject, r.Object, r.Action})
	}
	m, err := casbinmodel.NewModelFromString(embeddedModel)
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	return &Store{enforcer: enforcer}, adapter
}

func TestUpdatePolicyPersistsThroughAdapter(t *testing.T) {
	old := Rule{Subject: "ops", Object: "/api/v1/sys/users", Action: "GET"}
	updated := Rule{Subject: "ops", Object: "/api/v1/sys/users", Action: "POST"}
	store, adapter := newPersistStore(t, old)

	if err := store.UpdatePolicy(old, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	if ok, _ := store.enforcer.HasPolicy(old.Subject, old.Object, old.Action); ok {
		t.Fatal("old rule must be gone from the enforcer")
	}
	if ok, _ := store.enforcer.HasPolicy(updated.Subject, updated.Object, updated.Action); !ok {
		t.Fatal("updated rule must be present in the enforcer")
	}

	wantOps := []string{
		"remove ops /api/v1/sys/users GET",
		"add ops /api/v1/sys/users POST",
	}
	if !slices.Equal(adapter.ops, wantOps) {
		t.Fatalf("adapter operations = %v, want %v", adapter.ops, wantOps)
	}
	wantRows := [][]string{{"p", "ops", "/api/v1/sys/users", "POST"}}
	if !slices.EqualFunc(adapter.rules, wantRows, slices.Equal) {
		t.Fatalf("stored rules = %v, want %v", adapter.rules, wantRows)
	}
}

func TestUpdatePolicyDuplicateTargetLeavesStorageUntouched(t *testing.T) {
	a := Rule{Subject: "ops", Object: "/api/v1/sys/roles", Action: "GET"}
	b := Rule{Subject: "ops", Object: "/api/v1/sys/roles", Action: "POST"}
	store, adapter := newPersistStore(t, a, b)

	if err := store.UpdatePolicy(a, b); !errors.Is(err, ErrDuplicateRule) {
		t.Fatalf("expected ErrDuplicateRule, got %v", err)
	}
	if len(adapter.ops) != 0 {
		t.Fatalf("storage must not be touched on a refused update, saw %v", adapter.ops)
	}
}
