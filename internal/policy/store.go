// Package policy holds the (subject, path, method) authorization rules and
// (subject, role) group bindings behind a casbin enforcer. Tuple uniqueness
// is enforced here, in the enforcer and the backing unique index, never by
// callers.
package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

//go:embed model.conf
var embeddedModel string

// The rule sentinels wrap the shared taxonomy so the boundary translator
// can map them without importing this package.
var (
	// ErrDuplicateRule indicates the full tuple already exists.
	ErrDuplicateRule = fmt.Errorf("rule already exists: %w", shared.ErrDuplicate)
	// ErrRuleNotFound indicates the tuple does not exist.
	ErrRuleNotFound = fmt.Errorf("rule not found: %w", shared.ErrNotFound)
)

// Rule is a p-rule tuple: subject is a role name or a principal uuid,
// object the request path, action the HTTP method.
type Rule struct {
	Subject string `json:"sub" validate:"required"`
	Object  string `json:"path" validate:"required"`
	Action  string `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
}

// Group is a g-rule tuple binding a principal uuid to a role name.
type Group struct {
	UUID string `json:"uuid" validate:"required"`
	Role string `json:"role" validate:"required"`
}

// StoredRule is a raw rule row as persisted, for management listings.
type StoredRule struct {
	ID    int64  `json:"id"`
	PType string `json:"ptype"`
	V0    string `json:"v0"`
	V1    string `json:"v1"`
	V2    string `json:"v2"`
}

// RuleFilter narrows management listings.
type RuleFilter struct {
	PType   string
	Subject string
	shared.PageFilters
}

// Store wraps a synced casbin enforcer over the sys_casbin_rule table.
type Store struct {
	enforcer *casbin.SyncedEnforcer
	pool     *pgxpool.Pool
}

// NewStore builds the enforcer with the pgx adapter and loads the rule set.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	m, err := casbinmodel.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("policy: load model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, newPgxAdapter(pool))
	if err != nil {
		return nil, fmt.Errorf("policy: new enforcer: %w", err)
	}
	return &Store{enforcer: enforcer, pool: pool}, nil
}

// NewMemoryStore builds an adapter-less store. Rules live only in memory;
// used by tests and embedded setups.
func NewMemoryStore() (*Store, error) {
	m, err := casbinmodel.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("policy: load model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("policy: new enforcer: %w", err)
	}
	return &Store{enforcer: enforcer}, nil
}

// Enforce decides whether sub may perform act on obj, following g-rule
// role bindings. Exact string matching on object and action.
func (s *Store) Enforce(sub, obj, act string) (bool, error) {
	allowed, err := s.enforcer.Enforce(sub, obj, act)
	if err != nil {
		return false, fmt.Errorf("policy: enforce: %w", err)
	}
	return allowed, nil
}

// AddPolicy inserts one p-rule. Fails with ErrDuplicateRule when the tuple
// already exists; the rule set is unchanged on failure.
func (s *Store) AddPolicy(r Rule) error {
	added, err := s.enforcer.AddPolicy(r.Subject, r.Object, r.Action)
	if err != nil {
		return fmt.Errorf("policy: add: %w", err)
	}
	if !added {
		return ErrDuplicateRule
	}
	return nil
}

// AddPolicies inserts p-rules, skipping tuples that already exist.
// Returns the number actually added.
func (s *Store) AddPolicies(rules []Rule) (int, error) {
	count := 0
	for _, r := range rules {
		err := s.AddPolicy(r)
		if errors.Is(err, ErrDuplicateRule) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// UpdatePolicy replaces one p-rule. The replacement runs as a remove
// followed by an add so it stays on the adapter's basic interface;
// casbin's own UpdatePolicy demands a persist.UpdatableAdapter and
// panics on adapters without one.
func (s *Store) UpdatePolicy(old, updated Rule) error {
	has, err := s.enforcer.HasPolicy(old.Subject, old.Object, old.Action)
	if err != nil {
		return fmt.Errorf("policy: update: %w", err)
	}
	if !has {
		return ErrRuleNotFound
	}
	has, err = s.enforcer.HasPolicy(updated.Subject, updated.Object, updated.Action)
	if err != nil {
		return fmt.Errorf("policy: update: %w", err)
	}
	if has {
		return ErrDuplicateRule
	}

	removed, err := s.enforcer.RemovePolicy(old.Subject, old.Object, old.Action)
	if err != nil {
		return fmt.Errorf("policy: update remove: %w", err)
	}
	if !removed {
		return ErrRuleNotFound
	}
	if _, err := s.enforcer.AddPolicy(updated.Subject, updated.Object, updated.Action); err != nil {
		// Restore the removed rule so a failed update does not lose it.
		if _, restoreErr := s.enforcer.AddPolicy(old.Subject, old.Object, old.Action); restoreErr != nil {
			return fmt.Errorf("policy: update add: %w (restore failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("policy: update add: %w", err)
	}
	return nil
}

// RemovePolicy deletes one p-rule. Fails with ErrRuleNotFound when absent.
func (s *Store) RemovePolicy(r Rule) error {
	removed, err := s.enforcer.RemovePolicy(r.Subject, r.Object, r.Action)
	if err != nil {
		return fmt.Errorf("policy: remove: %w", err)
	}
	if !removed {
		return ErrRuleNotFound
	}
	return nil
}

// RemovePolicies deletes matching p-rules and reports how many were removed.
func (s *Store) RemovePolicies(rules []Rule) (int, error) {
	count := 0
	for _, r := range rules {
		err := s.RemovePolicy(r)
		if errors.Is(err, ErrRuleNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// PoliciesForSubject lists p-rules whose subject matches, or all when empty.
func (s *Store) PoliciesForSubject(sub string) ([]Rule, error) {
	var raw [][]string
	var err error
	if sub == "" {
		raw, err = s.enforcer.GetPolicy()
	} else {
		raw, err = s.enforcer.GetFilteredPolicy(0, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("policy: list: %w", err)
	}
	rules := make([]Rule, 0, len(raw))
	for _, row := range raw {
		if len(row) < 3 {
			continue
		}
		rules = append(rules, Rule{Subject: row[0], Object: row[1], Action: row[2]})
	}
	return rules, nil
}

// AddGroup binds a principal uuid to a role. Duplicate tuples are rejected.
func (s *Store) AddGroup(g Group) error {
	added, err := s.enforcer.AddGroupingPolicy(g.UUID, g.Role)
	if err != nil {
		return fmt.Errorf("policy: add group: %w", err)
	}
	if !added {
		return ErrDuplicateRule
	}
	return nil
}

// AddGroups binds principals to roles, skipping existing tuples.
func (s *Store) AddGroups(groups []Group) (int, error) {
	count := 0
	for _, g := range groups {
		err := s.AddGroup(g)
		if errors.Is(err, ErrDuplicateRule) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RemoveGroup deletes one g-rule.
func (s *Store) RemoveGroup(g Group) error {
	removed, err := s.enforcer.RemoveGroupingPolicy(g.UUID, g.Role)
	if err != nil {
		return fmt.Errorf("policy: remove group: %w", err)
	}
	if !removed {
		return ErrRuleNotFound
	}
	return nil
}

// RemoveGroups deletes matching g-rules and reports the removed count.
func (s *Store) RemoveGroups(groups []Group) (int, error) {
	count := 0
	for _, g := range groups {
		err := s.RemoveGroup(g)
		if errors.Is(err, ErrRuleNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Groups lists all g-rules.
func (s *Store) Groups() ([]Group, error) {
	raw, err := s.enforcer.GetGroupingPolicy()
	if err != nil {
		return nil, fmt.Errorf("policy: list groups: %w", err)
	}
	groups := make([]Group, 0, len(raw))
	for _, row := range raw {
		if len(row) < 2 {
			continue
		}
		groups = append(groups, Group{UUID: row[0], Role: row[1]})
	}
	return groups, nil
}

// RolesForSubject returns role names reachable from the subject via g-rules.
func (s *Store) RolesForSubject(sub string) ([]string, error) {
	roles, err := s.enforcer.GetRolesForUser(sub)
	if err != nil {
		return nil, fmt.Errorf("policy: roles for subject: %w", err)
	}
	return roles, nil
}

// RemoveAllForSubject bulk-deletes every p-rule and g-rule (either side)
// referencing the subject. Deleting a role or a principal must not leave
// dangling rules behind. Returns the number of tuples removed.
func (s *Store) RemoveAllForSubject(sub string) (int, error) {
	count := 0

	p, err := s.enforcer.GetFilteredPolicy(0, sub)
	if err != nil {
		return 0, fmt.Errorf("policy: filter p-rules: %w", err)
	}
	count += len(p)
	if _, err := s.enforcer.RemoveFilteredPolicy(0, sub); err != nil {
		return 0, fmt.Errorf("policy: remove p-rules: %w", err)
	}

	gLeft, err := s.enforcer.GetFilteredGroupingPolicy(0, sub)
	if err != nil {
		return count, fmt.Errorf("policy: filter g-rules: %w", err)
	}
	count += len(gLeft)
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(0, sub); err != nil {
		return count, fmt.Errorf("policy: remove g-rules: %w", err)
	}

	gRight, err := s.enforcer.GetFilteredGroupingPolicy(1, sub)
	if err != nil {
		return count, fmt.Errorf("policy: filter g-rules by role: %w", err)
	}
	count += len(gRight)
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(1, sub); err != nil {
		return count, fmt.Errorf("policy: remove g-rules by role: %w", err)
	}

	return count, nil
}

// Rules pages through stored rule rows for management listings, newest
// first. Requires the database-backed store.
func (s *Store) Rules(ctx context.Context, filter RuleFilter) ([]StoredRule, shared.PagingInfo, error) {
	if s.pool == nil {
		return nil, shared.PagingInfo{}, errors.New("policy: rule listing requires database store")
	}
	filter.PageFilters = filter.Normalize(20, 100)

	query := `SELECT id, ptype, v0, v1, COALESCE(v2, '') FROM sys_casbin_rule WHERE 1=1`
	args := []any{}
	if filter.PType != "" {
		args = append(args, filter.PType)
		query += fmt.Sprintf(" AND ptype = $%d", len(args))
	}
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		query += fmt.Sprintf(" AND v0 = $%d", len(args))
	}
	args = append(args, filter.PageSize+1, filter.Offset())
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.PagingInfo{}, fmt.Errorf("policy: query rules: %w", err)
	}
	defer rows.Close()

	var result []StoredRule
	for rows.Next() {
		var r StoredRule
		if err := rows.Scan(&r.ID, &r.PType, &r.V0, &r.V1, &r.V2); err != nil {
			return nil, shared.PagingInfo{}, fmt.Errorf("policy: scan rule: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.PagingInfo{}, err
	}

	paging := shared.PagingInfo{Page: filter.Page, PageSize: filter.PageSize}
	if len(result) > filter.PageSize {
		result = result[:filter.PageSize]
		paging.HasNext = true
	}
	return result, paging, nil
}
