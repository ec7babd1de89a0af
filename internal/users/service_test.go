package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-admin/meridian-admin/internal/rbac"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

type stubRepo struct {
	byID       map[int64]*User
	byUsername map[string]*User
	emails     map[string]bool

	created       *User
	createdRoles  []int64
	toggledActive []int64
	toggledSuper  []int64
	deleted       []int64
}

func newStubRepo(users ...*User) *stubRepo {
	r := &stubRepo{
		byID:       make(map[int64]*User),
		byUsername: make(map[string]*User),
		emails:     make(map[string]bool),
	}
	for _, u := range users {
		r.byID[u.ID] = u
		r.byUsername[u.Username] = u
		r.emails[u.Email] = true
	}
	return r
}

func (r *stubRepo) ByID(_ context.Context, id int64) (*User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) ByUsername(_ context.Context, username string) (*User, error) {
	if u, ok := r.byUsername[username]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) EmailTaken(_ context.Context, email string) (bool, error) {
	return r.emails[email], nil
}

func (r *stubRepo) Create(_ context.Context, u *User, roleIDs []int64) error {
	u.ID = int64(len(r.byID) + 1)
	r.created = u
	r.createdRoles = roleIDs
	r.byID[u.ID] = u
	r.byUsername[u.Username] = u
	return nil
}

func (r *stubRepo) Update(_ context.Context, u *User, _ []int64) (int64, error) {
	r.byID[u.ID] = u
	return 1, nil
}

func (r *stubRepo) UpdateAvatar(_ context.Context, id int64, avatar string) (int64, error) {
	r.byID[id].Avatar = avatar
	return 1, nil
}

func (r *stubRepo) ResetPassword(_ context.Context, id int64, hash string) (int64, error) {
	r.byID[id].PasswordHash = hash
	return 1, nil
}

func (r *stubRepo) ToggleSuperuser(_ context.Context, id int64) (int64, error) {
	r.toggledSuper = append(r.toggledSuper, id)
	r.byID[id].IsSuperuser = !r.byID[id].IsSuperuser
	return 1, nil
}

func (r *stubRepo) ToggleActive(_ context.Context, id int64) (int64, error) {
	r.toggledActive = append(r.toggledActive, id)
	u := r.byID[id]
	if u.Status == StatusEnabled {
		u.Status = StatusDisabled
	} else {
		u.Status = StatusEnabled
	}
	return 1, nil
}

func (r *stubRepo) Delete(_ context.Context, id int64) (int64, error) {
	u, ok := r.byID[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	r.deleted = append(r.deleted, id)
	delete(r.byUsername, u.Username)
	delete(r.byID, id)
	return 1, nil
}

func (r *stubRepo) List(_ context.Context, _ string, filters shared.PageFilters) ([]User, shared.PagingInfo, error) {
	out := make([]User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, *u)
	}
	return out, shared.PagingInfo{Page: filters.Page, PageSize: filters.PageSize}, nil
}

func (r *stubRepo) Roles(_ context.Context, _ int64) ([]int64, []string, error) {
	return []int64{1}, []string{"viewer"}, nil
}

type okChecker struct{ missing map[int64]bool }

func (c okChecker) Exists(_ context.Context, id int64) (bool, error) {
	return !c.missing[id], nil
}

type recordingSessions struct {
	calls []string
}

func (s *recordingSessions) InvalidateAll(_ context.Context, prefix string, principalID int64, _ string) (int, error) {
	s.calls = append(s.calls, prefix)
	return 1, nil
}

type recordingPolicies struct {
	subjects []string
}

func (p *recordingPolicies) RemoveAllForSubject(sub string) (int, error) {
	p.subjects = append(p.subjects, sub)
	return 2, nil
}

func newTestService(repo *stubRepo) (*Service, *recordingSessions, *recordingPolicies) {
	sessions := &recordingSessions{}
	policies := &recordingPolicies{}
	svc := NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		repo,
		okChecker{},
		okChecker{},
		sessions,
		policies,
		"meridian:access",
		"meridian:refresh",
	)
	return svc, sessions, policies
}

func enabledUser(id int64, username string) *User {
	return &User{
		ID:       id,
		UUID:     "uuid-" + username,
		Username: username,
		Email:    username + "@example.com",
		Status:   StatusEnabled,
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newStubRepo()
	svc, _, _ := newTestService(repo)

	u, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Nickname: "Alice",
		Password: "correct horse",
		Email:    "alice@example.com",
		RoleIDs:  []int64{1},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.UUID == "" {
		t.Fatal("expected generated uuid")
	}
	if u.PasswordHash == "correct horse" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
	if len(repo.createdRoles) != 1 || repo.createdRoles[0] != 1 {
		t.Fatalf("roles not forwarded: %v", repo.createdRoles)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	repo := newStubRepo(enabledUser(1, "alice"))
	svc, _, _ := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Nickname: "A", Password: "xxxxxxxx", Email: "new@example.com",
	})
	if !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("duplicate username: got %v", err)
	}

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "bob", Nickname: "B", Password: "xxxxxxxx", Email: "alice@example.com",
	})
	if !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("duplicate email: got %v", err)
	}
	if repo.created != nil {
		t.Fatal("no account should be created")
	}
}

func TestRegisterRejectsMissingReferences(t *testing.T) {
	repo := newStubRepo()
	sessions := &recordingSessions{}
	policies := &recordingPolicies{}
	deptID := int64(9)
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo,
		okChecker{missing: map[int64]bool{9: true}}, okChecker{},
		sessions, policies, "a", "r")

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "bob", Nickname: "B", Password: "xxxxxxxx",
		Email: "bob@example.com", DeptID: &deptID,
	})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("missing dept: got %v", err)
	}
}

func TestResetPasswordMismatch(t *testing.T) {
	repo := newStubRepo(enabledUser(1, "alice"))
	svc, _, _ := newTestService(repo)

	_, err := svc.ResetPassword(context.Background(), 1, "one", "two")
	if !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("mismatch: got %v", err)
	}
}

func TestUpdateRequiresSelfOrSuperuser(t *testing.T) {
	repo := newStubRepo(enabledUser(1, "alice"), enabledUser(2, "bob"))
	svc, _, _ := newTestService(repo)

	actor := rbac.Principal{ID: 2, Username: "bob"}
	_, err := svc.Update(context.Background(), actor, "alice", UpdateInput{
		Username: "alice", Nickname: "A", Email: "alice@example.com",
	})
	if !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("non-superuser editing another account: got %v", err)
	}

	admin := rbac.Principal{ID: 3, Username: "root", IsSuperuser: true}
	if _, err := svc.Update(context.Background(), admin, "alice", UpdateInput{
		Username: "alice", Nickname: "Alice II", Email: "alice@example.com",
	}); err != nil {
		t.Fatalf("superuser update: %v", err)
	}
}

func TestSetSuperuserSelfDemotionBlocked(t *testing.T) {
	repo := newStubRepo(enabledUser(1, "root"))
	repo.byID[1].IsSuperuser = true
	svc, _, _ := newTestService(repo)

	actor := rbac.Principal{ID: 1, Username: "root", IsSuperuser: true}
	_, err := svc.SetSuperuser(context.Background(), actor, 1)
	if !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("self demotion: got %v", err)
	}
	if len(repo.toggledSuper) != 0 {
		t.Fatal("store must stay unchanged")
	}
	if !repo.byID[1].IsSuperuser {
		t.Fatal("flag flipped despite rejection")
	}
}

func TestSetActiveDisablingRevokesSessions(t *testing.T) {
	repo := newStubRepo(enabledUser(1, "root"), enabledUser(2, "alice"))
	svc, sessions, _ := newTestService(repo)

	actor := rbac.Principal{ID: 1, Username: "root", IsSuperuser: true}
	if _, err := svc.SetActive(context.Background(), actor, 2); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if repo.byID[2].Status != StatusDisabled {
		t.Fatal("account not disabled")
	}
	if len(sessions.calls) != 2 {
		t.Fatalf("expected both token prefixes revoked, got %v", sessions.calls)
	}

	// Re-enabling must not revoke anything further.
	sessions.calls = nil
	if _, err := svc.SetActive(context.Background(), actor, 2); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if len(sessions.calls) != 0 {
		t.Fatalf("unexpected revocation on enable: %v", sessions.calls)
	}
}

func TestSetActiveSelfBlocked(t *testing.T) {
	repo := newStubRepo(enabledUser(1, "root"))
	svc, _, _ := newTestService(repo)

	actor := rbac.Principal{ID: 1, Username: "root", IsSuperuser: true}
	if _, err := svc.SetActive(context.Background(), actor, 1); !errors.Is(err, shared.ErrForbidden) {
		t.Fatal("expected forbidden on own account")
	}
}

func TestDeleteCascades(t *testing.T) {
	repo := newStubRepo(enabledUser(1, "root"), enabledUser(2, "alice"))
	svc, sessions, policies := newTestService(repo)

	actor := rbac.Principal{ID: 1, Username: "root", IsSuperuser: true}
	if _, err := svc.Delete(context.Background(), actor, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != 2 {
		t.Fatalf("wrong rows deleted: %v", repo.deleted)
	}
	if len(sessions.calls) != 2 {
		t.Fatalf("sessions not purged: %v", sessions.calls)
	}
	if len(policies.subjects) != 1 || policies.subjects[0] != "uuid-alice" {
		t.Fatalf("policy cleanup missing: %v", policies.subjects)
	}
}

func TestPrincipalByID(t *testing.T) {
	repo := newStubRepo(enabledUser(7, "alice"))
	svc, _, _ := newTestService(repo)

	p, err := svc.PrincipalByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	if p.UUID != "uuid-alice" || !p.Active {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if len(p.RoleNames) != 1 || p.RoleNames[0] != "viewer" {
		t.Fatalf("roles missing: %+v", p)
	}
}
