package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-admin/meridian-admin/internal/rbac"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// RepositoryPort defines data access methods for user accounts.
type RepositoryPort interface {
	ByID(ctx context.Context, id int64) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *User, roleIDs []int64) error
	Update(ctx context.Context, u *User, roleIDs []int64) (int64, error)
	UpdateAvatar(ctx context.Context, id int64, avatar string) (int64, error)
	ResetPassword(ctx context.Context, id int64, hash string) (int64, error)
	ToggleSuperuser(ctx context.Context, id int64) (int64, error)
	ToggleActive(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, username string, filters shared.PageFilters) ([]User, shared.PagingInfo, error)
	Roles(ctx context.Context, userID int64) ([]int64, []string, error)
}

// DeptChecker verifies department references.
type DeptChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// RoleChecker verifies role references.
type RoleChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// SessionInvalidator revokes active tokens for a principal.
type SessionInvalidator interface {
	InvalidateAll(ctx context.Context, prefix string, principalID int64, exceptToken string) (int, error)
}

// PolicyCleaner bulk-removes authorization rules for a subject.
type PolicyCleaner interface {
	RemoveAllForSubject(sub string) (int, error)
}

// Service handles user business logic.
type Service struct {
	logger        *slog.Logger
	repo          RepositoryPort
	depts         DeptChecker
	roles         RoleChecker
	sessions      SessionInvalidator
	policies      PolicyCleaner
	accessPrefix  string
	refreshPrefix string
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, depts DeptChecker, roles RoleChecker, sessions SessionInvalidator, policies PolicyCleaner, accessPrefix, refreshPrefix string) *Service {
	return &Service{
		logger:        logger,
		repo:          repo,
		depts:         depts,
		roles:         roles,
		sessions:      sessions,
		policies:      policies,
		accessPrefix:  accessPrefix,
		refreshPrefix: refreshPrefix,
	}
}

// RegisterInput carries registration fields, already format-validated.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Nickname string `json:"nickname" validate:"required,max=20"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	DeptID   *int64 `json:"dept_id"`
	RoleIDs  []int64 `json:"role_ids"`
}

// Register creates a new account. Username and email must be unused and
// every referenced department and role must exist.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if _, err := s.repo.ByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("%w: username already registered", shared.ErrDuplicate)
	} else if !isNotFound(err) {
		return nil, err
	}
	taken, err := s.repo.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email already registered", shared.ErrDuplicate)
	}
	if err := s.checkReferences(ctx, in.DeptID, in.RoleIDs); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	u := &User{
		UUID:         uuid.NewString(),
		Username:     in.Username,
		Nickname:     in.Nickname,
		PasswordHash: string(hash),
		Email:        in.Email,
		Phone:        in.Phone,
		Status:       StatusEnabled,
		DeptID:       in.DeptID,
	}
	if err := s.repo.Create(ctx, u, in.RoleIDs); err != nil {
		return nil, err
	}
	return u, nil
}

// ResetPassword replaces the password after the two inputs match.
func (s *Service) ResetPassword(ctx context.Context, id int64, password1, password2 string) (int64, error) {
	if password1 != password2 {
		return 0, fmt.Errorf("%w: passwords do not match", shared.ErrForbidden)
	}
	if _, err := s.repo.ByID(ctx, id); err != nil {
		return 0, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password2), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.ResetPassword(ctx, id, string(hash))
}

// Userinfo returns the account with roles resolved.
func (s *Service) Userinfo(ctx context.Context, username string) (*User, error) {
	u, err := s.repo.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.attachRoles(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateInput carries mutable profile fields.
type UpdateInput struct {
	Username string  `json:"username" validate:"required,min=3,max=20"`
	Nickname string  `json:"nickname" validate:"required,max=20"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    string  `json:"phone" validate:"omitempty,e164"`
	DeptID   *int64  `json:"dept_id"`
	RoleIDs  []int64 `json:"role_ids"`
}

// Update modifies the target account. Non-superusers may only update
// themselves.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, username string, in UpdateInput) (int64, error) {
	if err := requireSelfOrSuper(actor, username); err != nil {
		return 0, err
	}
	target, err := s.repo.ByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	if target.Username != in.Username {
		if _, err := s.repo.ByUsername(ctx, in.Username); err == nil {
			return 0, fmt.Errorf("%w: username already registered", shared.ErrDuplicate)
		} else if !isNotFound(err) {
			return 0, err
		}
	}
	if target.Email != in.Email {
		taken, err := s.repo.EmailTaken(ctx, in.Email)
		if err != nil {
			return 0, err
		}
		if taken {
			return 0, fmt.Errorf("%w: email already registered", shared.ErrDuplicate)
		}
	}
	if err := s.checkReferences(ctx, in.DeptID, in.RoleIDs); err != nil {
		return 0, err
	}

	target.Username = in.Username
	target.Nickname = in.Nickname
	target.Email = in.Email
	target.Phone = in.Phone
	target.DeptID = in.DeptID
	return s.repo.Update(ctx, target, in.RoleIDs)
}

// UpdateAvatar sets the avatar for self or, as superuser, anyone.
func (s *Service) UpdateAvatar(ctx context.Context, actor rbac.Principal, username, avatar string) (int64, error) {
	if err := requireSelfOrSuper(actor, username); err != nil {
		return 0, err
	}
	target, err := s.repo.ByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return s.repo.UpdateAvatar(ctx, target.ID, avatar)
}

// List pages through accounts.
func (s *Service) List(ctx context.Context, username string, filters shared.PageFilters) ([]User, shared.PagingInfo, error) {
	return s.repo.List(ctx, username, filters)
}

// SetSuperuser toggles the superuser flag. A principal may never modify
// its own admin privileges, regardless of its current flags.
func (s *Service) SetSuperuser(ctx context.Context, actor rbac.Principal, id int64) (int64, error) {
	if actor.ID == id {
		return 0, fmt.Errorf("%w: cannot modify own admin privileges", shared.ErrForbidden)
	}
	if _, err := s.repo.ByID(ctx, id); err != nil {
		return 0, err
	}
	return s.repo.ToggleSuperuser(ctx, id)
}

// SetActive toggles the account status. Self-demotion is rejected before
// any mutation, and disabling an account revokes its active tokens.
func (s *Service) SetActive(ctx context.Context, actor rbac.Principal, id int64) (int64, error) {
	if actor.ID == id {
		return 0, fmt.Errorf("%w: cannot modify own account status", shared.ErrForbidden)
	}
	target, err := s.repo.ByID(ctx, id)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.ToggleActive(ctx, id)
	if err != nil {
		return 0, err
	}
	if target.Active() {
		// The account was just disabled.
		s.revokeSessions(ctx, id)
	}
	return count, nil
}

// Delete removes the account and cascades token and rule invalidation so
// no dangling policy references its uuid.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, username string) (int64, error) {
	if err := requireSelfOrSuper(actor, username); err != nil {
		return 0, err
	}
	target, err := s.repo.ByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.Delete(ctx, target.ID)
	if err != nil {
		return 0, err
	}
	s.revokeSessions(ctx, target.ID)
	if _, err := s.policies.RemoveAllForSubject(target.UUID); err != nil {
		s.logWarn("remove policies for deleted user", err)
	}
	return count, nil
}

// PrincipalByID resolves the middleware's view of the acting user.
func (s *Service) PrincipalByID(ctx context.Context, id int64) (*rbac.Principal, error) {
	u, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachRoles(ctx, u); err != nil {
		return nil, err
	}
	return &rbac.Principal{
		ID:           u.ID,
		UUID:         u.UUID,
		Username:     u.Username,
		IsSuperuser:  u.IsSuperuser,
		IsStaff:      u.IsStaff,
		IsMultiLogin: u.IsMultiLogin,
		Active:       u.Active(),
		DeptID:       u.DeptID,
		RoleIDs:      u.RoleIDs,
		RoleNames:    u.RoleNames,
	}, nil
}

func (s *Service) attachRoles(ctx context.Context, u *User) error {
	ids, names, err := s.repo.Roles(ctx, u.ID)
	if err != nil {
		return err
	}
	u.RoleIDs = ids
	u.RoleNames = names
	return nil
}

func (s *Service) checkReferences(ctx context.Context, deptID *int64, roleIDs []int64) error {
	if deptID != nil {
		ok, err := s.depts.Exists(ctx, *deptID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: department does not exist", shared.ErrNotFound)
		}
	}
	for _, roleID := range roleIDs {
		ok, err := s.roles.Exists(ctx, roleID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: role %d does not exist", shared.ErrNotFound, roleID)
		}
	}
	return nil
}

func (s *Service) revokeSessions(ctx context.Context, id int64) {
	for _, prefix := range []string{s.accessPrefix, s.refreshPrefix} {
		if _, err := s.sessions.InvalidateAll(ctx, prefix, id, ""); err != nil {
			s.logWarn("invalidate sessions", err)
		}
	}
}

func (s *Service) logWarn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err))
	}
}

func requireSelfOrSuper(actor rbac.Principal, username string) error {
	if actor.IsSuperuser {
		return nil
	}
	if !strings.EqualFold(actor.Username, username) {
		return fmt.Errorf("%w: not allowed to manage other accounts", shared.ErrForbidden)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
