package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ByID(ctx context.Context, id int64) (*Role, error)
	ByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) (int64, error)
	ReplaceMenus(ctx context.Context, roleID int64, menuIDs []int64) error
	MenuIDs(ctx context.Context, roleID int64) ([]int64, error)
	UserCount(ctx context.Context, roleID int64) (int, error)
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, name string, filters shared.PageFilters) ([]Role, shared.PagingInfo, error)
}

// MenuChecker verifies menu references.
type MenuChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// PolicyCleaner bulk-removes authorization rules for a subject.
type PolicyCleaner interface {
	RemoveAllForSubject(sub string) (int, error)
}

// Service handles role business logic.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	menus    MenuChecker
	policies PolicyCleaner
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, menus MenuChecker, policies PolicyCleaner) *Service {
	return &Service{logger: logger, repo: repo, menus: menus, policies: policies}
}

// CreateInput carries role creation fields.
type CreateInput struct {
	Name      string `json:"name" validate:"required,max=20"`
	DataScope int    `json:"data_scope" validate:"required,oneof=1 2"`
	Remark    string `json:"remark" validate:"max=255"`
}

// Create adds a role with a unique name.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Role, error) {
	if _, err := s.repo.ByName(ctx, in.Name); err == nil {
		return nil, fmt.Errorf("%w: role name already exists", shared.ErrDuplicate)
	} else if !isNotFound(err) {
		return nil, err
	}
	role := &Role{
		Name:      in.Name,
		DataScope: in.DataScope,
		Status:    StatusEnabled,
		Remark:    in.Remark,
	}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Get returns the role with its menu assignment resolved.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	role, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	menuIDs, err := s.repo.MenuIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	role.MenuIDs = menuIDs
	return role, nil
}

// UpdateInput carries mutable role fields.
type UpdateInput struct {
	Name      string `json:"name" validate:"required,max=20"`
	DataScope int    `json:"data_scope" validate:"required,oneof=1 2"`
	Status    int    `json:"status" validate:"oneof=0 1"`
	Remark    string `json:"remark" validate:"max=255"`
}

// Update modifies the role. A renamed role keeps the name unique.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (int64, error) {
	role, err := s.repo.ByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if role.Name != in.Name {
		if _, err := s.repo.ByName(ctx, in.Name); err == nil {
			return 0, fmt.Errorf("%w: role name already exists", shared.ErrDuplicate)
		} else if !isNotFound(err) {
			return 0, err
		}
	}
	role.Name = in.Name
	role.DataScope = in.DataScope
	role.Status = in.Status
	role.Remark = in.Remark
	return s.repo.Update(ctx, role)
}

// AssignMenus replaces the menu set after verifying each reference.
func (s *Service) AssignMenus(ctx context.Context, id int64, menuIDs []int64) error {
	if _, err := s.repo.ByID(ctx, id); err != nil {
		return err
	}
	for _, menuID := range menuIDs {
		ok, err := s.menus.Exists(ctx, menuID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: menu %d does not exist", shared.ErrNotFound, menuID)
		}
	}
	return s.repo.ReplaceMenus(ctx, id, menuIDs)
}

// Delete removes the role and cascades policy cleanup so no rule keeps
// referring to the vanished role name.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	role, err := s.repo.ByID(ctx, id)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	if _, err := s.policies.RemoveAllForSubject(role.Name); err != nil {
		if s.logger != nil {
			s.logger.Warn("remove policies for deleted role", slog.Any("error", err))
		}
	}
	return count, nil
}

// List pages through roles.
func (s *Service) List(ctx context.Context, name string, filters shared.PageFilters) ([]Role, shared.PagingInfo, error) {
	return s.repo.List(ctx, name, filters)
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
