package menus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// RepositoryPort defines data access methods for menus.
type RepositoryPort interface {
	ByID(ctx context.Context, id int64) (*Menu, error)
	Exists(ctx context.Context, id int64) (bool, error)
	All(ctx context.Context) ([]Menu, error)
	ByRoleIDs(ctx context.Context, roleIDs []int64) ([]Menu, error)
	ChildCount(ctx context.Context, id int64) (int, error)
	Parents(ctx context.Context) (map[int64]*int64, error)
	Create(ctx context.Context, m *Menu) error
	Update(ctx context.Context, m *Menu) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// Service handles menu business logic.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo}
}

// Input carries menu fields for create and update.
type Input struct {
	Title     string `json:"title" validate:"required,max=50"`
	Name      string `json:"name" validate:"required,max=50"`
	ParentID  *int64 `json:"parent_id"`
	Sort      int    `json:"sort" validate:"gte=0"`
	Icon      string `json:"icon" validate:"max=100"`
	Path      string `json:"path" validate:"max=200"`
	MenuType  int    `json:"menu_type" validate:"oneof=0 1 2"`
	Component string `json:"component" validate:"max=255"`
	Perms     string `json:"perms" validate:"max=100"`
	Status    int    `json:"status" validate:"oneof=0 1"`
	Show      bool   `json:"show"`
	Cache     bool   `json:"cache"`
	Remark    string `json:"remark" validate:"max=255"`
}

// Create adds a menu under an existing parent.
func (s *Service) Create(ctx context.Context, in Input) (*Menu, error) {
	if in.ParentID != nil {
		ok, err := s.repo.Exists(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: parent menu does not exist", shared.ErrNotFound)
		}
	}
	m := menuFromInput(in)
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns a single menu.
func (s *Service) Get(ctx context.Context, id int64) (*Menu, error) {
	return s.repo.ByID(ctx, id)
}

// Tree returns every menu arranged as a forest.
func (s *Service) Tree(ctx context.Context) ([]*Node, error) {
	items, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(items), nil
}

// Sidebar returns the menu forest visible to the given roles, buttons
// excluded.
func (s *Service) Sidebar(ctx context.Context, roleIDs []int64) ([]*Node, error) {
	items, err := s.repo.ByRoleIDs(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	visible := items[:0]
	for _, m := range items {
		if m.MenuType != TypeButton && m.Show {
			visible = append(visible, m)
		}
	}
	return BuildTree(visible), nil
}

// Update modifies the menu. A menu can never become its own parent, nor
// move under one of its descendants.
func (s *Service) Update(ctx context.Context, id int64, in Input) (int64, error) {
	m, err := s.repo.ByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if in.ParentID != nil {
		if *in.ParentID == id {
			return 0, fmt.Errorf("%w: menu cannot be its own parent", shared.ErrInvalidInput)
		}
		ok, err := s.repo.Exists(ctx, *in.ParentID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: parent menu does not exist", shared.ErrNotFound)
		}
		parents, err := s.repo.Parents(ctx)
		if err != nil {
			return 0, err
		}
		if wouldCycle(parents, id, in.ParentID) {
			return 0, fmt.Errorf("%w: reparenting would create a cycle", shared.ErrInvalidInput)
		}
	}

	updated := menuFromInput(in)
	updated.ID = m.ID
	return s.repo.Update(ctx, updated)
}

// Delete removes a leaf menu. Menus with children are refused.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	if _, err := s.repo.ByID(ctx, id); err != nil {
		return 0, err
	}
	children, err := s.repo.ChildCount(ctx, id)
	if err != nil {
		return 0, err
	}
	if children > 0 {
		return 0, fmt.Errorf("%w: menu still has children", shared.ErrForbidden)
	}
	return s.repo.Delete(ctx, id)
}

func menuFromInput(in Input) *Menu {
	return &Menu{
		Title:     in.Title,
		Name:      in.Name,
		ParentID:  in.ParentID,
		Sort:      in.Sort,
		Icon:      in.Icon,
		Path:      in.Path,
		MenuType:  in.MenuType,
		Component: in.Component,
		Perms:     in.Perms,
		Status:    in.Status,
		Show:      in.Show,
		Cache:     in.Cache,
		Remark:    in.Remark,
	}
}
