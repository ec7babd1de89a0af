package depts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// RepositoryPort defines data access methods for departments.
type RepositoryPort interface {
	ByID(ctx context.Context, id int64) (*Dept, error)
	Exists(ctx context.Context, id int64) (bool, error)
	All(ctx context.Context) ([]Dept, error)
	ChildCount(ctx context.Context, id int64) (int, error)
	UserCount(ctx context.Context, id int64) (int, error)
	Parents(ctx context.Context) (map[int64]*int64, error)
	Create(ctx context.Context, d *Dept) error
	Update(ctx context.Context, d *Dept) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// Service handles department business logic.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo}
}

// Input carries department fields for create and update.
type Input struct {
	Name     string `json:"name" validate:"required,max=50"`
	ParentID *int64 `json:"parent_id"`
	Sort     int    `json:"sort" validate:"gte=0"`
	Leader   string `json:"leader" validate:"max=20"`
	Phone    string `json:"phone" validate:"max=20"`
	Email    string `json:"email" validate:"omitempty,email"`
	Status   int    `json:"status" validate:"oneof=0 1"`
}

// Create adds a department under an existing parent.
func (s *Service) Create(ctx context.Context, in Input) (*Dept, error) {
	if in.ParentID != nil {
		ok, err := s.repo.Exists(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: parent department does not exist", shared.ErrNotFound)
		}
	}
	d := &Dept{
		Name:     in.Name,
		ParentID: in.ParentID,
		Sort:     in.Sort,
		Leader:   in.Leader,
		Phone:    in.Phone,
		Email:    in.Email,
		Status:   in.Status,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns a single department.
func (s *Service) Get(ctx context.Context, id int64) (*Dept, error) {
	return s.repo.ByID(ctx, id)
}

// Tree returns every department arranged as a forest.
func (s *Service) Tree(ctx context.Context) ([]*Node, error) {
	items, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(items), nil
}

// Update modifies the department with the same reparenting rules menus
// follow: no self-parent, no cycles.
func (s *Service) Update(ctx context.Context, id int64, in Input) (int64, error) {
	d, err := s.repo.ByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if in.ParentID != nil {
		if *in.ParentID == id {
			return 0, fmt.Errorf("%w: department cannot be its own parent", shared.ErrInvalidInput)
		}
		ok, err := s.repo.Exists(ctx, *in.ParentID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: parent department does not exist", shared.ErrNotFound)
		}
		parents, err := s.repo.Parents(ctx)
		if err != nil {
			return 0, err
		}
		if wouldCycle(parents, id, in.ParentID) {
			return 0, fmt.Errorf("%w: reparenting would create a cycle", shared.ErrInvalidInput)
		}
	}

	d.Name = in.Name
	d.ParentID = in.ParentID
	d.Sort = in.Sort
	d.Leader = in.Leader
	d.Phone = in.Phone
	d.Email = in.Email
	d.Status = in.Status
	return s.repo.Update(ctx, d)
}

// Delete removes a department that has no children and no members.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	if _, err := s.repo.ByID(ctx, id); err != nil {
		return 0, err
	}
	children, err := s.repo.ChildCount(ctx, id)
	if err != nil {
		return 0, err
	}
	if children > 0 {
		return 0, fmt.Errorf("%w: department still has children", shared.ErrForbidden)
	}
	users, err := s.repo.UserCount(ctx, id)
	if err != nil {
		return 0, err
	}
	if users > 0 {
		return 0, fmt.Errorf("%w: department still has users", shared.ErrForbidden)
	}
	return s.repo.Delete(ctx, id)
}
