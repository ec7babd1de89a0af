package dicts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// RepositoryPort defines data access methods for dictionaries.
type RepositoryPort interface {
	TypeByID(ctx context.Context, id int64) (*DictType, error)
	TypeByCode(ctx context.Context, code string) (*DictType, error)
	TypeExists(ctx context.Context, id int64) (bool, error)
	CreateType(ctx context.Context, t *DictType) error
	UpdateType(ctx context.Context, t *DictType) (int64, error)
	DeleteType(ctx context.Context, id int64) (int64, error)
	ListTypes(ctx context.Context, name, code string, filters shared.PageFilters) ([]DictType, shared.PagingInfo, error)
	DataByID(ctx context.Context, id int64) (*DictData, error)
	DataByLabel(ctx context.Context, label string) (*DictData, error)
	CreateData(ctx context.Context, d *DictData) error
	UpdateData(ctx context.Context, d *DictData) (int64, error)
	DeleteData(ctx context.Context, id int64) (int64, error)
	ListData(ctx context.Context, typeID int64, label string, status *int, filters shared.PageFilters) ([]DictData, shared.PagingInfo, error)
}

// Service handles dictionary business logic.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo}
}

// TypeInput carries dictionary type fields.
type TypeInput struct {
	Name   string `json:"name" validate:"required,max=32"`
	Code   string `json:"code" validate:"required,max=32"`
	Status int    `json:"status" validate:"oneof=0 1"`
	Remark string `json:"remark" validate:"max=255"`
}

// CreateType adds a dictionary type with unique name and code.
func (s *Service) CreateType(ctx context.Context, in TypeInput) (*DictType, error) {
	if _, err := s.repo.TypeByCode(ctx, in.Code); err == nil {
		return nil, fmt.Errorf("%w: dictionary code already exists", shared.ErrDuplicate)
	} else if !isNotFound(err) {
		return nil, err
	}
	t := &DictType{
		Name:   in.Name,
		Code:   in.Code,
		Status: in.Status,
		Remark: in.Remark,
	}
	if err := s.repo.CreateType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetType returns one dictionary type.
func (s *Service) GetType(ctx context.Context, id int64) (*DictType, error) {
	return s.repo.TypeByID(ctx, id)
}

// UpdateType modifies the type. A re-coded type keeps the code unique.
func (s *Service) UpdateType(ctx context.Context, id int64, in TypeInput) (int64, error) {
	t, err := s.repo.TypeByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if t.Code != in.Code {
		if _, err := s.repo.TypeByCode(ctx, in.Code); err == nil {
			return 0, fmt.Errorf("%w: dictionary code already exists", shared.ErrDuplicate)
		} else if !isNotFound(err) {
			return 0, err
		}
	}
	t.Name = in.Name
	t.Code = in.Code
	t.Status = in.Status
	t.Remark = in.Remark
	return s.repo.UpdateType(ctx, t)
}

// DeleteType removes the type and every entry under it.
func (s *Service) DeleteType(ctx context.Context, id int64) (int64, error) {
	if _, err := s.repo.TypeByID(ctx, id); err != nil {
		return 0, err
	}
	return s.repo.DeleteType(ctx, id)
}

// ListTypes pages through types.
func (s *Service) ListTypes(ctx context.Context, name, code string, filters shared.PageFilters) ([]DictType, shared.PagingInfo, error) {
	return s.repo.ListTypes(ctx, name, code, filters)
}

// DataInput carries dictionary entry fields.
type DataInput struct {
	Label  string `json:"label" validate:"required,max=32"`
	Value  string `json:"value" validate:"required,max=32"`
	Sort   int    `json:"sort" validate:"gte=0"`
	Status int    `json:"status" validate:"oneof=0 1"`
	Remark string `json:"remark" validate:"max=255"`
	TypeID int64  `json:"type_id" validate:"required"`
}

// CreateData adds an entry with a unique label under an existing type.
func (s *Service) CreateData(ctx context.Context, in DataInput) (*DictData, error) {
	if _, err := s.repo.DataByLabel(ctx, in.Label); err == nil {
		return nil, fmt.Errorf("%w: dictionary label already exists", shared.ErrDuplicate)
	} else if !isNotFound(err) {
		return nil, err
	}
	ok, err := s.repo.TypeExists(ctx, in.TypeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: dictionary type %d does not exist", shared.ErrInvalidInput, in.TypeID)
	}
	d := &DictData{
		Label:  in.Label,
		Value:  in.Value,
		Sort:   in.Sort,
		Status: in.Status,
		Remark: in.Remark,
		TypeID: in.TypeID,
	}
	if err := s.repo.CreateData(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetData returns one entry.
func (s *Service) GetData(ctx context.Context, id int64) (*DictData, error) {
	return s.repo.DataByID(ctx, id)
}

// UpdateData modifies the entry, keeping the label unique and the type
// reference valid.
func (s *Service) UpdateData(ctx context.Context, id int64, in DataInput) (int64, error) {
	d, err := s.repo.DataByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if d.Label != in.Label {
		if _, err := s.repo.DataByLabel(ctx, in.Label); err == nil {
			return 0, fmt.Errorf("%w: dictionary label already exists", shared.ErrDuplicate)
		} else if !isNotFound(err) {
			return 0, err
		}
	}
	ok, err := s.repo.TypeExists(ctx, in.TypeID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: dictionary type %d does not exist", shared.ErrInvalidInput, in.TypeID)
	}
	d.Label = in.Label
	d.Value = in.Value
	d.Sort = in.Sort
	d.Status = in.Status
	d.Remark = in.Remark
	d.TypeID = in.TypeID
	return s.repo.UpdateData(ctx, d)
}

// DeleteData removes the entry.
func (s *Service) DeleteData(ctx context.Context, id int64) (int64, error) {
	if _, err := s.repo.DataByID(ctx, id); err != nil {
		return 0, err
	}
	return s.repo.DeleteData(ctx, id)
}

// ListData pages through entries.
func (s *Service) ListData(ctx context.Context, typeID int64, label string, status *int, filters shared.PageFilters) ([]DictData, shared.PagingInfo, error) {
	return s.repo.ListData(ctx, typeID, label, status, filters)
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
