package dicts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

type stubRepo struct {
	typesByID   map[int64]*DictType
	typesByCode map[string]*DictType
	dataByID    map[int64]*DictData
	dataByLabel map[string]*DictData
	deleted     []int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		typesByID:   make(map[int64]*DictType),
		typesByCode: make(map[string]*DictType),
		dataByID:    make(map[int64]*DictData),
		dataByLabel: make(map[string]*DictData),
	}
}

func (r *stubRepo) addType(t *DictType) *stubRepo {
	r.typesByID[t.ID] = t
	r.typesByCode[t.Code] = t
	return r
}

func (r *stubRepo) addData(d *DictData) *stubRepo {
	r.dataByID[d.ID] = d
	r.dataByLabel[d.Label] = d
	return r
}

func (r *stubRepo) TypeByID(_ context.Context, id int64) (*DictType, error) {
	if t, ok := r.typesByID[id]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) TypeByCode(_ context.Context, code string) (*DictType, error) {
	if t, ok := r.typesByCode[code]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) TypeExists(_ context.Context, id int64) (bool, error) {
	_, ok := r.typesByID[id]
	return ok, nil
}

func (r *stubRepo) CreateType(_ context.Context, t *DictType) error {
	t.ID = int64(len(r.typesByID) + 1)
	r.addType(t)
	return nil
}

func (r *stubRepo) UpdateType(_ context.Context, t *DictType) (int64, error) {
	r.typesByID[t.ID] = t
	return 1, nil
}

func (r *stubRepo) DeleteType(_ context.Context, id int64) (int64, error) {
	t, ok := r.typesByID[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	r.deleted = append(r.deleted, id)
	delete(r.typesByCode, t.Code)
	delete(r.typesByID, id)
	for did, d := range r.dataByID {
		if d.TypeID == id {
			delete(r.dataByLabel, d.Label)
			delete(r.dataByID, did)
		}
	}
	return 1, nil
}

func (r *stubRepo) ListTypes(_ context.Context, _, _ string, filters shared.PageFilters) ([]DictType, shared.PagingInfo, error) {
	out := make([]DictType, 0, len(r.typesByID))
	for _, t := range r.typesByID {
		out = append(out, *t)
	}
	return out, shared.PagingInfo{Page: filters.Page, PageSize: filters.PageSize}, nil
}

func (r *stubRepo) DataByID(_ context.Context, id int64) (*DictData, error) {
	if d, ok := r.dataByID[id]; ok {
		return d, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) DataByLabel(_ context.Context, label string) (*DictData, error) {
	if d, ok := r.dataByLabel[label]; ok {
		return d, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) CreateData(_ context.Context, d *DictData) error {
	d.ID = int64(len(r.dataByID) + 1)
	r.addData(d)
	return nil
}

func (r *stubRepo) UpdateData(_ context.Context, d *DictData) (int64, error) {
	r.dataByID[d.ID] = d
	return 1, nil
}

func (r *stubRepo) DeleteData(_ context.Context, id int64) (int64, error) {
	d, ok := r.dataByID[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	delete(r.dataByLabel, d.Label)
	delete(r.dataByID, id)
	return 1, nil
}

func (r *stubRepo) ListData(_ context.Context, typeID int64, _ string, _ *int, filters shared.PageFilters) ([]DictData, shared.PagingInfo, error) {
	out := make([]DictData, 0, len(r.dataByID))
	for _, d := range r.dataByID {
		if typeID > 0 && d.TypeID != typeID {
			continue
		}
		out = append(out, *d)
	}
	return out, shared.PagingInfo{Page: filters.Page, PageSize: filters.PageSize}, nil
}

func newTestService(repo *stubRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo)
}

func TestCreateTypeRejectsDuplicateCode(t *testing.T) {
	repo := newStubRepo().addType(&DictType{ID: 1, Name: "Gender", Code: "sys_gender", Status: StatusEnabled})
	svc := newTestService(repo)

	_, err := svc.CreateType(context.Background(), TypeInput{Name: "Sex", Code: "sys_gender", Status: StatusEnabled})
	if !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("duplicate code: got %v", err)
	}
}

func TestCreateTypeStoresFields(t *testing.T) {
	svc := newTestService(newStubRepo())

	dt, err := svc.CreateType(context.Background(), TypeInput{Name: "Gender", Code: "sys_gender", Status: StatusEnabled, Remark: "user profile"})
	if err != nil {
		t.Fatalf("create type: %v", err)
	}
	if dt.ID == 0 {
		t.Fatal("type id not assigned")
	}
	if dt.Code != "sys_gender" || dt.Remark != "user profile" {
		t.Fatalf("fields not kept: %+v", dt)
	}
}

func TestUpdateTypeRecodeConflict(t *testing.T) {
	repo := newStubRepo().
		addType(&DictType{ID: 1, Name: "Gender", Code: "sys_gender", Status: StatusEnabled}).
		addType(&DictType{ID: 2, Name: "Status", Code: "sys_status", Status: StatusEnabled})
	svc := newTestService(repo)

	_, err := svc.UpdateType(context.Background(), 2, TypeInput{Name: "Status", Code: "sys_gender", Status: StatusEnabled})
	if !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("recode conflict: got %v", err)
	}
}

func TestDeleteTypeRemovesEntries(t *testing.T) {
	repo := newStubRepo().
		addType(&DictType{ID: 1, Name: "Gender", Code: "sys_gender", Status: StatusEnabled}).
		addData(&DictData{ID: 1, Label: "Male", Value: "1", TypeID: 1, Status: StatusEnabled})
	svc := newTestService(repo)

	if _, err := svc.DeleteType(context.Background(), 1); err != nil {
		t.Fatalf("delete type: %v", err)
	}
	if len(repo.dataByID) != 0 {
		t.Fatalf("entries must be removed with their type: %v", repo.dataByID)
	}
}

func TestDeleteTypeUnknown(t *testing.T) {
	svc := newTestService(newStubRepo())

	if _, err := svc.DeleteType(context.Background(), 99); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("unknown type: got %v", err)
	}
}

func TestCreateDataRejectsDuplicateLabel(t *testing.T) {
	repo := newStubRepo().
		addType(&DictType{ID: 1, Name: "Gender", Code: "sys_gender", Status: StatusEnabled}).
		addData(&DictData{ID: 1, Label: "Male", Value: "1", TypeID: 1, Status: StatusEnabled})
	svc := newTestService(repo)

	_, err := svc.CreateData(context.Background(), DataInput{Label: "Male", Value: "1", TypeID: 1, Status: StatusEnabled})
	if !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("duplicate label: got %v", err)
	}
}

func TestCreateDataChecksTypeReference(t *testing.T) {
	svc := newTestService(newStubRepo())

	_, err := svc.CreateData(context.Background(), DataInput{Label: "Male", Value: "1", TypeID: 7, Status: StatusEnabled})
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Fatalf("missing type: got %v", err)
	}
}

func TestUpdateDataRelabelConflict(t *testing.T) {
	repo := newStubRepo().
		addType(&DictType{ID: 1, Name: "Gender", Code: "sys_gender", Status: StatusEnabled}).
		addData(&DictData{ID: 1, Label: "Male", Value: "1", TypeID: 1, Status: StatusEnabled}).
		addData(&DictData{ID: 2, Label: "Female", Value: "2", TypeID: 1, Status: StatusEnabled})
	svc := newTestService(repo)

	_, err := svc.UpdateData(context.Background(), 2, DataInput{Label: "Male", Value: "2", TypeID: 1, Status: StatusEnabled})
	if !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("relabel conflict: got %v", err)
	}
}

func TestUpdateDataMovesBetweenTypes(t *testing.T) {
	repo := newStubRepo().
		addType(&DictType{ID: 1, Name: "Gender", Code: "sys_gender", Status: StatusEnabled}).
		addType(&DictType{ID: 2, Name: "Status", Code: "sys_status", Status: StatusEnabled}).
		addData(&DictData{ID: 1, Label: "Male", Value: "1", TypeID: 1, Status: StatusEnabled})
	svc := newTestService(repo)

	if _, err := svc.UpdateData(context.Background(), 1, DataInput{Label: "Male", Value: "1", TypeID: 2, Status: StatusEnabled}); err != nil {
		t.Fatalf("move entry: %v", err)
	}
	if repo.dataByID[1].TypeID != 2 {
		t.Fatalf("type reference not updated: %+v", repo.dataByID[1])
	}
}
