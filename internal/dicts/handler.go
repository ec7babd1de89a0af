package dicts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

type dictService interface {
	CreateType(ctx context.Context, in TypeInput) (*DictType, error)
	GetType(ctx context.Context, id int64) (*DictType, error)
	UpdateType(ctx context.Context, id int64, in TypeInput) (int64, error)
	DeleteType(ctx context.Context, id int64) (int64, error)
	ListTypes(ctx context.Context, name, code string, filters shared.PageFilters) ([]DictType, shared.PagingInfo, error)
	CreateData(ctx context.Context, in DataInput) (*DictData, error)
	GetData(ctx context.Context, id int64) (*DictData, error)
	UpdateData(ctx context.Context, id int64, in DataInput) (int64, error)
	DeleteData(ctx context.Context, id int64) (int64, error)
	ListData(ctx context.Context, typeID int64, label string, status *int, filters shared.PageFilters) ([]DictData, shared.PagingInfo, error)
}

// Handler exposes the dictionary endpoints.
type Handler struct {
	logger   *slog.Logger
	service  dictService
	validate *validator.Validate
}

// NewHandler builds the dictionary Handler.
func NewHandler(logger *slog.Logger, service dictService, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// CreateType handles POST /types.
func (h *Handler) CreateType(w http.ResponseWriter, r *http.Request) {
	var in TypeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	t, err := h.service.CreateType(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, t)
}

// GetType handles GET /types/{pk}.
func (h *Handler) GetType(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetType(r.Context(), pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, t)
}

// UpdateType handles PUT /types/{pk}.
func (h *Handler) UpdateType(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	var in TypeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	count, err := h.service.UpdateType(r.Context(), pk, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"count": count})
}

// DeleteType handles DELETE /types/{pk}.
func (h *Handler) DeleteType(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	count, err := h.service.DeleteType(r.Context(), pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"count": count})
}

type typeListPayload struct {
	Items  []DictType        `json:"items"`
	Paging shared.PagingInfo `json:"paging"`
}

// ListTypes handles GET /types with name and code filters and paging.
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	filters := shared.PageFiltersFromQuery(r)
	q := r.URL.Query()
	items, paging, err := h.service.ListTypes(r.Context(), q.Get("name"), q.Get("code"), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, typeListPayload{Items: items, Paging: paging})
}

// CreateData handles POST /datas.
func (h *Handler) CreateData(w http.ResponseWriter, r *http.Request) {
	var in DataInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	d, err := h.service.CreateData(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, d)
}

// GetData handles GET /datas/{pk}.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetData(r.Context(), pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, d)
}

// UpdateData handles PUT /datas/{pk}.
func (h *Handler) UpdateData(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	var in DataInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	count, err := h.service.UpdateData(r.Context(), pk, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"count": count})
}

// DeleteData handles DELETE /datas/{pk}.
func (h *Handler) DeleteData(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	count, err := h.service.DeleteData(r.Context(), pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"count": count})
}

type dataListPayload struct {
	Items  []DictData        `json:"items"`
	Paging shared.PagingInfo `json:"paging"`
}

// ListData handles GET /datas with type, label and status filters.
func (h *Handler) ListData(w http.ResponseWriter, r *http.Request) {
	filters := shared.PageFiltersFromQuery(r)
	q := r.URL.Query()
	typeID, _ := strconv.ParseInt(q.Get("type_id"), 10, 64)
	var status *int
	if raw := q.Get("status"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			status = &v
		}
	}
	items, paging, err := h.service.ListData(r.Context(), typeID, q.Get("label"), status, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, dataListPayload{Items: items, Paging: paging})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return pk, true
}
