package roles

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

type roleService interface {
	Create(ctx context.Context, in CreateInput) (*Role, error)
	Get(ctx context.Context, id int64) (*Role, error)
	Update(ctx context.Context, id int64, in UpdateInput) (int64, error)
	AssignMenus(ctx context.Context, id int64, menuIDs []int64) error
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, name string, filters shared.PageFilters) ([]Role, shared.PagingInfo, error)
}

// Handler exposes the role management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  roleService
	validate *validator.Validate
}

// NewHandler builds the role Handler.
func NewHandler(logger *slog.Logger, service roleService, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// Create handles POST /.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	role, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, role)
}

// Get handles GET /{pk}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, role)
}

// Update handles PUT /{pk}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	count, err := h.service.Update(r.Context(), pk, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"count": count})
}

type assignMenusRequest struct {
	MenuIDs []int64 `json:"menu_ids" validate:"required"`
}

// AssignMenus handles PUT /{pk}/menus.
func (h *Handler) AssignMenus(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	var in assignMenusRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.service.AssignMenus(r.Context(), pk, in.MenuIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int{"count": len(in.MenuIDs)})
}

// Delete handles DELETE /{pk}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	count, err := h.service.Delete(r.Context(), pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"count": count})
}

type roleListPayload struct {
	Items  []Role            `json:"items"`
	Paging shared.PagingInfo `json:"paging"`
}

// List handles GET / with optional name filter and paging.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.PageFiltersFromQuery(r)
	items, paging, err := h.service.List(r.Context(), r.URL.Query().Get("name"), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, roleListPayload{Items: items, Paging: paging})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return pk, true
}
