package menus

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/rbac"
)

type menuService interface {
	Create(ctx context.Context, in Input) (*Menu, error)
	Get(ctx context.Context, id int64) (*Menu, error)
	Tree(ctx context.Context) ([]*Node, error)
	Sidebar(ctx context.Context, roleIDs []int64) ([]*Node, error)
	Update(ctx context.Context, id int64, in Input) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// Handler exposes the menu management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  menuService
	validate *validator.Validate
}

// NewHandler builds the menu Handler.
func NewHandler(logger *slog.Logger, service menuService, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// Create handles POST /.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	m, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, m)
}

// Get handles GET /{pk}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.Get(r.Context(), pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, m)
}

// Tree handles GET / and returns the full forest.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.Tree(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, nodes)
}

// Sidebar handles GET /sidebar for the authenticated principal.
func (h *Handler) Sidebar(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil {
		httpx.Fail(w, http.StatusUnauthorized, http.StatusUnauthorized, "authentication required")
		return
	}
	nodes, err := h.service.Sidebar(r.Context(), p.RoleIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, nodes)
}

// Update handles PUT /{pk}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	var in Input
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

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return pk, true
}
