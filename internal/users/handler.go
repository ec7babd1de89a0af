package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/rbac"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

type userService interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	ResetPassword(ctx context.Context, id int64, password1, password2 string) (int64, error)
	Userinfo(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, actor rbac.Principal, username string, in UpdateInput) (int64, error)
	UpdateAvatar(ctx context.Context, actor rbac.Principal, username, avatar string) (int64, error)
	List(ctx context.Context, username string, filters shared.PageFilters) ([]User, shared.PagingInfo, error)
	SetSuperuser(ctx context.Context, actor rbac.Principal, id int64) (int64, error)
	SetActive(ctx context.Context, actor rbac.Principal, id int64) (int64, error)
	Delete(ctx context.Context, actor rbac.Principal, username string) (int64, error)
}

// Handler exposes the user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  userService
	validate *validator.Validate
}

// NewHandler builds the user Handler.
func NewHandler(logger *slog.Logger, service userService, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	u, err := h.service.Register(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, u)
}

type resetPasswordRequest struct {
	Password1 string `json:"password1" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required,min=8"`
}

// ResetPassword handles PUT /{pk}/password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	var in resetPasswordRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	count, err := h.service.ResetPassword(r.Context(), pk, in.Password1, in.Password2)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, countPayload(count))
}

// Userinfo handles GET /{username}.
func (h *Handler) Userinfo(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Userinfo(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, u)
}

// Me handles GET /me for the authenticated principal.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	u, err := h.service.Userinfo(r.Context(), actor.Username)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, u)
}

// Update handles PUT /{username}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requirePrincipal(w, r)
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
	count, err := h.service.Update(r.Context(), *actor, chi.URLParam(r, "username"), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, countPayload(count))
}

type avatarRequest struct {
	URL string `json:"url" validate:"required,max=255"`
}

// UpdateAvatar handles PUT /{username}/avatar.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	actor, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var in avatarRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	count, err := h.service.UpdateAvatar(r.Context(), *actor, chi.URLParam(r, "username"), in.URL)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, countPayload(count))
}

type userListPayload struct {
	Items  []User            `json:"items"`
	Paging shared.PagingInfo `json:"paging"`
}

// List handles GET / with optional username filter and paging.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.PageFiltersFromQuery(r)
	items, paging, err := h.service.List(r.Context(), r.URL.Query().Get("username"), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, userListPayload{Items: items, Paging: paging})
}

// SetSuperuser handles PUT /{pk}/super.
func (h *Handler) SetSuperuser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	count, err := h.service.SetSuperuser(r.Context(), *actor, pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, countPayload(count))
}

// SetActive handles PUT /{pk}/status.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	pk, ok := pathID(w, r)
	if !ok {
		return
	}
	count, err := h.service.SetActive(r.Context(), *actor, pk)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, countPayload(count))
}

// Delete handles DELETE /{username}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	count, err := h.service.Delete(r.Context(), *actor, chi.URLParam(r, "username"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, countPayload(count))
}

func countPayload(count int64) map[string]int64 {
	return map[string]int64{"count": count}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return pk, true
}

func requirePrincipal(w http.ResponseWriter, r *http.Request) (*rbac.Principal, bool) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil {
		httpx.Fail(w, http.StatusUnauthorized, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return p, true
}
