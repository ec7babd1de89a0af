package policy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// Handler exposes the authorization rule management endpoints.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	validate *validator.Validate
}

// NewHandler builds the policy Handler.
func NewHandler(logger *slog.Logger, store *Store, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, store: store, validate: validate}
}

// List handles GET / with ptype and subject filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := RuleFilter{
		PType:       r.URL.Query().Get("ptype"),
		Subject:     r.URL.Query().Get("sub"),
		PageFilters: shared.PageFiltersFromQuery(r),
	}
	rules, paging, err := h.store.Rules(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"items": rules, "paging": paging})
}

// PoliciesForSubject handles GET /p/{sub}.
func (h *Handler) PoliciesForSubject(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.PoliciesForSubject(chi.URLParam(r, "sub"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, rules)
}

// AddPolicy handles POST /p.
func (h *Handler) AddPolicy(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.decodeRule(w, r)
	if !ok {
		return
	}
	if err := h.store.AddPolicy(rule); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, rule)
}

type rulesRequest struct {
	Rules []Rule `json:"rules" validate:"required,min=1,dive"`
}

// AddPolicies handles POST /ps and reports how many rules were new.
func (h *Handler) AddPolicies(w http.ResponseWriter, r *http.Request) {
	var in rulesRequest
	if !h.decode(w, r, &in) {
		return
	}
	count, err := h.store.AddPolicies(in.Rules)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int{"count": count})
}

type updatePolicyRequest struct {
	Old Rule `json:"old" validate:"required"`
	New Rule `json:"new" validate:"required"`
}

// UpdatePolicy handles PUT /p.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var in updatePolicyRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.store.UpdatePolicy(in.Old, in.New); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, in.New)
}

// RemovePolicy handles DELETE /p.
func (h *Handler) RemovePolicy(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.decodeRule(w, r)
	if !ok {
		return
	}
	if err := h.store.RemovePolicy(rule); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, nil)
}

// RemovePolicies handles DELETE /ps.
func (h *Handler) RemovePolicies(w http.ResponseWriter, r *http.Request) {
	var in rulesRequest
	if !h.decode(w, r, &in) {
		return
	}
	count, err := h.store.RemovePolicies(in.Rules)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int{"count": count})
}

// Groups handles GET /g.
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.Groups()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, groups)
}

// AddGroup handles POST /g.
func (h *Handler) AddGroup(w http.ResponseWriter, r *http.Request) {
	var g Group
	if !h.decode(w, r, &g) {
		return
	}
	if err := h.store.AddGroup(g); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, g)
}

type groupsRequest struct {
	Groups []Group `json:"groups" validate:"required,min=1,dive"`
}

// AddGroups handles POST /gs.
func (h *Handler) AddGroups(w http.ResponseWriter, r *http.Request) {
	var in groupsRequest
	if !h.decode(w, r, &in) {
		return
	}
	count, err := h.store.AddGroups(in.Groups)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int{"count": count})
}

// RemoveGroup handles DELETE /g.
func (h *Handler) RemoveGroup(w http.ResponseWriter, r *http.Request) {
	var g Group
	if !h.decode(w, r, &g) {
		return
	}
	if err := h.store.RemoveGroup(g); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, nil)
}

// RemoveGroups handles DELETE /gs.
func (h *Handler) RemoveGroups(w http.ResponseWriter, r *http.Request) {
	var in groupsRequest
	if !h.decode(w, r, &in) {
		return
	}
	count, err := h.store.RemoveGroups(in.Groups)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int{"count": count})
}

// RemoveAllForSubject handles DELETE /subject/{sub} and removes every rule
// mentioning the subject.
func (h *Handler) RemoveAllForSubject(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.RemoveAllForSubject(chi.URLParam(r, "sub"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int{"count": count})
}

func (h *Handler) decodeRule(w http.ResponseWriter, r *http.Request) (Rule, bool) {
	var rule Rule
	if !h.decode(w, r, &rule) {
		return Rule{}, false
	}
	return rule, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
