package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// Handler exposes the audit trail endpoints.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler builds the audit Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// ListOpera handles GET /opera.
func (h *Handler) ListOpera(w http.ResponseWriter, r *http.Request) {
	items, paging, err := h.repo.ListOpera(r.Context(),
		r.URL.Query().Get("username"), shared.PageFiltersFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"items": items, "paging": paging})
}

// ListLogin handles GET /login.
func (h *Handler) ListLogin(w http.ResponseWriter, r *http.Request) {
	items, paging, err := h.repo.ListLogin(r.Context(),
		r.URL.Query().Get("username"), shared.PageFiltersFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"items": items, "paging": paging})
}

// Prune handles DELETE / with a retention window in days.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 1 {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	count, err := h.repo.PruneBefore(r.Context(), cutoff)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"count": count})
}
