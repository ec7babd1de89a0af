package auth

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/rbac"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds the auth Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	pair, err := h.service.Login(r.Context(), in.Username, in.Password, ClientInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh handles POST /token/new.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, err.Error())
		return
	}
	pair, err := h.service.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, pair)
}

// Logout handles POST /logout and revokes the presented access token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil {
		httpx.Fail(w, http.StatusUnauthorized, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.service.Logout(r.Context(), p.ID, bearerToken(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, nil)
}

// LogoutOthers handles POST /logout/others and keeps only the current
// token alive.
func (h *Handler) LogoutOthers(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil {
		httpx.Fail(w, http.StatusUnauthorized, http.StatusUnauthorized, "authentication required")
		return
	}
	revoked, err := h.service.LogoutEverywhereElse(r.Context(), p.ID, bearerToken(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int{"revoked": revoked})
}

func bearerToken(r *http.Request) string {
	raw := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(raw, "Bearer "); ok {
		return after
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
