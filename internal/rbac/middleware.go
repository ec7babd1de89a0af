package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/shared"
	"github.com/meridian-admin/meridian-admin/internal/token"
)

// PrincipalSource loads the acting user with roles resolved.
type PrincipalSource interface {
	PrincipalByID(ctx context.Context, id int64) (*Principal, error)
}

// SessionChecker reports whether an issued token is still active, so a
// forced logout takes effect before the token's natural expiry.
type SessionChecker interface {
	Exists(ctx context.Context, prefix string, principalID int64, tok string) (bool, error)
}

// DecisionCounter observes authorization outcomes for metrics.
type DecisionCounter interface {
	CountAuthz(outcome string)
}

// Middleware wires the authorization pipeline: credential extraction,
// principal resolution, permission stamping and enforcement. Each request
// walks the stages in declaration order and terminates in either the
// handler or a structured error.
type Middleware struct {
	Logger       *slog.Logger
	Codec        *token.Codec
	Sessions     SessionChecker
	Principals   PrincipalSource
	Evaluator    *Evaluator
	Decisions    DecisionCounter
	AccessPrefix string
	ExcludePaths []string
}

// Authenticate resolves the bearer credential into a principal. Requests
// without a credential, with a non-bearer scheme, or on an excluded path
// pass through anonymously; handlers behind Authorize reject those later.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		if raw == "" || m.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		scheme, tok, found := strings.Cut(raw, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || tok == "" {
			next.ServeHTTP(w, r)
			return
		}

		principalID, err := m.Codec.Validate(tok)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		active, err := m.Sessions.Exists(r.Context(), m.AccessPrefix, principalID, tok)
		if err != nil {
			m.logError("session lookup", err)
			httpx.RespondError(w, shared.ErrStoreUnavailable)
			return
		}
		if !active {
			// Revoked by logout or forced invalidation.
			httpx.RespondError(w, token.ErrTokenInvalid)
			return
		}

		principal, err := m.Principals.PrincipalByID(r.Context(), principalID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.RespondError(w, token.ErrTokenInvalid)
				return
			}
			m.logError("load principal", err)
			httpx.RespondError(w, shared.ErrStoreUnavailable)
			return
		}
		if !principal.Active {
			httpx.RespondError(w, shared.ErrUserLocked)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequirePermission stamps the route's permission identifier into the
// request context. Mount it before Authorize on the same route; Authorize
// reads the stamp, so the two stages must keep this order.
func (m Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPermission(r.Context(), perm)))
		})
	}
}

// Authorize enforces the evaluator's decision for the active route.
// Anonymous requests are rejected with 401; store failures fail closed.
func (m Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFromContext(r.Context())
		if principal == nil {
			httpx.Fail(w, http.StatusUnauthorized, http.StatusUnauthorized, "authentication required")
			return
		}

		allowed, err := m.Evaluator.Allowed(r.Context(), *principal, r.URL.Path, r.Method, PermissionFromContext(r.Context()))
		if err != nil {
			m.logError("evaluate permission", err)
			m.countDecision("error")
			httpx.RespondError(w, shared.ErrStoreUnavailable)
			return
		}
		if !allowed {
			m.countDecision("deny")
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		m.countDecision("allow")
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) excluded(path string) bool {
	for _, p := range m.ExcludePaths {
		if p == path {
			return true
		}
	}
	return false
}

func (m Middleware) countDecision(outcome string) {
	if m.Decisions != nil {
		m.Decisions.CountAuthz(outcome)
	}
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}
