package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-admin/meridian-admin/internal/audit"
	"github.com/meridian-admin/meridian-admin/internal/auth"
	"github.com/meridian-admin/meridian-admin/internal/depts"
	"github.com/meridian-admin/meridian-admin/internal/dicts"
	"github.com/meridian-admin/meridian-admin/internal/menus"
	"github.com/meridian-admin/meridian-admin/internal/observability"
	"github.com/meridian-admin/meridian-admin/internal/policy"
	"github.com/meridian-admin/meridian-admin/internal/rbac"
	"github.com/meridian-admin/meridian-admin/internal/roles"
	"github.com/meridian-admin/meridian-admin/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	RolesHandler   *roles.Handler
	MenusHandler   *menus.Handler
	DeptsHandler   *depts.Handler
	DictsHandler   *dicts.Handler
	PolicyHandler  *policy.Handler
	AuditHandler   *audit.Handler
	AuditRecorder  *audit.Recorder
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults. Every route
// under /api/v1 is declared with the permission identifier it demands, so
// the full access matrix is readable from this one file.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	m := params.RBACMiddleware

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(m.Authenticate)
		if params.AuditRecorder != nil {
			api.Use(audit.Middleware(params.AuditRecorder))
		}

		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", params.AuthHandler.Login)
			ar.Post("/token/new", params.AuthHandler.Refresh)
			ar.Post("/logout", params.AuthHandler.Logout)
			ar.Post("/logout/others", params.AuthHandler.LogoutOthers)
		})

		api.Route("/sys/users", func(ur chi.Router) {
			h := params.UsersHandler
			ur.Get("/me", h.Me)
			ur.With(m.RequirePermission("sys:user:add"), m.Authorize).Post("/", h.Register)
			ur.With(m.RequirePermission("sys:user:list"), m.Authorize).Get("/", h.List)
			ur.With(m.RequirePermission("sys:user:get"), m.Authorize).Get("/{username}", h.Userinfo)
			ur.With(m.RequirePermission("sys:user:edit"), m.Authorize).Put("/{username}", h.Update)
			ur.With(m.RequirePermission("sys:user:edit"), m.Authorize).Put("/{username}/avatar", h.UpdateAvatar)
			ur.With(m.RequirePermission("sys:user:del"), m.Authorize).Delete("/{username}", h.Delete)
			ur.With(m.RequirePermission("sys:user:pwd"), m.Authorize).Put("/{pk}/password", h.ResetPassword)
			ur.With(m.RequirePermission("sys:user:super"), m.Authorize).Put("/{pk}/super", h.SetSuperuser)
			ur.With(m.RequirePermission("sys:user:status"), m.Authorize).Put("/{pk}/status", h.SetActive)
		})

		api.Route("/sys/roles", func(rr chi.Router) {
			h := params.RolesHandler
			rr.With(m.RequirePermission("sys:role:add"), m.Authorize).Post("/", h.Create)
			rr.With(m.RequirePermission("sys:role:list"), m.Authorize).Get("/", h.List)
			rr.With(m.RequirePermission("sys:role:get"), m.Authorize).Get("/{pk}", h.Get)
			rr.With(m.RequirePermission("sys:role:edit"), m.Authorize).Put("/{pk}", h.Update)
			rr.With(m.RequirePermission("sys:role:menu"), m.Authorize).Put("/{pk}/menus", h.AssignMenus)
			rr.With(m.RequirePermission("sys:role:del"), m.Authorize).Delete("/{pk}", h.Delete)
		})

		api.Route("/sys/menus", func(mr chi.Router) {
			h := params.MenusHandler
			mr.Get("/sidebar", h.Sidebar)
			mr.With(m.RequirePermission("sys:menu:add"), m.Authorize).Post("/", h.Create)
			mr.With(m.RequirePermission("sys:menu:list"), m.Authorize).Get("/", h.Tree)
			mr.With(m.RequirePermission("sys:menu:get"), m.Authorize).Get("/{pk}", h.Get)
			mr.With(m.RequirePermission("sys:menu:edit"), m.Authorize).Put("/{pk}", h.Update)
			mr.With(m.RequirePermission("sys:menu:del"), m.Authorize).Delete("/{pk}", h.Delete)
		})

		api.Route("/sys/depts", func(dr chi.Router) {
			h := params.DeptsHandler
			dr.With(m.RequirePermission("sys:dept:add"), m.Authorize).Post("/", h.Create)
			dr.With(m.RequirePermission("sys:dept:list"), m.Authorize).Get("/", h.Tree)
			dr.With(m.RequirePermission("sys:dept:get"), m.Authorize).Get("/{pk}", h.Get)
			dr.With(m.RequirePermission("sys:dept:edit"), m.Authorize).Put("/{pk}", h.Update)
			dr.With(m.RequirePermission("sys:dept:del"), m.Authorize).Delete("/{pk}", h.Delete)
		})

		api.Route("/sys/dicts", func(dr chi.Router) {
			h := params.DictsHandler
			dr.With(m.RequirePermission("dict:type:add"), m.Authorize).Post("/types", h.CreateType)
			dr.With(m.RequirePermission("dict:type:list"), m.Authorize).Get("/types", h.ListTypes)
			dr.With(m.RequirePermission("dict:type:get"), m.Authorize).Get("/types/{pk}", h.GetType)
			dr.With(m.RequirePermission("dict:type:edit"), m.Authorize).Put("/types/{pk}", h.UpdateType)
			dr.With(m.RequirePermission("dict:type:del"), m.Authorize).Delete("/types/{pk}", h.DeleteType)
			dr.With(m.RequirePermission("dict:data:add"), m.Authorize).Post("/datas", h.CreateData)
			dr.With(m.RequirePermission("dict:data:list"), m.Authorize).Get("/datas", h.ListData)
			dr.With(m.RequirePermission("dict:data:get"), m.Authorize).Get("/datas/{pk}", h.GetData)
			dr.With(m.RequirePermission("dict:data:edit"), m.Authorize).Put("/datas/{pk}", h.UpdateData)
			dr.With(m.RequirePermission("dict:data:del"), m.Authorize).Delete("/datas/{pk}", h.DeleteData)
		})

		api.Route("/sys/policies", func(pr chi.Router) {
			h := params.PolicyHandler
			pr.With(m.RequirePermission("casbin:list"), m.Authorize).Get("/", h.List)
			pr.With(m.RequirePermission("casbin:p:get"), m.Authorize).Get("/p/{sub}", h.PoliciesForSubject)
			pr.With(m.RequirePermission("casbin:p:add"), m.Authorize).Post("/p", h.AddPolicy)
			pr.With(m.RequirePermission("casbin:p:add"), m.Authorize).Post("/ps", h.AddPolicies)
			pr.With(m.RequirePermission("casbin:p:edit"), m.Authorize).Put("/p", h.UpdatePolicy)
			pr.With(m.RequirePermission("casbin:p:del"), m.Authorize).Delete("/p", h.RemovePolicy)
			pr.With(m.RequirePermission("casbin:p:del"), m.Authorize).Delete("/ps", h.RemovePolicies)
			pr.With(m.RequirePermission("casbin:g:list"), m.Authorize).Get("/g", h.Groups)
			pr.With(m.RequirePermission("casbin:g:add"), m.Authorize).Post("/g", h.AddGroup)
			pr.With(m.RequirePermission("casbin:g:add"), m.Authorize).Post("/gs", h.AddGroups)
			pr.With(m.RequirePermission("casbin:g:del"), m.Authorize).Delete("/g", h.RemoveGroup)
			pr.With(m.RequirePermission("casbin:g:del"), m.Authorize).Delete("/gs", h.RemoveGroups)
			pr.With(m.RequirePermission("casbin:sub:del"), m.Authorize).Delete("/subject/{sub}", h.RemoveAllForSubject)
		})

		api.Route("/sys/logs", func(lr chi.Router) {
			h := params.AuditHandler
			lr.With(m.RequirePermission("log:opera:list"), m.Authorize).Get("/opera", h.ListOpera)
			lr.With(m.RequirePermission("log:login:list"), m.Authorize).Get("/login", h.ListLogin)
			lr.With(m.RequirePermission("log:prune"), m.Authorize).Delete("/", h.Prune)
		})
	})

	return r
}
