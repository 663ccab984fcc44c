package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campusportal/portal-rest/internal/auth"
	"github.com/campusportal/portal-rest/internal/observability"
	"github.com/campusportal/portal-rest/internal/permissions"
	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/portlets"
	"github.com/campusportal/portal-rest/internal/rbac"
	"github.com/campusportal/portal-rest/internal/shared"
	"github.com/campusportal/portal-rest/internal/student"
	"github.com/campusportal/portal-rest/internal/windows"
	"github.com/campusportal/portal-rest/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	PermissionsHandler *permissions.Handler
	PortletsHandler    *portlets.Handler
	StudentHandler     *student.Handler
	WindowsHandler     *windows.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.PortletsHandler != nil {
		r.Route("/v5-8", params.PortletsHandler.MountRoutes)
	}
	if params.StudentHandler != nil {
		params.StudentHandler.MountRoutes(r)
	}
	if params.WindowsHandler != nil {
		r.Route("/windows", params.WindowsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireCapability(rbac.SuperUser))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
