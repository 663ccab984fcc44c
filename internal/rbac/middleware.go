package rbac

import (
	"log/slog"
	"net/http"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/shared"
)

// Middleware wires capability checks into HTTP routes.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireCapability lets the request through only when the session user holds c.
// Anonymous requests get 401, users lacking the capability 403.
func (m Middleware) RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, ok := shared.Viewer(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "login required")
				return
			}
			granted, err := m.Service.Can(r.Context(), viewer, c)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require capability", slog.String("capability", c.String()), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !granted {
				httpx.Problem(w, http.StatusForbidden, http.StatusText(http.StatusForbidden), "missing "+c.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
