package portlets

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/principal"
	"github.com/campusportal/portal-rest/internal/shared"
)

// GuestUser is the principal anonymous requests act as.
const GuestUser = "guest"

// Handler serves the portlet registry API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers portlet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/portlets.json", h.listManageable)
	r.Get("/portlet/{fname}", h.getPortlet)
	r.Post("/portlet/{fname}/preference", h.updatePreference)
}

func (h *Handler) listManageable(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.Manageable(r.Context(), viewer(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"portlets": defs})
}

func (h *Handler) getPortlet(w http.ResponseWriter, r *http.Request) {
	def, err := h.service.Portlet(r.Context(), viewer(r), strings.TrimSuffix(chi.URLParam(r, "fname"), ".json"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"portlet": def})
}

func (h *Handler) updatePreference(w http.ResponseWriter, r *http.Request) {
	var pref Preference
	if err := httpx.DecodeJSON(r, &pref); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.validator.Struct(pref); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fe.Namespace()+" "+fe.Tag())
			}
			httpx.Problem(w, http.StatusBadRequest, "Invalid preference", strings.Join(fields, ", "))
			return
		}
		httpx.RespondError(w, h.logger, err)
		return
	}
	saved, err := h.service.UpdatePreference(r.Context(), viewer(r), chi.URLParam(r, "fname"), pref)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"preference": saved})
}

func viewer(r *http.Request) principal.Principal {
	if p, ok := shared.Viewer(r.Context()); ok {
		return p
	}
	return principal.User(GuestUser)
}
