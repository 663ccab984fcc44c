package student

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/shared"
)

// Handler serves student integration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers student routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/courses", h.courses)
	r.Get("/finAid", h.finAid)
}

func (h *Handler) courses(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Schedule(r.Context(), username(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) finAid(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Aid(r.Context(), username(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func username(r *http.Request) string {
	if p, ok := shared.Viewer(r.Context()); ok {
		return p.Key
	}
	return ""
}
