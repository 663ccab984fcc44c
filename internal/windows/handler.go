package windows

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/shared"
)

// Handler serves window render and action routes.
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

// MountRoutes registers window routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/greeting", h.greeting)
	r.Post("/greeting/action", h.greetingAction)
	r.Get("/cleared4", h.cleared)
	r.Post("/cleared4/action", h.clearedAction)
}

func (h *Handler) greeting(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.Viewer(r.Context())
	if !ok {
		httpx.RespondError(w, h.logger, httpx.ErrUnauthorized)
		return
	}
	view, err := h.service.Greeting(r.Context(), viewer)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) greetingAction(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.Viewer(r.Context())
	if !ok {
		httpx.RespondError(w, h.logger, httpx.ErrUnauthorized)
		return
	}
	if err := h.service.GreetingAction(r.Context(), viewer); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cleared(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.Viewer(r.Context())
	if !ok {
		httpx.RespondError(w, h.logger, httpx.ErrUnauthorized)
		return
	}
	view, err := h.service.ClearedLogin(r.Context(), viewer)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) clearedAction(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.Viewer(r.Context())
	if !ok {
		httpx.RespondError(w, h.logger, httpx.ErrUnauthorized)
		return
	}
	url, err := h.service.ClearedURL(r.Context(), viewer)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if url == "" {
		h.logger.WarnContext(r.Context(), "no cleared url", slog.String("user", viewer.Key))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
