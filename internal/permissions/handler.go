package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/shared"
)

// Catalog is the read side of the owner/activity registry used by the HTTP layer.
type Catalog interface {
	Owners(ctx context.Context) ([]Owner, error)
	Owner(ctx context.Context, ref string) (Owner, error)
	Activities(ctx context.Context, query string) ([]Activity, error)
	SearchTargets(ctx context.Context, activityID int64, query string) ([]Target, error)
}

// Handler exposes permission owners, activities, targets and assignments as JSON.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	catalog  Catalog
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, catalog Catalog) *Handler {
	return &Handler{logger: logger, resolver: resolver, catalog: catalog}
}

// MountRoutes registers permission routes. Path parameters may carry a ".json" suffix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/owners.json", h.listOwners)
	r.Get("/owners/{owner}", h.getOwner)
	r.Get("/activities.json", h.listActivities)
	r.Get("/{activity}/targets.json", h.listTargets)
	r.Get("/assignments/principal/{principal}", h.assignmentsForPrincipal)
	r.Get("/assignments/target/{target}", h.assignmentsOnTarget)
}

func (h *Handler) listOwners(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	owners, err := h.catalog.Owners(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"owners": nonNil(owners)})
}

func (h *Handler) getOwner(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	owner, err := h.catalog.Owner(r.Context(), pathParam(r, "owner"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"owner": owner})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	activities, err := h.catalog.Activities(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"activities": nonNil(activities)})
}

func (h *Handler) listTargets(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	activityID, err := strconv.ParseInt(chi.URLParam(r, "activity"), 10, 64)
	if err != nil {
		httpx.RespondError(w, h.logger, fmt.Errorf("activity id: %w", httpx.ErrValidation))
		return
	}
	targets, err := h.catalog.SearchTargets(r.Context(), activityID, r.URL.Query().Get("q"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"targets": nonNil(targets)})
}

func (h *Handler) assignmentsForPrincipal(w http.ResponseWriter, r *http.Request) {
	includeInherited, err := parseInherited(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	viewer, _ := shared.Viewer(r.Context())
	assignments, err := h.resolver.ResolveForPrincipal(r.Context(), viewer, pathParam(r, "principal"), includeInherited)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": nonNil(assignments)})
}

func (h *Handler) assignmentsOnTarget(w http.ResponseWriter, r *http.Request) {
	includeInherited, err := parseInherited(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	viewer, _ := shared.Viewer(r.Context())
	assignments, err := h.resolver.ResolveForTarget(r.Context(), viewer, pathParam(r, "target"), includeInherited)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": nonNil(assignments)})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	viewer, _ := shared.Viewer(r.Context())
	if err := h.resolver.AuthorizeViewer(r.Context(), viewer); err != nil {
		httpx.RespondError(w, h.logger, err)
		return false
	}
	return true
}

func pathParam(r *http.Request, name string) string {
	return strings.TrimSuffix(chi.URLParam(r, name), ".json")
}

func parseInherited(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("includeInherited"))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("includeInherited: %w", httpx.ErrValidation)
	}
	return v, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
