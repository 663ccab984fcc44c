package portlets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campusportal/portal-rest/internal/principal"
	"github.com/campusportal/portal-rest/internal/rbac"
)

// Repository is the persistence the service needs.
type Repository interface {
	All(ctx context.Context) ([]Definition, error)
	ByFName(ctx context.Context, fname string) (Definition, error)
	SavePreference(ctx context.Context, portletID int64, pref Preference) (Preference, error)
}

// Authorizer answers render and manage checks for portlets.
type Authorizer interface {
	CanRender(ctx context.Context, subject principal.Principal, portletID int64) (bool, error)
	CanManage(ctx context.Context, subject principal.Principal, portletID int64, state rbac.LifecycleState) (bool, error)
}

// Service applies portlet permissions on top of the registry.
type Service struct {
	repo   Repository
	authz  Authorizer
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, authz Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, logger: logger}
}

// Manageable lists the definitions viewer may manage in their current lifecycle state.
func (s *Service) Manageable(ctx context.Context, viewer principal.Principal) ([]Definition, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(all))
	for _, d := range all {
		ok, err := s.authz.CanManage(ctx, viewer, d.ID, d.LifecycleState)
		if err != nil {
			return nil, fmt.Errorf("portlets: can manage %s: %w", d.FName, err)
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Portlet returns the definition when viewer may render it. Unknown and unrenderable
// portlets are both reported as ErrForbidden.
func (s *Service) Portlet(ctx context.Context, viewer principal.Principal, fname string) (Definition, error) {
	def, err := s.repo.ByFName(ctx, fname)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Definition{}, ErrForbidden
		}
		return Definition{}, err
	}
	if err := s.requireRender(ctx, viewer, def); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// UpdatePreference stores pref on the portlet named fname.
func (s *Service) UpdatePreference(ctx context.Context, viewer principal.Principal, fname string, pref Preference) (Preference, error) {
	pref.Name = strings.TrimSpace(pref.Name)
	if pref.Name == "" {
		return Preference{}, ErrInvalidPreference
	}
	def, err := s.repo.ByFName(ctx, fname)
	if err != nil {
		return Preference{}, err
	}
	if err := s.requireRender(ctx, viewer, def); err != nil {
		return Preference{}, err
	}
	if _, exists := def.Preference(pref.Name); exists {
		s.logger.DebugContext(ctx, "updating portlet preference", slog.String("fname", fname), slog.String("preference", pref.Name))
	} else {
		s.logger.DebugContext(ctx, "adding portlet preference", slog.String("fname", fname), slog.String("preference", pref.Name))
	}
	return s.repo.SavePreference(ctx, def.ID, pref)
}

func (s *Service) requireRender(ctx context.Context, viewer principal.Principal, def Definition) error {
	ok, err := s.authz.CanRender(ctx, viewer, def.ID)
	if err != nil {
		return fmt.Errorf("portlets: can render %s: %w", def.FName, err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
