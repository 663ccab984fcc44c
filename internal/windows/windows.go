// Package windows renders the portal's content windows as JSON views with their actions.
package windows

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusportal/portal-rest/internal/integration"
	"github.com/campusportal/portal-rest/internal/person"
	"github.com/campusportal/portal-rest/internal/portlets"
	"github.com/campusportal/portal-rest/internal/principal"
)

// Greeting preference and its fallback.
const (
	GreetingPreference = "MainController.greetingMessage"
	GreetingDefault    = "Good day"
)

// ClearedURLQuery finds the deep link for a user.
const ClearedURLQuery = "select url from cleared_urls where userid = $1"

// Portlets resolves a window's portlet definition for a viewer.
type Portlets interface {
	Portlet(ctx context.Context, viewer principal.Principal, fname string) (portlets.Definition, error)
}

// People resolves user attributes.
type People interface {
	Person(ctx context.Context, username string) (person.Person, error)
}

// Records runs integration queries.
type Records interface {
	Records(ctx context.Context, sql string, args ...any) ([]integration.Record, error)
}

// Config names the portlets backing each window.
type Config struct {
	GreetingFName string
	ClearedFName  string
}

// GreetingView is the greeting window model.
type GreetingView struct {
	Username        string `json:"username"`
	DisplayName     string `json:"displayName"`
	EmailAddress    string `json:"emailAddress"`
	GreetingMessage string `json:"greetingMessage"`
}

// Service builds window models.
type Service struct {
	portlets Portlets
	people   People
	records  Records
	cfg      Config
}

// NewService constructs a Service.
func NewService(p Portlets, people People, records Records, cfg Config) *Service {
	return &Service{portlets: p, people: people, records: records, cfg: cfg}
}

// Greeting renders the greeting window for viewer.
func (s *Service) Greeting(ctx context.Context, viewer principal.Principal) (GreetingView, error) {
	def, err := s.portlets.Portlet(ctx, viewer, s.cfg.GreetingFName)
	if err != nil {
		return GreetingView{}, err
	}
	view := GreetingView{Username: viewer.Key, GreetingMessage: GreetingDefault}
	if pref, ok := def.Preference(GreetingPreference); ok && len(pref.Values) > 0 {
		view.GreetingMessage = pref.Values[0]
	}
	p, err := s.people.Person(ctx, viewer.Key)
	switch {
	case errors.Is(err, person.ErrNotFound):
	case err != nil:
		return GreetingView{}, fmt.Errorf("windows: person %s: %w", viewer.Key, err)
	default:
		view.DisplayName = p.DisplayName
		view.EmailAddress = p.Email
	}
	return view, nil
}

// GreetingAction accepts a greeting window action. The window has no action state.
func (s *Service) GreetingAction(ctx context.Context, viewer principal.Principal) error {
	_, err := s.portlets.Portlet(ctx, viewer, s.cfg.GreetingFName)
	return err
}

// ClearedLogin renders the cleared4 window model.
func (s *Service) ClearedLogin(ctx context.Context, viewer principal.Principal) (map[string]string, error) {
	if _, err := s.portlets.Portlet(ctx, viewer, s.cfg.ClearedFName); err != nil {
		return nil, err
	}
	return map[string]string{"user.login.id": viewer.Key}, nil
}

// ClearedURL returns the deep link of viewer, or "" when none is registered.
func (s *Service) ClearedURL(ctx context.Context, viewer principal.Principal) (string, error) {
	if _, err := s.portlets.Portlet(ctx, viewer, s.cfg.ClearedFName); err != nil {
		return "", err
	}
	recs, err := s.records.Records(ctx, ClearedURLQuery, viewer.Key)
	if err != nil {
		return "", fmt.Errorf("windows: cleared url: %w", err)
	}
	if len(recs) == 0 {
		return "", nil
	}
	url, _ := recs[0].String("URL")
	return url, nil
}
