package windows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusportal/portal-rest/internal/integration"
	"github.com/campusportal/portal-rest/internal/person"
	"github.com/campusportal/portal-rest/internal/portlets"
	"github.com/campusportal/portal-rest/internal/principal"
	"github.com/campusportal/portal-rest/internal/shared"
)

type fakePortlets struct {
	defs    map[string]portlets.Definition
	denied  map[string]bool
	viewers []principal.Principal
}

func (f *fakePortlets) Portlet(ctx context.Context, viewer principal.Principal, fname string) (portlets.Definition, error) {
	f.viewers = append(f.viewers, viewer)
	def, ok := f.defs[fname]
	if !ok || f.denied[viewer.Key] {
		return portlets.Definition{}, portlets.ErrForbidden
	}
	return def, nil
}

type fakePeople map[string]person.Person

func (f fakePeople) Person(ctx context.Context, username string) (person.Person, error) {
	p, ok := f[username]
	if !ok {
		return person.Person{}, person.ErrNotFound
	}
	return p, nil
}

type fakeRecords struct {
	urls map[string]string
	err  error
	args []any
}

func (f *fakeRecords) Records(ctx context.Context, sql string, args ...any) ([]integration.Record, error) {
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	url, ok := f.urls[args[0].(string)]
	if !ok {
		return nil, nil
	}
	return []integration.Record{{"URL": url}}, nil
}

type fixture struct {
	portlets *fakePortlets
	records  *fakeRecords
	router   http.Handler
}

func newFixture(greeting []string) *fixture {
	f := &fixture{
		portlets: &fakePortlets{
			defs: map[string]portlets.Definition{
				"greeting": {ID: 1, FName: "greeting", Preferences: []portlets.Preference{{Name: GreetingPreference, Values: greeting}}},
				"cleared4": {ID: 2, FName: "cleared4"},
			},
			denied: map[string]bool{"mallory": true},
		},
		records: &fakeRecords{urls: map[string]string{"alice": "https://cleared4.example.edu/deep/alice"}},
	}
	svc := NewService(f.portlets, fakePeople{
		"alice": {Username: "alice", DisplayName: "Alice Liddell", Email: "alice@example.edu"},
	}, f.records, Config{GreetingFName: "greeting", ClearedFName: "cleared4"})
	r := chi.NewRouter()
	r.Route("/windows", NewHandler(nil, svc).MountRoutes)
	f.router = r
	return f
}

func (f *fixture) serve(method, path, username string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if username != "" {
		sess := shared.NewSession()
		sess.SetUser(username)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGreetingUsesPreference(t *testing.T) {
	f := newFixture([]string{"Welcome back"})
	rec := f.serve(http.MethodGet, "/windows/greeting", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var view GreetingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, GreetingView{
		Username:        "alice",
		DisplayName:     "Alice Liddell",
		EmailAddress:    "alice@example.edu",
		GreetingMessage: "Welcome back",
	}, view)
}

func TestGreetingDefaultsAndUnknownPerson(t *testing.T) {
	f := newFixture(nil)
	rec := f.serve(http.MethodGet, "/windows/greeting", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	var view GreetingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, GreetingView{Username: "bob", GreetingMessage: GreetingDefault}, view)
}

func TestWindowsRequireLoginAndRender(t *testing.T) {
	f := newFixture(nil)
	for _, path := range []string{"/windows/greeting", "/windows/cleared4"} {
		assert.Equal(t, http.StatusUnauthorized, f.serve(http.MethodGet, path, "").Code, path)
		assert.Equal(t, http.StatusForbidden, f.serve(http.MethodGet, path, "mallory").Code, path)
	}
	for _, path := range []string{"/windows/greeting/action", "/windows/cleared4/action"} {
		assert.Equal(t, http.StatusUnauthorized, f.serve(http.MethodPost, path, "").Code, path)
		assert.Equal(t, http.StatusForbidden, f.serve(http.MethodPost, path, "mallory").Code, path)
	}
	assert.Equal(t, http.StatusNoContent, f.serve(http.MethodPost, "/windows/greeting/action", "alice").Code)
}

func TestClearedRender(t *testing.T) {
	f := newFixture(nil)
	rec := f.serve(http.MethodGet, "/windows/cleared4", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user.login.id":"alice"}`, rec.Body.String())
	assert.Equal(t, []principal.Principal{principal.User("alice")}, f.portlets.viewers)
}

func TestClearedActionRedirects(t *testing.T) {
	f := newFixture(nil)
	rec := f.serve(http.MethodPost, "/windows/cleared4/action", "alice")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://cleared4.example.edu/deep/alice", rec.Header().Get("Location"))
	assert.Equal(t, []any{"alice"}, f.records.args)

	assert.Equal(t, http.StatusNoContent, f.serve(http.MethodPost, "/windows/cleared4/action", "bob").Code)
}

func TestClearedActionFailure(t *testing.T) {
	f := newFixture(nil)
	f.records.err = errors.New("integration database down")
	rec := f.serve(http.MethodPost, "/windows/cleared4/action", "alice")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "integration database down")
}
