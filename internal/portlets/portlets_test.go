package portlets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusportal/portal-rest/internal/platform/db/dbtest"
	"github.com/campusportal/portal-rest/internal/principal"
	"github.com/campusportal/portal-rest/internal/rbac"
	"github.com/campusportal/portal-rest/internal/shared"
)

type memRepo struct {
	defs  []Definition
	saved []Preference
	err   error
}

func (m *memRepo) All(ctx context.Context) ([]Definition, error) {
	return m.defs, m.err
}

func (m *memRepo) ByFName(ctx context.Context, fname string) (Definition, error) {
	if m.err != nil {
		return Definition{}, m.err
	}
	for _, d := range m.defs {
		if d.FName == fname {
			return d, nil
		}
	}
	return Definition{}, ErrNotFound
}

func (m *memRepo) SavePreference(ctx context.Context, portletID int64, pref Preference) (Preference, error) {
	for _, d := range m.defs {
		if d.ID != portletID {
			continue
		}
		if existing, ok := d.Preference(pref.Name); ok {
			pref.ReadOnly = existing.ReadOnly
		}
	}
	m.saved = append(m.saved, pref)
	return pref, nil
}

type grants struct {
	render map[int64]bool
	manage map[int64]rbac.LifecycleState
	err    error
}

func (g grants) CanRender(ctx context.Context, subject principal.Principal, portletID int64) (bool, error) {
	return g.render[portletID], g.err
}

func (g grants) CanManage(ctx context.Context, subject principal.Principal, portletID int64, state rbac.LifecycleState) (bool, error) {
	allowed, ok := g.manage[portletID]
	return ok && allowed == state, g.err
}

func sampleDefs() []Definition {
	return []Definition{
		{ID: 1, FName: "campus-news", Name: "Campus News", LifecycleState: rbac.StatePublished, Categories: []string{"News"},
			Preferences: []Preference{{Name: "feedUrl", Values: []string{"https://news.example.edu/rss"}, ReadOnly: true}}},
		{ID: 2, FName: "weather", Name: "Weather", LifecycleState: rbac.StateCreated, Preferences: []Preference{}},
		{ID: 3, FName: "grades", Name: "Grades", LifecycleState: rbac.StateApproved, Preferences: []Preference{}},
	}
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "Campus life", CategoryName("CAMPUS LIFE"))
	assert.Equal(t, "Études", CategoryName(" études "))
	assert.Equal(t, "", CategoryName("  "))
	assert.Equal(t, []string{"Academics", "News"}, normalizeCategories([]string{"news", "ACADEMICS", "News", ""}))
}

func TestManageableFollowsLifecycleState(t *testing.T) {
	authz := grants{manage: map[int64]rbac.LifecycleState{
		1: rbac.StatePublished,
		2: rbac.StateApproved,
		3: rbac.StateApproved,
	}}
	svc := NewService(&memRepo{defs: sampleDefs()}, authz, nil)

	defs, err := svc.Manageable(context.Background(), principal.User("editor"))
	require.NoError(t, err)
	var fnames []string
	for _, d := range defs {
		fnames = append(fnames, d.FName)
	}
	assert.Equal(t, []string{"campus-news", "grades"}, fnames)
}

func TestPortletRequiresRender(t *testing.T) {
	svc := NewService(&memRepo{defs: sampleDefs()}, grants{render: map[int64]bool{1: true}}, nil)
	ctx := context.Background()

	def, err := svc.Portlet(ctx, principal.User("alice"), "campus-news")
	require.NoError(t, err)
	assert.Equal(t, int64(1), def.ID)

	_, err = svc.Portlet(ctx, principal.User("alice"), "weather")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Portlet(ctx, principal.User("alice"), "missing")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdatePreference(t *testing.T) {
	repo := &memRepo{defs: sampleDefs()}
	svc := NewService(repo, grants{render: map[int64]bool{1: true}}, nil)
	ctx := context.Background()

	saved, err := svc.UpdatePreference(ctx, principal.User("alice"), "campus-news", Preference{Name: "feedUrl", Values: []string{"https://x"}, ReadOnly: false})
	require.NoError(t, err)
	assert.True(t, saved.ReadOnly)
	assert.Equal(t, []string{"https://x"}, saved.Values)

	saved, err = svc.UpdatePreference(ctx, principal.User("alice"), "campus-news", Preference{Name: " maxItems ", Values: []string{"5"}})
	require.NoError(t, err)
	assert.Equal(t, "maxItems", saved.Name)
	assert.False(t, saved.ReadOnly)

	_, err = svc.UpdatePreference(ctx, principal.User("alice"), "missing", Preference{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdatePreference(ctx, principal.User("alice"), "weather", Preference{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdatePreference(ctx, principal.User("alice"), "campus-news", Preference{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidPreference)
	assert.Len(t, repo.saved, 2)
}

func TestServicePropagatesAuthorizationFailure(t *testing.T) {
	svc := NewService(&memRepo{defs: sampleDefs()}, grants{err: errors.New("store offline")}, nil)
	_, err := svc.Manageable(context.Background(), principal.User("alice"))
	assert.ErrorContains(t, err, "store offline")
}

func newRouter(repo *memRepo, authz grants) http.Handler {
	r := chi.NewRouter()
	r.Route("/v5-8", NewHandler(nil, NewService(repo, authz, nil)).MountRoutes)
	return r
}

func serve(t *testing.T, h http.Handler, method, path, body, username string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if username != "" {
		sess := shared.NewSession()
		sess.SetUser(username)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type recordingGrants struct {
	grants
	subjects []principal.Principal
}

func (g *recordingGrants) CanRender(ctx context.Context, subject principal.Principal, portletID int64) (bool, error) {
	g.subjects = append(g.subjects, subject)
	return g.grants.CanRender(ctx, subject, portletID)
}

func TestHandlerRoutes(t *testing.T) {
	repo := &memRepo{defs: sampleDefs()}
	router := newRouter(repo, grants{
		render: map[int64]bool{1: true},
		manage: map[int64]rbac.LifecycleState{2: rbac.StateCreated},
	})

	rec := serve(t, router, http.MethodGet, "/v5-8/portlets.json", "", "editor")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fname":"weather"`)
	assert.NotContains(t, rec.Body.String(), `"fname":"campus-news"`)

	rec = serve(t, router, http.MethodGet, "/v5-8/portlet/campus-news.json", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"portlet":{"id":1`)

	rec = serve(t, router, http.MethodGet, "/v5-8/portlet/weather.json", "", "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, router, http.MethodPost, "/v5-8/portlet/campus-news/preference", `{"name":"feedUrl","values":["a","b"],"readOnly":false}`, "alice")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"preference":{"name":"feedUrl","values":["a","b"],"readOnly":true}}`, rec.Body.String())

	rec = serve(t, router, http.MethodPost, "/v5-8/portlet/nope/preference", `{"name":"x","values":[]}`, "alice")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, router, http.MethodPost, "/v5-8/portlet/weather/preference", `{"name":"x","values":[]}`, "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, router, http.MethodPost, "/v5-8/portlet/campus-news/preference", `{"values":["a"]}`, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Preference.Name required")
}

func TestHandlerActsAsGuestWhenAnonymous(t *testing.T) {
	authz := &recordingGrants{grants: grants{render: map[int64]bool{1: true}}}
	r := chi.NewRouter()
	r.Route("/v5-8", NewHandler(nil, NewService(&memRepo{defs: sampleDefs()}, authz, nil)).MountRoutes)

	rec := serve(t, r, http.MethodGet, "/v5-8/portlet/campus-news.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []principal.Principal{principal.User(GuestUser)}, authz.subjects)
}

func TestRepositoryByFNameDecorates(t *testing.T) {
	q := &dbtest.Querier{QueryFunc: func(sql string, args []any) dbtest.Result {
		switch {
		case strings.Contains(sql, "FROM up_portlet_def"):
			return dbtest.Result{
				Columns: []string{"id", "fname", "name", "title", "description", "type", "lifecycle_state"},
				Rows:    [][]any{{int64(4), "campus-news", "Campus News", "News", "", "RSS", "published"}},
			}
		case strings.Contains(sql, "up_portlet_category"):
			return dbtest.Result{Columns: []string{"portlet_id", "name"}, Rows: [][]any{{int64(4), "NEWS"}, {int64(4), "campus LIFE"}}}
		case strings.Contains(sql, "up_portlet_param"):
			return dbtest.Result{Columns: []string{"portlet_id", "name", "value"}, Rows: [][]any{{int64(4), "disableDynamicTitle", "true"}}}
		case strings.Contains(sql, "up_portlet_pref"):
			return dbtest.Result{Columns: []string{"portlet_id", "name", "pref_values", "read_only"}, Rows: [][]any{{int64(4), "feedUrl", []string{"https://x"}, true}}}
		}
		return dbtest.Result{Err: errors.New("unexpected query")}
	}}

	def, err := NewPGRepository(q).ByFName(context.Background(), "campus-news")
	require.NoError(t, err)
	assert.Equal(t, rbac.StatePublished, def.LifecycleState)
	assert.Equal(t, []string{"Campus life", "News"}, def.Categories)
	assert.Equal(t, map[string]string{"disableDynamicTitle": "true"}, def.Parameters)
	assert.Equal(t, []Preference{{Name: "feedUrl", Values: []string{"https://x"}, ReadOnly: true}}, def.Preferences)
}

func TestRepositoryByFNameMissing(t *testing.T) {
	q := &dbtest.Querier{QueryFunc: func(sql string, args []any) dbtest.Result {
		return dbtest.Result{Columns: []string{"id"}}
	}}
	_, err := NewPGRepository(q).ByFName(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositorySavePreference(t *testing.T) {
	existing := map[string]bool{"feedUrl": true}
	q := &dbtest.Querier{QueryFunc: func(sql string, args []any) dbtest.Result {
		readOnly, ok := existing[args[1].(string)]
		if !ok {
			return dbtest.Result{Columns: []string{"read_only"}}
		}
		return dbtest.Result{Columns: []string{"read_only"}, Rows: [][]any{{readOnly}}}
	}}
	repo := NewPGRepository(q)
	ctx := context.Background()

	saved, err := repo.SavePreference(ctx, 4, Preference{Name: "feedUrl", Values: []string{"https://y"}})
	require.NoError(t, err)
	assert.True(t, saved.ReadOnly)

	saved, err = repo.SavePreference(ctx, 4, Preference{Name: "maxItems"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, saved.Values)

	var statements []string
	for _, c := range q.Calls() {
		statements = append(statements, strings.Fields(c.SQL)[0])
	}
	assert.Equal(t, []string{"SELECT", "UPDATE", "SELECT", "INSERT"}, statements)
	for _, tx := range q.Txs() {
		assert.True(t, tx.Committed)
	}
}
