package permissions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusportal/portal-rest/internal/principal"
	"github.com/campusportal/portal-rest/internal/shared"
)

type fakeCatalog struct {
	owners     []Owner
	activities []Activity
	targets    map[int64][]Target
}

func (c fakeCatalog) Owners(ctx context.Context) ([]Owner, error) {
	return c.owners, nil
}

func (c fakeCatalog) Owner(ctx context.Context, ref string) (Owner, error) {
	for _, o := range c.owners {
		if o.FName == ref {
			return o, nil
		}
	}
	return Owner{}, ErrNotFound
}

func (c fakeCatalog) Activities(ctx context.Context, query string) ([]Activity, error) {
	return c.activities, nil
}

func (c fakeCatalog) SearchTargets(ctx context.Context, activityID int64, query string) ([]Target, error) {
	targets, ok := c.targets[activityID]
	if !ok {
		return nil, ErrNotFound
	}
	return matchTargets(targets, query), nil
}

func newTestRouter(f *fixture, catalog Catalog) http.Handler {
	h := NewHandler(nil, f.resolver(), catalog)
	r := chi.NewRouter()
	r.Route("/permissions", h.MountRoutes)
	return r
}

func serveAs(t *testing.T, handler http.Handler, username, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if username != "" {
		sess := shared.NewSession()
		sess.SetUser(username)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRejectsAnonymousViewer(t *testing.T) {
	router := newTestRouter(newFixture(), fakeCatalog{})

	for _, path := range []string{
		"/permissions/owners.json",
		"/permissions/activities.json",
		"/permissions/assignments/principal/alice.json",
		"/permissions/assignments/target/forum-x.json",
	} {
		rec := serveAs(t, router, "", path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestHandlerRejectsViewerWithoutCapability(t *testing.T) {
	rec := serveAs(t, newTestRouter(newFixture(), fakeCatalog{}), "mallory", "/permissions/assignments/principal/alice.json")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerAssignmentsForPrincipal(t *testing.T) {
	f := newFixture()
	f.groups.parents[alice] = []principal.Principal{students}
	f.store.records = []Record{
		grant("UP_PORTLET", "SUBSCRIBE", "portal-news", alice),
		grant("UP_PORTLET", "SUBSCRIBE", "forum-x", students),
	}
	router := newTestRouter(f, fakeCatalog{})

	rec := serveAs(t, router, "admin", "/permissions/assignments/principal/alice.json?includeInherited=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Assignments []ResolvedAssignment `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Assignments, 2)
	assert.Equal(t, "Forum X", body.Assignments[0].TargetName)
	assert.True(t, body.Assignments[0].Inherited)
	assert.Equal(t, "Portal News", body.Assignments[1].TargetName)
	assert.False(t, body.Assignments[1].Inherited)
}

func TestHandlerEmptyAssignmentsIsEmptyList(t *testing.T) {
	rec := serveAs(t, newTestRouter(newFixture(), fakeCatalog{}), "admin", "/permissions/assignments/target/nothing.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"assignments":[]}`, rec.Body.String())
}

func TestHandlerRejectsMalformedIncludeInherited(t *testing.T) {
	f := newFixture()
	rec := serveAs(t, newTestRouter(f, fakeCatalog{}), "admin", "/permissions/assignments/principal/alice.json?includeInherited=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.store.calls)
}

func TestHandlerUpstreamFaultIsServerError(t *testing.T) {
	f := newFixture()
	f.store.err = assert.AnError
	rec := serveAs(t, newTestRouter(f, fakeCatalog{}), "admin", "/permissions/assignments/principal/alice.json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestHandlerCatalogRoutes(t *testing.T) {
	catalog := fakeCatalog{
		owners: []Owner{{ID: 1, FName: "UP_PORTLET", Name: "Portlet Subscribe"}},
		activities: []Activity{
			{ID: 7, OwnerFName: "UP_PORTLET", FName: "SUBSCRIBE", Name: "Subscribe", TargetProvider: ProviderPortlets},
		},
		targets: map[int64][]Target{7: {
			{Key: "PORTLET_ID.3", Name: "Campus News"},
			{Key: "PORTLET_ID.4", Name: "Weather"},
		}},
	}
	router := newTestRouter(newFixture(), catalog)

	rec := serveAs(t, router, "admin", "/permissions/owners.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fname":"UP_PORTLET"`)

	rec = serveAs(t, router, "admin", "/permissions/owners/UP_PORTLET.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"owner":`)

	rec = serveAs(t, router, "admin", "/permissions/owners/UP_NOPE.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveAs(t, router, "admin", "/permissions/activities.json?q=sub")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"targetProviderKey":"portlets"`)

	rec = serveAs(t, router, "admin", "/permissions/7/targets.json?q=news")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"targets":[{"key":"PORTLET_ID.3","name":"Campus News"}]}`, rec.Body.String())

	rec = serveAs(t, router, "admin", "/permissions/seven/targets.json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
