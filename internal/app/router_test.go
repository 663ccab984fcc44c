package app

import (
	"context"
	"iter"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusportal/portal-rest/internal/observability"
	"github.com/campusportal/portal-rest/internal/permissions"
	"github.com/campusportal/portal-rest/internal/principal"
	"github.com/campusportal/portal-rest/internal/rbac"
	"github.com/campusportal/portal-rest/internal/shared"
	"github.com/campusportal/portal-rest/internal/windows"
	"github.com/campusportal/portal-rest/jobs"
)

// adminStore grants the super-user capability to user "admin" only.
type adminStore struct{}

func (adminStore) Select(ctx context.Context, f permissions.Filter) ([]permissions.Record, error) {
	admin := principal.User("admin")
	if f.Owner != rbac.OwnerSystem || !slices.Contains(f.Principals, admin) {
		return nil, nil
	}
	return []permissions.Record{{
		Owner: rbac.OwnerSystem, Activity: rbac.ActivityAllPermissions, Target: rbac.TargetAll,
		Principal: admin, Type: permissions.TypeGrant,
	}}, nil
}

type noGroups struct{}

func (noGroups) AllContainingGroups(ctx context.Context, p principal.Principal) iter.Seq2[principal.Principal, error] {
	return func(func(principal.Principal, error) bool) {}
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	csrf     *shared.CSRFManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		sessions: shared.NewSessionManager(client, "portal_session", time.Hour, false),
		csrf:     shared.NewCSRFManager("test-csrf-secret"),
	}
	svc := rbac.NewService(adminStore{}, noGroups{}, nil)
	h.router = NewRouter(RouterParams{
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager: h.sessions,
		CSRFManager:    h.csrf,
		RBACMiddleware: rbac.Middleware{Service: svc},
		Metrics:        observability.NewMetrics(),
		WindowsHandler: windows.NewHandler(nil, windows.NewService(nil, nil, nil, windows.Config{})),
		JobHandler:     jobs.NewHandler(nil, nil),
	})
	return h
}

// login stores a session for username and returns its cookie and CSRF token.
func (h *harness) login(t *testing.T, username string) (*http.Cookie, string) {
	t.Helper()
	sess := shared.NewSession()
	sess.SetUser(username)
	token, err := h.csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, h.sessions.Commit(context.Background(), rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], token
}

func (h *harness) do(method, path string, cookie *http.Cookie, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if token != "" {
		req.Header.Set(shared.CSRFHeader, token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIssuesSessionCookie(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	var names []string
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "portal_session")
}

func TestStateChangingRequestsNeedCSRFToken(t *testing.T) {
	h := newHarness(t)
	cookie, token := h.login(t, "alice")

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/windows/greeting/action", cookie, "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/windows/greeting/action", cookie, "forged").Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/windows/greeting/action", cookie, token).Code)
}

func TestJobsRequireSuperUser(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/jobs/health", nil, "").Code)

	alice, _ := h.login(t, "alice")
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/jobs/health", alice, "").Code)

	admin, _ := h.login(t, "admin")
	rec := h.do(http.MethodGet, "/jobs/health", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"default"`)
}

func TestUnknownRouteIsProblemJSON(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/healthz", nil, "")
	rec := h.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portal_http_requests_total{code="200",route="/healthz"} 1`)
}
