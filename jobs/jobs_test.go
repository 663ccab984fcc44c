package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/campusportal/portal-rest/internal/jobs"
)

type fakeFlusher struct {
	deleted int
	err     error
	calls   int
}

func (f *fakeFlusher) Flush(ctx context.Context) (int, error) {
	f.calls++
	return f.deleted, f.err
}

func TestGroupCacheFlushTask(t *testing.T) {
	task := NewGroupCacheFlushTask()
	assert.Equal(t, TaskGroupCacheFlush, task.Type())
	assert.Empty(t, task.Payload())
}

func TestGroupCacheFlushJobHandle(t *testing.T) {
	flusher := &fakeFlusher{deleted: 4}
	job := NewGroupCacheFlushJob(flusher, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewGroupCacheFlushTask()))
	assert.Equal(t, 1, flusher.calls)
}

func TestGroupCacheFlushJobPropagatesFailure(t *testing.T) {
	boom := errors.New("redis: connection refused")
	job := NewGroupCacheFlushJob(&fakeFlusher{err: boom}, nil, nil)
	assert.ErrorIs(t, job.Handle(context.Background(), NewGroupCacheFlushTask()), boom)

	var unset *GroupCacheFlushJob
	assert.Error(t, unset.Handle(context.Background(), NewGroupCacheFlushTask()))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func health(t *testing.T, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(inspector, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func TestHealthReportsQueueDepth(t *testing.T) {
	rec := health(t, fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Active: 1, Retry: 3}})
	require.Equal(t, http.StatusOK, rec.Code)
	var got QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, QueueHealth{Queue: "default", Pending: 2, Active: 1, Retry: 3}, got)
}

func TestHealthWithoutInspector(t *testing.T) {
	rec := health(t, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0}`, rec.Body.String())
}

func TestHealthQueueUnavailable(t *testing.T) {
	rec := health(t, fakeInspector{err: errors.New("dial tcp: refused")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}
