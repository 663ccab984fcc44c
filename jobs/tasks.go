package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campusportal/portal-rest/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGroupCacheFlush drops every cached group-membership list.
	TaskGroupCacheFlush = "groups:cache_flush"
	// GroupCacheFlushCron schedules TaskGroupCacheFlush.
	GroupCacheFlushCron = "*/15 * * * *"
)

// NewGroupCacheFlushTask constructs the flush task. It carries no payload.
func NewGroupCacheFlushTask() *asynq.Task {
	return asynq.NewTask(TaskGroupCacheFlush, nil)
}

// Flusher empties a cache and reports how many entries went away.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// GroupCacheFlushJob handles TaskGroupCacheFlush.
type GroupCacheFlushJob struct {
	Cache   Flusher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGroupCacheFlushJob wires dependencies for the flush handler.
func NewGroupCacheFlushJob(cache Flusher, logger *slog.Logger, metrics *jobmetrics.Metrics) *GroupCacheFlushJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupCacheFlushJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes flush tasks.
func (j *GroupCacheFlushJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Cache == nil {
		return errors.New("group cache flush: handler not configured")
	}
	tracker := j.Metrics.Track(TaskGroupCacheFlush)
	defer func() { err = tracker.End(err) }()

	n, err := j.Cache.Flush(ctx)
	if err != nil {
		j.Logger.ErrorContext(ctx, "flush group cache", slog.Int("deleted", n), slog.Any("error", err))
		return err
	}
	j.Metrics.AddFlushed(n)
	j.Logger.InfoContext(ctx, "flushed group cache", slog.String("job", TaskGroupCacheFlush), slog.Int("deleted", n))
	return nil
}
