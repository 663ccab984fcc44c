package groups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/campusportal/portal-rest/internal/platform/cache"
	"github.com/campusportal/portal-rest/internal/principal"
)

// KeyPrefix namespaces cached containing-group lists.
const KeyPrefix = "groups:containing:"

// Cache keeps drained containing-group lists in Redis. Concurrent misses for the same
// principal share one walk of the source.
type Cache struct {
	source Source
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
	flight singleflight.Group
}

// NewCache wraps source.
func NewCache(source Source, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{source: source, client: client, ttl: ttl, logger: logger}
}

// AllContainingGroups yields the cached list, loading it from the source on a miss.
func (c *Cache) AllContainingGroups(ctx context.Context, p principal.Principal) iter.Seq2[principal.Principal, error] {
	return func(yield func(principal.Principal, error) bool) {
		keys, err := c.load(ctx, p)
		if err != nil {
			yield(principal.Principal{}, err)
			return
		}
		for _, key := range keys {
			if !yield(principal.Group(key), nil) {
				return
			}
		}
	}
}

// Flush drops every cached list.
func (c *Cache) Flush(ctx context.Context) (int, error) {
	return cache.ScanDelete(ctx, c.client, KeyPrefix+"*")
}

func (c *Cache) load(ctx context.Context, p principal.Principal) ([]string, error) {
	key := KeyPrefix + p.String()
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var keys []string
		if jerr := json.Unmarshal(raw, &keys); jerr == nil {
			return keys, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt group cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "group cache unavailable", slog.String("key", key), slog.Any("error", err))
	}

	ch := c.flight.DoChan(key, func() (any, error) {
		return c.fill(context.WithoutCancel(ctx), key, p)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

func (c *Cache) fill(ctx context.Context, key string, p principal.Principal) ([]string, error) {
	keys := []string{}
	for g, err := range c.source.AllContainingGroups(ctx, p) {
		if err != nil {
			return nil, err
		}
		keys = append(keys, g.Key)
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("groups: encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "group cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return keys, nil
}
