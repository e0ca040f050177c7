// Package cache buffers video view counts in Redis so playback requests never
// write to the document store directly. A background flusher periodically
// drains the counters into the durable video records. Counts are best-effort:
// losing Redis loses at most one flush interval of views.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamtube/backend/internal/repositories"
)

const viewKeyPrefix = "views:"

// ViewSink persists drained view deltas.
type ViewSink interface {
	AddViews(ctx context.Context, videoID string, delta int64) error
}

// ViewCounter counts video views in Redis.
type ViewCounter struct {
	client redis.UniversalClient
}

// NewViewCounter constructs a counter over the provided Redis client.
func NewViewCounter(client redis.UniversalClient) *ViewCounter {
	if client == nil {
		panic("cache: redis client must not be nil")
	}
	return &ViewCounter{client: client}
}

// Record increments the video's pending view count.
func (c *ViewCounter) Record(ctx context.Context, videoID string) error {
	if err := c.client.Incr(ctx, viewKeyPrefix+videoID).Err(); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// Pending returns the not-yet-flushed view count for a video. Useful for tests.
func (c *ViewCounter) Pending(ctx context.Context, videoID string) (int64, error) {
	val, err := c.client.Get(ctx, viewKeyPrefix+videoID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read view count: %w", err)
	}
	return val, nil
}

// Drain atomically removes every pending counter and returns the deltas.
func (c *ViewCounter) Drain(ctx context.Context) (map[string]int64, error) {
	deltas := make(map[string]int64)

	iter := c.client.Scan(ctx, 0, viewKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		val, err := c.client.GetDel(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return deltas, fmt.Errorf("drain view count %s: %w", key, err)
		}

		delta, err := strconv.ParseInt(val, 10, 64)
		if err != nil || delta <= 0 {
			continue
		}
		deltas[strings.TrimPrefix(key, viewKeyPrefix)] = delta
	}
	if err := iter.Err(); err != nil {
		return deltas, fmt.Errorf("scan view counts: %w", err)
	}

	return deltas, nil
}

// restore puts a delta back after a failed flush so views are not lost.
func (c *ViewCounter) restore(ctx context.Context, videoID string, delta int64) {
	_ = c.client.IncrBy(ctx, viewKeyPrefix+videoID, delta).Err()
}

// ViewFlusher drains the counter on an interval and persists the deltas.
type ViewFlusher struct {
	counter  *ViewCounter
	sink     ViewSink
	interval time.Duration
	logger   *slog.Logger
}

// NewViewFlusher constructs a flusher writing drained counts into the sink.
func NewViewFlusher(counter *ViewCounter, sink ViewSink, interval time.Duration, logger *slog.Logger) *ViewFlusher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewFlusher{counter: counter, sink: sink, interval: interval, logger: logger}
}

// Run flushes until the context is cancelled, then performs a final flush so
// shutdown does not discard pending counts.
func (f *ViewFlusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

// Flush drains the counters once, restoring deltas whose persistence failed.
func (f *ViewFlusher) Flush(ctx context.Context) {
	deltas, err := f.counter.Drain(ctx)
	if err != nil {
		f.logger.Warn("drain view counters", "error", err)
	}

	for videoID, delta := range deltas {
		err := f.sink.AddViews(ctx, videoID, delta)
		if err == nil {
			continue
		}
		if errors.Is(err, repositories.ErrNotFound) {
			// Video was deleted after the views were recorded. Drop them.
			continue
		}
		f.logger.Warn("persist view count", "videoId", videoID, "delta", delta, "error", err)
		f.counter.restore(ctx, videoID, delta)
	}
}
