package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/internal/metrics"
	"github.com/Humphrey-He/hquery/internal/routine"
	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/loader"
)

// startFetchLocked returns the flight serving e, starting one if needed.
// With supersede set, a running flight is cancelled and replaced; its
// waiters follow the replacement.
func (c *Client) startFetchLocked(e *entry, supersede bool) *flight {
	old := e.flight
	if old != nil && !supersede {
		c.metrics.RecordDedup()
		return old
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &flight{done: make(chan struct{}), cancel: cancel}
	if old != nil {
		old.superseded = true
		old.next = f
		old.cancel()
		old.finishLocked(nil, nil)
	}
	e.flight = f

	l := e.cfg.Loader
	if l == nil {
		if found, ok := c.loaders.Lookup(e.key); ok {
			l = found
		}
	}
	if l == nil {
		cancel()
		c.completeLocked(e, f, nil, errors.ErrNoLoader)
		return f
	}

	e.status = StatusFetching
	c.notifyLocked(e)

	policy := e.cfg.Retry
	c.runner.GoNamed("fetch "+e.id, func() {
		start := time.Now()
		data, err := c.load(ctx, e, l, policy)
		c.mu.Lock()
		defer c.mu.Unlock()
		cancel()
		if f.finished {
			outcome := metrics.OutcomeSuperseded
			if errors.IsCleared(f.err) {
				outcome = metrics.OutcomeCleared
			}
			c.metrics.RecordFetch(outcome, time.Since(start))
			return
		}
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		c.metrics.RecordFetch(outcome, time.Since(start))
		c.completeLocked(e, f, data, err)
	})
	return f
}

// completeLocked applies a fetch result to e and releases the waiters.
func (c *Client) completeLocked(e *entry, f *flight, data any, err error) {
	if e.flight == f {
		e.flight = nil
	}
	if err == nil {
		e.data = data
		e.hasData = true
		e.status = StatusSuccess
		e.err = nil
		e.updatedAt = c.now()
		e.invalidated = false
		e.notFound = false
		f.finishLocked(data, nil)
	} else {
		keyErr := errors.NewKeyError(e.id, err)
		if errors.IsNotFound(err) {
			// 实体不存在，不保留旧数据
			e.data = nil
			e.hasData = false
			e.notFound = true
			e.invalidated = false
		}
		e.status = StatusError
		e.err = keyErr
		f.finishLocked(nil, keyErr)
		c.log.Warn("query fetch failed",
			zap.String("key", e.id),
			zap.String("class", errors.ClassOf(err).String()),
			zap.Error(err),
		)
	}
	c.notifyLocked(e)
	if len(e.subs) == 0 {
		c.scheduleGCLocked(e)
	}
}

// load runs the loader with the retry policy. It returns ctx.Err() once
// the flight was superseded or cleared.
func (c *Client) load(ctx context.Context, e *entry, l loader.Loader, policy RetryPolicy) (any, error) {
	for retries := 0; ; retries++ {
		data, err := c.attempt(ctx, e, l, retries)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay, ok := policy.Next(err, retries)
		class := errors.ClassOf(err)
		if ok && class == errors.ClassAuth {
			ok = c.refreshCredentials(ctx, e.id)
		}
		if !ok {
			return nil, err
		}

		c.metrics.RecordRetry(class.String())
		c.log.Debug("retrying query fetch",
			zap.String("key", e.id),
			zap.String("class", class.String()),
			zap.Int("retry", retries+1),
			zap.Duration("delay", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// attempt runs the loader once inside a span. Loader panics become errors.
func (c *Client) attempt(ctx context.Context, e *entry, l loader.Loader, retries int) (any, error) {
	ctx, span := c.tracer.Start(ctx, "cache.fetch",
		trace.WithAttributes(
			attribute.String("query.key", e.id),
			attribute.Int("query.retry", retries),
		),
	)
	defer span.End()

	data, err := routine.Call(func() (any, error) {
		return l.Load(ctx, e.key)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.class", errors.ClassOf(err).String()))
	}
	return data, err
}

func (c *Client) refreshCredentials(ctx context.Context, key string) bool {
	if c.refresher == nil {
		return false
	}
	if err := c.refresher.Refresh(ctx); err != nil {
		c.log.Warn("credential refresh failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// wait blocks until f, or the flight that superseded it, resolves.
func (c *Client) wait(ctx context.Context, f *flight) (any, error) {
	for {
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.mu.Lock()
		next, data, err := f.next, f.data, f.err
		c.mu.Unlock()
		if next == nil {
			return data, err
		}
		f = next
	}
}

// scheduleGCLocked starts the retention timer of an unobserved entry.
func (c *Client) scheduleGCLocked(e *entry) {
	switch {
	case e.gcTime == GCForever:
		return
	case e.gcTime == 0 && e.flight == nil:
		c.evictLocked(e)
	default:
		c.scheduleAtLocked(e, time.Now().Add(e.gcTime))
	}
}

func (c *Client) scheduleAtLocked(e *entry, at time.Time) {
	e.gcAt = at
	c.gc.Schedule(e.id, at)
}

// cancelGCLocked stops the retention timer, e.g. when a subscriber returns.
func (c *Client) cancelGCLocked(e *entry) {
	e.gcAt = time.Time{}
	c.gc.Cancel(e.id)
}

// onGCExpired runs on the scheduler goroutine when a retention timer fires.
// The scheduler pops a deadline before this takes c.mu, so a fire for a
// deadline that was cancelled or replaced in between is ignored.
func (c *Client) onGCExpired(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || len(e.subs) > 0 {
		return
	}
	if e.gcAt.IsZero() || time.Now().Before(e.gcAt) {
		return
	}
	if e.flight != nil {
		// 请求进行中，推迟回收
		c.scheduleAtLocked(e, time.Now().Add(max(e.gcTime, time.Second)))
		return
	}
	c.evictLocked(e)
}

func (c *Client) evictLocked(e *entry) {
	c.cancelGCLocked(e)
	c.stopIntervalLocked(e)
	delete(c.entries, e.id)
	c.metrics.RecordEviction()
	c.metrics.SetEntries(len(c.entries))
	c.log.Debug("cache entry evicted", zap.String("key", e.id))
}
