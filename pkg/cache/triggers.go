package cache

import (
	"time"

	"go.uber.org/zap"
)

// intervalLoop is the periodic refetch of one observed entry.
type intervalLoop struct {
	every time.Duration
	stop  chan struct{}
}

// NotifyFocus reports that the application regained focus. Every observed
// stale entry whose subscribers enable the focus trigger is refetched.
//
// NotifyFocus 通知应用重新获得焦点。启用了焦点触发器的过期被观察条目会被重新获取。
//
// Returns:
//   - int: Number of fetches started
func (c *Client) NotifyFocus() int {
	return c.trigger("focus", func(cfg Config) bool { return cfg.RefetchOnWindowFocus })
}

// NotifyReconnect reports that connectivity was restored.
//
// NotifyReconnect 通知网络连接已恢复。
func (c *Client) NotifyReconnect() int {
	return c.trigger("reconnect", func(cfg Config) bool { return cfg.RefetchOnReconnect })
}

func (c *Client) trigger(event string, wants func(Config) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := 0
	for _, e := range c.entries {
		if e.flight != nil || e.suppressed() {
			continue
		}
		for _, sub := range e.subs {
			if sub.cfg.Enabled && wants(sub.cfg) && c.isStaleLocked(e, sub.cfg) {
				c.startFetchLocked(e, false)
				started++
				break
			}
		}
	}
	c.log.Debug("lifecycle trigger", zap.String("event", event), zap.Int("refetched", started))
	return started
}

// updateIntervalLocked runs the shortest refetch interval among the
// enabled subscribers of e, or stops it when there is none.
func (c *Client) updateIntervalLocked(e *entry) {
	var every time.Duration
	for _, sub := range e.subs {
		d := sub.cfg.RefetchInterval
		if sub.cfg.Enabled && d > 0 && (every == 0 || d < every) {
			every = d
		}
	}
	if e.interval != nil && e.interval.every == every {
		return
	}
	c.stopIntervalLocked(e)
	if every == 0 || c.closed {
		return
	}

	loop := &intervalLoop{every: every, stop: make(chan struct{})}
	e.interval = loop
	c.runner.GoNamed("interval "+e.id, func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-loop.stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				if e.interval == loop && e.flight == nil && !e.suppressed() {
					c.startFetchLocked(e, false)
				}
				c.mu.Unlock()
			}
		}
	})
}

func (c *Client) stopIntervalLocked(e *entry) {
	if e.interval == nil {
		return
	}
	close(e.interval.stop)
	e.interval = nil
}
