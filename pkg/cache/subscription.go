package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/smallnest/chanx"

	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Subscription is one consumer's live view of an entry.
// Every state transition of the entry is pushed to Updates; delivery is
// buffered without bound, so a slow consumer never blocks the cache.
//
// Subscription 是单个消费者对条目的实时视图。
// 条目的每次状态变化都会推送到Updates；投递缓冲无上限，慢消费者不会阻塞缓存。
type Subscription struct {
	id     string
	client *Client
	entry  *entry
	cfg    Config
	ch     *chanx.UnboundedChan[Snapshot]
	stop   context.CancelFunc // 结束chanx的转发协程
	closed bool
}

// Subscribe registers a consumer's interest in key.
//
// Subscribe 注册消费者对key的关注。
//
// Parameters:
//   - key: The query key to observe
//   - opts: Per-call configuration layered over profiles and defaults
//
// Returns:
//   - *Subscription: A live view of the entry
//   - error: Error if the client is closed or the configuration is invalid
func (c *Client) Subscribe(key querykey.Key, opts ...Option) (*Subscription, error) {
	cfg := c.Resolve(key, opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.ErrClosed
	}

	e := c.ensureEntryLocked(key, cfg)
	c.cancelGCLocked(e)

	ctx, stop := context.WithCancel(context.Background())
	sub := &Subscription{
		id:     uuid.NewString(),
		client: c,
		entry:  e,
		cfg:    cfg,
		ch:     chanx.NewUnboundedChan[Snapshot](ctx, c.bufferSize),
		stop:   stop,
	}
	e.subs[sub.id] = sub
	c.metrics.AddSubscribers(1)
	sub.pushLocked(c.snapshotLocked(e, cfg))

	switch {
	case e.flight != nil:
		c.metrics.RecordDedup()
	case !cfg.Enabled || e.suppressed():
	case !e.hasData:
		c.startFetchLocked(e, false)
	case cfg.RefetchOnMount && c.isStaleLocked(e, cfg):
		c.startFetchLocked(e, false)
	}

	c.updateIntervalLocked(e)
	return sub, nil
}

// ID returns the unique id of the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Key returns the observed key.
func (s *Subscription) Key() querykey.Key {
	return s.entry.key
}

// Updates returns the channel receiving a snapshot on every state transition.
// The first value is the state at subscription time. The channel is closed
// by Unsubscribe and by Clear; snapshots not yet received are dropped then.
//
// Updates 返回在每次状态变化时接收快照的通道。
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch.Out
}

// Snapshot returns the current state of the entry.
//
// Snapshot 返回条目的当前状态。
func (s *Subscription) Snapshot() Snapshot {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	return s.client.snapshotLocked(s.entry, s.cfg)
}

// Refetch starts a new fetch for the key, superseding one in flight,
// and waits for the result.
//
// Refetch 为该键发起新的请求（取代进行中的请求）并等待结果。
func (s *Subscription) Refetch(ctx context.Context) (any, error) {
	c := s.client
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.ErrClosed
	}
	if s.closed {
		c.mu.Unlock()
		return nil, errors.NewKeyError(s.entry.id, errors.ErrCleared)
	}
	f := c.startFetchLocked(s.entry, true)
	c.mu.Unlock()
	return c.wait(ctx, f)
}

// Unsubscribe removes the consumer. When the last subscriber leaves, the
// retention timer starts. Calling it twice is a no-op.
//
// Unsubscribe 移除消费者。最后一个订阅者离开时开始保留计时。重复调用无副作用。
func (s *Subscription) Unsubscribe() {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return
	}
	e := s.entry
	delete(e.subs, s.id)
	s.closeLocked()
	c.metrics.AddSubscribers(-1)

	if c.entries[e.id] != e {
		return
	}
	c.updateIntervalLocked(e)
	if len(e.subs) == 0 {
		c.scheduleGCLocked(e)
	}
}

func (s *Subscription) pushLocked(snap Snapshot) {
	if s.closed {
		return
	}
	s.ch.In <- snap
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch.In)
	// 未读取的快照直接丢弃，转发协程随之退出
	s.stop()
}
