package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/internal/metrics"
	"github.com/Humphrey-He/hquery/internal/routine"
	"github.com/Humphrey-He/hquery/internal/ttl"
	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/loader"
	"github.com/Humphrey-He/hquery/pkg/logger"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

const tracerName = "github.com/Humphrey-He/hquery/pkg/cache"

var _ QueryCache = (*Client)(nil)

// Client is the query cache. The zero value is not usable; create one with NewClient.
//
// Client 是查询缓存。零值不可用，请使用NewClient创建。
type Client struct {
	// 配置相关，热更新时整体替换
	cfgMu    sync.RWMutex
	defaults Config
	profiles []Profile

	// 条目相关
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	loaders    *loader.Registry
	log        logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	refresher  CredentialRefresher
	bufferSize int

	gc     *ttl.Manager
	runner routine.Runner
	tracer trace.Tracer
}

// Profile is the configuration of every key under Prefix.
//
// Profile 是Prefix下所有键的配置。
type Profile struct {
	Prefix  querykey.Key
	Options []Option
}

// entry is one cached read. All fields are guarded by Client.mu.
type entry struct {
	id          string
	key         querykey.Key
	data        any
	hasData     bool
	status      Status
	err         error
	updatedAt   time.Time
	invalidated bool
	notFound    bool // 实体不存在，抑制自动重新获取
	cfg         Config
	gcTime      time.Duration
	gcAt        time.Time // 当前有效的回收截止时间，零值表示未调度
	subs        map[string]*Subscription
	flight      *flight
	interval    *intervalLoop
}

// flight is one in-flight fetch shared by all its waiters.
type flight struct {
	done       chan struct{}
	data       any
	err        error
	finished   bool
	superseded bool
	next       *flight // 被取代后的新请求
	cancel     context.CancelFunc
}

// finishLocked resolves the flight once.
func (f *flight) finishLocked(data any, err error) {
	if f.finished {
		return
	}
	f.data, f.err = data, err
	f.finished = true
	close(f.done)
}

// NewClient creates a query cache.
//
// NewClient 创建查询缓存。
//
// Parameters:
//   - opts: Client options
//
// Returns:
//   - *Client: A ready to use client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		defaults:   NewDefaultConfig(),
		entries:    make(map[string]*entry),
		loaders:    loader.NewRegistry(),
		log:        logger.NewNop(),
		now:        time.Now,
		bufferSize: 8,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.runner = routine.New(c.log)
	c.gc = ttl.NewManager(ttl.Config{OnExpired: c.onGCExpired})
	return c
}

// Loaders returns the registry resolving keys to fetch functions.
func (c *Client) Loaders() *loader.Registry {
	return c.loaders
}

// Metrics returns the collector, possibly nil.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// SetDefaults replaces the configuration every query starts from.
// Existing subscriptions keep their resolved configuration.
//
// SetDefaults 替换所有查询的起始配置。已有订阅保留其已解析的配置。
func (c *Client) SetDefaults(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfgMu.Lock()
	c.defaults = cfg
	c.cfgMu.Unlock()
	return nil
}

// SetProfile registers options for every key under prefix, replacing an
// earlier profile for the same prefix.
//
// SetProfile 为prefix下的所有键注册选项，替换同一前缀已有的配置档。
func (c *Client) SetProfile(prefix querykey.Key, opts ...Option) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	c.setProfileLocked(prefix, opts)
}

// ResetProfiles removes every profile.
func (c *Client) ResetProfiles() {
	c.cfgMu.Lock()
	c.profiles = nil
	c.cfgMu.Unlock()
}

// Retune replaces the defaults and every profile in one step, so a
// concurrent Resolve sees either the old tuning or the new one.
// Later profiles for the same prefix replace earlier ones.
//
// Retune 一次性替换默认配置和所有配置档，并发的Resolve只会看到旧配置或新配置。
//
// Parameters:
//   - defaults: The new defaults
//   - profiles: The complete new profile set
//
// Returns:
//   - error: Error if defaults are invalid; nothing changes then
func (c *Client) Retune(defaults Config, profiles []Profile) error {
	if err := defaults.Validate(); err != nil {
		return err
	}
	next := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		next = putProfile(next, p)
	}

	c.cfgMu.Lock()
	c.defaults = defaults
	c.profiles = next
	c.cfgMu.Unlock()
	return nil
}

func (c *Client) setProfileLocked(prefix querykey.Key, opts []Option) {
	c.profiles = putProfile(c.profiles, Profile{Prefix: prefix, Options: opts})
}

func putProfile(profiles []Profile, p Profile) []Profile {
	id := p.Prefix.String()
	for i := range profiles {
		if profiles[i].Prefix.String() == id {
			profiles[i].Options = p.Options
			return profiles
		}
	}
	profiles = append(profiles, p)
	// 从最不具体到最具体，后应用的覆盖先应用的
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i].Prefix, profiles[j].Prefix
		if len(a.Segments) != len(b.Segments) {
			return len(a.Segments) < len(b.Segments)
		}
		return len(a.Params) < len(b.Params)
	})
	return profiles
}

// Resolve returns the effective configuration of key.
//
// Resolve 返回key的有效配置。
func (c *Client) Resolve(key querykey.Key, opts ...Option) Config {
	c.cfgMu.RLock()
	cfg := c.defaults
	for _, p := range c.profiles {
		if querykey.HasPrefix(key, p.Prefix) {
			for _, opt := range p.Options {
				opt(&cfg)
			}
		}
	}
	c.cfgMu.RUnlock()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Fetch runs the de-duplicated fetch for key and waits for its result.
//
// Fetch 执行去重后的请求并等待结果。
//
// Parameters:
//   - ctx: Bounds the wait only
//   - key: The query key
//   - opts: Per-call configuration
//
// Returns:
//   - any: The fetched data
//   - error: The terminal fetch error, ctx.Err(), or ErrClosed
func (c *Client) Fetch(ctx context.Context, key querykey.Key, opts ...Option) (any, error) {
	cfg := c.Resolve(key, opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.ErrClosed
	}
	e := c.ensureEntryLocked(key, cfg)
	f := c.startFetchLocked(e, false)
	c.mu.Unlock()

	return c.wait(ctx, f)
}

// Get returns fresh cached data and fetches only when the entry is absent or stale.
//
// Get 返回新鲜的缓存数据，仅在条目不存在或已过期时发起请求。
func (c *Client) Get(ctx context.Context, key querykey.Key, opts ...Option) (any, error) {
	cfg := c.Resolve(key, opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.ErrClosed
	}
	if e, ok := c.entries[key.String()]; ok && e.hasData && !c.isStaleLocked(e, cfg) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	if !cfg.Enabled {
		c.mu.Unlock()
		return nil, errors.NewKeyError(key.String(), errors.ErrDisabled)
	}
	e := c.ensureEntryLocked(key, cfg)
	f := c.startFetchLocked(e, false)
	c.mu.Unlock()

	return c.wait(ctx, f)
}

// Peek returns the current snapshot of key without fetching.
//
// Peek 返回key的当前快照，不发起请求。
func (c *Client) Peek(key querykey.Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshotLocked(e, e.cfg), true
}

// Invalidate marks every entry under the prefixes stale. Entries with
// subscribers, or with a fetch in flight, are refetched immediately and
// the older fetch is superseded; the rest are refetched on next access.
//
// Invalidate 将前缀下的所有条目标记为过期。
// 有订阅者或有进行中请求的条目会立即重新获取，旧请求被取代；其余条目在下次访问时重新获取。
//
// Parameters:
//   - prefixes: Key prefixes; querykey.Root matches everything
//
// Returns:
//   - int: Number of entries marked stale
func (c *Client) Invalidate(prefixes ...querykey.Key) int {
	return c.invalidate(true, prefixes)
}

// MarkStale marks every entry under the prefixes stale without refetching.
//
// MarkStale 将前缀下的所有条目标记为过期，但不重新获取。
func (c *Client) MarkStale(prefixes ...querykey.Key) int {
	return c.invalidate(false, prefixes)
}

// RefreshAll invalidates every entry and refetches every observed one.
//
// RefreshAll 使所有条目失效，并重新获取所有被观察的条目。
func (c *Client) RefreshAll() int {
	return c.invalidate(true, []querykey.Key{querykey.Root})
}

func (c *Client) invalidate(refetch bool, prefixes []querykey.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var marked, immediate int
	for _, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		marked++
		e.invalidated = true
		if refetch && (e.activeSubscribers() > 0 || e.flight != nil) {
			c.startFetchLocked(e, true)
			immediate++
			continue
		}
		c.notifyLocked(e)
	}

	c.metrics.RecordInvalidation(immediate, marked-immediate)
	if marked > 0 {
		c.log.Debug("cache invalidated",
			zap.Stringers("prefixes", prefixes),
			zap.Int("marked", marked),
			zap.Int("refetched", immediate),
		)
	}
	return marked
}

// SetData overwrites an entry's data and clears staleness. A fetch in
// flight for the key is superseded and its waiters receive data.
//
// SetData 覆盖条目数据并清除过期标记。该键进行中的请求会被取代，等待者收到data。
func (c *Client) SetData(key querykey.Key, data any) {
	c.UpdateData(key, func(any, bool) any { return data })
}

// UpdateData replaces an entry's data with fn(old, hasOld).
//
// UpdateData 使用fn(old, hasOld)替换条目数据。
func (c *Client) UpdateData(key querykey.Key, fn func(old any, ok bool) any) {
	cfg := c.Resolve(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	e, ok := c.entries[key.String()]
	if !ok {
		e = c.ensureEntryLocked(key, cfg)
	}
	data := fn(e.data, e.hasData)

	if f := e.flight; f != nil {
		f.superseded = true
		f.cancel()
		f.finishLocked(data, nil)
		e.flight = nil
	}
	e.data = data
	e.hasData = true
	e.status = StatusSuccess
	e.err = nil
	e.updatedAt = c.now()
	e.invalidated = false
	e.notFound = false
	c.notifyLocked(e)
	if len(e.subs) == 0 {
		c.scheduleGCLocked(e)
	}
}

// Clear drops all entries and in-flight state. Waiters receive
// ErrCleared and every subscription channel is closed.
//
// Clear 丢弃所有条目和进行中的请求状态。等待者收到ErrCleared，所有订阅通道被关闭。
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	for _, e := range c.entries {
		c.dropLocked(e, errors.ErrCleared)
	}
	c.entries = make(map[string]*entry)
	c.gc.Reset()
	c.metrics.SetEntries(0)
	c.log.Info("cache cleared", zap.Int("entries", n))
}

// Close clears the cache and waits for background work to stop.
//
// Close 清空缓存并等待后台任务结束。
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Clear()
	c.gc.Close()
	c.runner.Wait()
	return nil
}

// Len returns the number of entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// FetchingCount returns the number of entries with a fetch in flight.
func (c *Client) FetchingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.flight != nil {
			n++
		}
	}
	return n
}

// Entries returns a snapshot of every entry ordered by key.
//
// Entries 返回按键排序的所有条目快照。
func (c *Client) Entries() []Snapshot {
	c.mu.Lock()
	out := make([]Snapshot, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, c.snapshotLocked(e, e.cfg))
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

func (c *Client) ensureEntryLocked(key querykey.Key, cfg Config) *entry {
	id := key.String()
	if e, ok := c.entries[id]; ok {
		e.cfg = cfg
		e.gcTime = longerGC(e.gcTime, cfg.GCTime)
		return e
	}
	e := &entry{
		id:     id,
		key:    key,
		status: StatusIdle,
		cfg:    cfg,
		gcTime: cfg.GCTime,
		subs:   make(map[string]*Subscription),
	}
	c.entries[id] = e
	c.metrics.SetEntries(len(c.entries))
	return e
}

// dropLocked detaches e from every waiter, subscriber and timer.
func (c *Client) dropLocked(e *entry, cause error) {
	if f := e.flight; f != nil {
		f.cancel()
		f.finishLocked(nil, errors.NewKeyError(e.id, cause))
		e.flight = nil
	}
	for id, sub := range e.subs {
		sub.closeLocked()
		delete(e.subs, id)
		c.metrics.AddSubscribers(-1)
	}
	c.stopIntervalLocked(e)
}

func (c *Client) isStaleLocked(e *entry, cfg Config) bool {
	if !e.hasData || e.invalidated {
		return true
	}
	return cfg.isStaleAt(e.updatedAt, c.now())
}

func (c *Client) snapshotLocked(e *entry, cfg Config) Snapshot {
	s := Snapshot{
		Key:         e.key,
		Data:        e.data,
		HasData:     e.hasData,
		Status:      e.status,
		UpdatedAt:   e.updatedAt,
		IsStale:     c.isStaleLocked(e, cfg),
		IsFetching:  e.status == StatusFetching,
		Subscribers: len(e.subs),
	}
	s.IsLoading = s.IsFetching && !e.hasData
	if e.status == StatusError {
		s.Err = e.err
	}
	return s
}

func (c *Client) notifyLocked(e *entry) {
	for _, sub := range e.subs {
		sub.pushLocked(c.snapshotLocked(e, sub.cfg))
	}
}

// activeSubscribers counts subscribers with automatic fetching enabled.
func (e *entry) activeSubscribers() int {
	n := 0
	for _, sub := range e.subs {
		if sub.cfg.Enabled {
			n++
		}
	}
	return n
}

// suppressed reports whether automatic triggers must skip e.
func (e *entry) suppressed() bool {
	return e.notFound && !e.invalidated
}

func matchesAny(key querykey.Key, prefixes []querykey.Key) bool {
	for _, p := range prefixes {
		if querykey.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
