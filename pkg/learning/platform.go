package learning

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/configs"
	"github.com/Humphrey-He/hquery/internal/metrics"
	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/loader"
	"github.com/Humphrey-He/hquery/pkg/logger"
	"github.com/Humphrey-He/hquery/pkg/mutation"
)

// Platform is a fully wired learning platform client: the API client, the
// query cache with every loader registered, the invalidation graph and the
// mutation handles.
//
// Platform 是完整装配的学习平台客户端：API客户端、注册了所有加载器的查询缓存、
// 失效关系图和变更句柄。
type Platform struct {
	API       *Client
	Cache     *cache.Client
	Graph     *Graph
	Mutations *Mutations

	log     logger.Logger
	metrics *metrics.Metrics
	tokens  TokenSource
}

type platformOptions struct {
	log        logger.Logger
	tokens     TokenSource
	httpClient *http.Client
	cacheOpts  []cache.ClientOption
}

// PlatformOption configures NewPlatform.
type PlatformOption func(*platformOptions)

// WithPlatformLogger uses l instead of building a logger from the log section.
func WithPlatformLogger(l logger.Logger) PlatformOption {
	return func(o *platformOptions) { o.log = l }
}

// WithPlatformTokens sets the credential supplier. A source with a
// Refresh method also renews credentials after auth failures.
func WithPlatformTokens(ts TokenSource) PlatformOption {
	return func(o *platformOptions) { o.tokens = ts }
}

// WithPlatformHTTPClient sets the transport of the API client.
func WithPlatformHTTPClient(hc *http.Client) PlatformOption {
	return func(o *platformOptions) { o.httpClient = hc }
}

// WithCacheOptions appends options to the query cache, after the ones
// derived from configuration.
func WithCacheOptions(opts ...cache.ClientOption) PlatformOption {
	return func(o *platformOptions) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// NewPlatform wires a platform client from cfg.
//
// NewPlatform 根据cfg装配平台客户端。
//
// Parameters:
//   - cfg: A validated configuration
//   - opts: Platform options
//
// Returns:
//   - *Platform: The wired platform
//   - error: Error if the configuration is invalid or the logger cannot be built
func NewPlatform(cfg *configs.Config, opts ...PlatformOption) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("learning: %w", err)
	}
	o := platformOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log
	if log == nil {
		var err error
		if log, err = logger.New(cfg.LoggerConfig()); err != nil {
			return nil, err
		}
	}
	tokens := o.tokens
	if tokens == nil {
		tokens = StaticToken(cfg.API.Token)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enable {
		m = metrics.New(cfg.Metrics.Namespace, metrics.ParseLevel(cfg.Metrics.Level))
	}

	clientOpts := []ClientOption{WithTokenSource(tokens), WithClientLogger(log)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(o.httpClient))
	}
	api, err := NewClient(clientConfig(cfg), clientOpts...)
	if err != nil {
		return nil, err
	}

	reg := loader.NewRegistry()
	RegisterLoaders(reg, api)

	cacheOpts := []cache.ClientOption{
		cache.WithDefaults(cfg.QueryDefaults()),
		cache.WithLoaders(reg),
		cache.WithLogger(log),
		cache.WithMetrics(m),
		cache.WithSubscriptionBuffer(cfg.Cache.SubscriptionBuffer),
	}
	if r, ok := tokens.(cache.CredentialRefresher); ok {
		cacheOpts = append(cacheOpts, cache.WithCredentialRefresher(r))
	}
	cacheOpts = append(cacheOpts, o.cacheOpts...)

	p := &Platform{
		API:     api,
		Cache:   cache.NewClient(cacheOpts...),
		Graph:   NewGraph(),
		log:     log,
		metrics: m,
		tokens:  tokens,
	}
	if err := p.applyTuning(cfg); err != nil {
		p.Cache.Close()
		return nil, err
	}
	p.Mutations = NewMutations(p.Cache, api, p.Graph, mutation.WithLogger(log), mutation.WithMetrics(m))

	log.Info("learning platform ready",
		zap.String("base_url", cfg.API.BaseURL),
		zap.Int("queries", len(cfg.Queries)),
		zap.Bool("metrics", m != nil))
	return p, nil
}

func clientConfig(cfg *configs.Config) ClientConfig {
	return ClientConfig{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Breaker: BreakerConfig{
			Enabled:      cfg.Breaker.Enable,
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
		},
	}
}

// applyTuning installs defaults, profiles and strategy overrides. Built-in
// profiles go first so configured ones win for the same prefix.
func (p *Platform) applyTuning(cfg *configs.Config) error {
	strategies, err := cfg.Invalidation.Parse()
	if err != nil {
		return err
	}
	for kind := range strategies {
		if !hasKind(p.Graph, kind) {
			return fmt.Errorf("learning: unknown mutation kind %q", kind)
		}
	}
	profiles := DefaultProfiles()
	for _, q := range cfg.Queries {
		profiles = append(profiles, Profile{Prefix: q.Key(), Options: q.Options()})
	}
	if err := p.Cache.Retune(cfg.QueryDefaults(), profiles); err != nil {
		return err
	}

	p.Graph.ResetOverrides()
	for kind, s := range strategies {
		_ = p.Graph.Override(kind, s)
	}
	return nil
}

func hasKind(g *Graph, kind string) bool {
	for _, k := range g.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Apply installs a reloaded configuration. Query defaults, profiles and
// invalidation strategies change in place; existing subscriptions keep the
// configuration they resolved. API and log settings need a new Platform.
//
// Apply 应用重新加载的配置。查询默认值、配置档和失效策略就地更新；
// 已有订阅保留其已解析的配置。API和日志设置需要新建Platform。
//
// Parameters:
//   - cfg: The new configuration
//
// Returns:
//   - error: Error if the configuration is rejected; the old tuning stays
func (p *Platform) Apply(cfg *configs.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := p.applyTuning(cfg); err != nil {
		p.log.Warn("config rejected", zap.Error(err))
		return err
	}
	p.log.Info("config applied", zap.Int("queries", len(cfg.Queries)))
	return nil
}

// WatchConfig applies every configuration vc reloads.
func (p *Platform) WatchConfig(vc *configs.ViperConfig) {
	vc.Subscribe(func(cfg *configs.Config) {
		_ = p.Apply(cfg)
	})
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (p *Platform) Metrics() *metrics.Metrics {
	return p.metrics
}

// Logger returns the platform logger.
func (p *Platform) Logger() logger.Logger {
	return p.log
}

// Logout clears every cached query and forgets the cached credential.
//
// Logout 清空所有缓存的查询并丢弃缓存的凭证。
func (p *Platform) Logout() {
	p.Cache.Clear()
	if c, ok := p.tokens.(interface{ Clear() }); ok {
		c.Clear()
	}
	p.log.Info("logged out")
}

// Close stops the cache and flushes the logger.
func (p *Platform) Close() error {
	err := p.Cache.Close()
	_ = p.log.Sync()
	return err
}
