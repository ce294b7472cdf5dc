package cache

import (
	"time"

	"github.com/Humphrey-He/hquery/internal/metrics"
	"github.com/Humphrey-He/hquery/pkg/loader"
	"github.com/Humphrey-He/hquery/pkg/logger"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Option is a function that configures a query Config.
// Options are applied in order: client defaults, matching profiles from
// least to most specific, then call-site options.
//
// Option 是一个配置查询Config的函数。
// 应用顺序：客户端默认值、从最不具体到最具体的匹配配置档，最后是调用处的选项。
type Option func(*Config)

// WithStaleTime sets how long data stays fresh.
//
// WithStaleTime 设置数据保持新鲜的时长。
//
// Parameters:
//   - d: Freshness window, 0 for always stale, StaleForever for never
//
// Returns:
//   - Option: A configuration option
func WithStaleTime(d time.Duration) Option {
	return func(c *Config) {
		c.StaleTime = d
	}
}

// WithGCTime sets how long an unobserved entry is retained.
//
// WithGCTime 设置未被观察的条目保留时长。
func WithGCTime(d time.Duration) Option {
	return func(c *Config) {
		c.GCTime = d
	}
}

// WithRefetchOnMount toggles the mount trigger.
func WithRefetchOnMount(on bool) Option {
	return func(c *Config) {
		c.RefetchOnMount = on
	}
}

// WithRefetchOnWindowFocus toggles the focus trigger.
func WithRefetchOnWindowFocus(on bool) Option {
	return func(c *Config) {
		c.RefetchOnWindowFocus = on
	}
}

// WithRefetchOnReconnect toggles the reconnect trigger.
func WithRefetchOnReconnect(on bool) Option {
	return func(c *Config) {
		c.RefetchOnReconnect = on
	}
}

// WithRefetchInterval sets the periodic refetch interval while subscribed.
//
// WithRefetchInterval 设置订阅期间的定期重新获取间隔。
func WithRefetchInterval(d time.Duration) Option {
	return func(c *Config) {
		c.RefetchInterval = d
	}
}

// WithRetry sets the retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Config) {
		c.Retry = p
	}
}

// WithEnabled toggles automatic fetching.
func WithEnabled(on bool) Option {
	return func(c *Config) {
		c.Enabled = on
	}
}

// WithLoader binds a fetch function to this query only.
//
// WithLoader 仅为该查询绑定获取函数。
func WithLoader(l loader.Loader) Option {
	return func(c *Config) {
		c.Loader = l
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// ClientOption configures a Client.
//
// ClientOption 配置Client。
type ClientOption func(*Client)

// WithDefaults sets the configuration every query starts from.
//
// WithDefaults 设置所有查询的起始配置。
func WithDefaults(cfg Config) ClientOption {
	return func(c *Client) {
		c.defaults = cfg
	}
}

// WithProfile registers options for every key under prefix.
//
// WithProfile 为prefix下的所有键注册选项。
func WithProfile(prefix querykey.Key, opts ...Option) ClientOption {
	return func(c *Client) {
		c.setProfileLocked(prefix, opts)
	}
}

// WithLoaders sets the registry resolving keys to fetch functions.
func WithLoaders(r *loader.Registry) ClientOption {
	return func(c *Client) {
		c.loaders = r
	}
}

// WithLogger sets the structured logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = logger.OrNop(l)
	}
}

// WithMetrics sets the metrics collector; nil disables metrics.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClock sets the time source used for staleness.
// Retention and intervals always use wall-clock timers.
//
// WithClock 设置用于判断过期的时间源。保留时长与定时刷新始终使用真实定时器。
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCredentialRefresher sets the side channel renewing credentials after auth failures.
//
// WithCredentialRefresher 设置认证失败后刷新凭证的旁路通道。
func WithCredentialRefresher(r CredentialRefresher) ClientOption {
	return func(c *Client) {
		c.refresher = r
	}
}

// WithSubscriptionBuffer sets the initial buffer capacity of subscription channels.
func WithSubscriptionBuffer(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}
