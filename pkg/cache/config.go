package cache

import (
	"fmt"
	"time"

	"github.com/Humphrey-He/hquery/pkg/loader"
)

const (
	// StaleForever marks data as fresh until it is explicitly invalidated.
	// StaleForever 表示数据在被显式失效之前始终新鲜。
	StaleForever time.Duration = -1

	// GCForever keeps unobserved entries until Clear.
	// GCForever 表示未被观察的条目一直保留，直到Clear。
	GCForever time.Duration = -1

	// DefaultGCTime is how long an unobserved entry is retained by default.
	// DefaultGCTime 是未被观察的条目默认保留的时长。
	DefaultGCTime = 5 * time.Minute
)

// Config defines the behavior of one query pattern.
// It controls freshness, retention, refetch triggers and retries.
//
// Config 定义一个查询模式的行为，控制新鲜度、保留时长、重新获取触发器和重试。
type Config struct {
	// StaleTime is how long data stays fresh after a successful fetch.
	// 0 means always stale; StaleForever means never stale by age.
	//
	// StaleTime 是成功获取后数据保持新鲜的时长。
	// 0表示始终过期；StaleForever表示不会因时间而过期。
	StaleTime time.Duration `json:"stale_time" yaml:"stale_time"`

	// GCTime is how long an entry with zero subscribers is retained.
	// 0 evicts as soon as the last subscriber leaves; GCForever never evicts.
	//
	// GCTime 是没有订阅者的条目被保留的时长。
	GCTime time.Duration `json:"gc_time" yaml:"gc_time"`

	// RefetchOnMount refetches stale data when a new subscriber arrives.
	// RefetchOnMount 在新订阅者到来时重新获取过期数据。
	RefetchOnMount bool `json:"refetch_on_mount" yaml:"refetch_on_mount"`

	// RefetchOnWindowFocus refetches stale observed data on NotifyFocus.
	// RefetchOnWindowFocus 在NotifyFocus时重新获取过期的被观察数据。
	RefetchOnWindowFocus bool `json:"refetch_on_window_focus" yaml:"refetch_on_window_focus"`

	// RefetchOnReconnect refetches stale observed data on NotifyReconnect.
	// RefetchOnReconnect 在NotifyReconnect时重新获取过期的被观察数据。
	RefetchOnReconnect bool `json:"refetch_on_reconnect" yaml:"refetch_on_reconnect"`

	// RefetchInterval refetches periodically while subscribed; 0 disables it.
	// RefetchInterval 在订阅期间定期重新获取；0表示禁用。
	RefetchInterval time.Duration `json:"refetch_interval" yaml:"refetch_interval"`

	// Retry decides which failures are retried and after which delay.
	// Retry 决定哪些失败会被重试以及重试延迟。
	Retry RetryPolicy `json:"retry" yaml:"retry"`

	// Enabled turns automatic fetching on or off. Explicit refetches always run.
	// Enabled 开启或关闭自动获取。显式的重新获取总会执行。
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Loader overrides the registry loader for this query.
	// Loader 覆盖该查询在注册表中的加载器。
	Loader loader.Loader `json:"-" yaml:"-"`
}

// NewDefaultConfig returns a Config with the application defaults:
// always stale, five minutes of retention, every trigger enabled.
//
// NewDefaultConfig 返回应用默认配置：始终过期、保留五分钟、启用所有触发器。
//
// Returns:
//   - Config: A new configuration with default values
func NewDefaultConfig() Config {
	return Config{
		StaleTime:            0,
		GCTime:               DefaultGCTime,
		RefetchOnMount:       true,
		RefetchOnWindowFocus: true,
		RefetchOnReconnect:   true,
		Retry:                DefaultRetryPolicy(),
		Enabled:              true,
	}
}

// Validate checks the configuration for inconsistent values.
//
// Validate 检查配置中不一致的值。
//
// Returns:
//   - error: Error if the configuration is invalid
func (c Config) Validate() error {
	if c.StaleTime < 0 && c.StaleTime != StaleForever {
		return fmt.Errorf("invalid stale time %s", c.StaleTime)
	}
	if c.GCTime < 0 && c.GCTime != GCForever {
		return fmt.Errorf("invalid gc time %s", c.GCTime)
	}
	if c.RefetchInterval < 0 {
		return fmt.Errorf("invalid refetch interval %s", c.RefetchInterval)
	}
	return c.Retry.Validate()
}

// isStaleAt reports whether data fetched at updatedAt is stale at now.
func (c Config) isStaleAt(updatedAt, now time.Time) bool {
	if c.StaleTime == StaleForever {
		return false
	}
	return now.Sub(updatedAt) >= c.StaleTime
}

// longerGC returns the longer of two retention times.
func longerGC(a, b time.Duration) time.Duration {
	if a == GCForever || b == GCForever {
		return GCForever
	}
	if a > b {
		return a
	}
	return b
}
