// Package configs provides configuration structures and utilities for hquery.
// It offers mechanisms for loading, validating, and saving configuration from
// JSON and YAML files, and converts the result into query cache settings.
//
// Package configs 提供hquery的配置结构和工具。
// 它提供从JSON和YAML文件加载、验证和保存配置的机制，并将结果转换为查询缓存设置。
package configs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/logger"
	"github.com/Humphrey-He/hquery/pkg/mutation"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Config represents the complete configuration of a learning platform client.
//
// Config 表示学习平台客户端的完整配置。
type Config struct {
	// Cache contains the defaults every query starts from
	// Cache 包含所有查询的默认设置
	Cache CacheConfig `json:"cache" yaml:"cache" mapstructure:"cache"`

	// Retry is the default retry policy
	// Retry 是默认的重试策略
	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`

	// Queries overrides the defaults for key prefixes
	// Queries 按键前缀覆盖默认设置
	Queries []QueryConfig `json:"queries" yaml:"queries" mapstructure:"queries"`

	// Invalidation selects the strategy of each mutation kind
	// Invalidation 选择每种变更类型的失效策略
	Invalidation InvalidationConfig `json:"invalidation" yaml:"invalidation" mapstructure:"invalidation"`

	// API configures the remote learning API
	// API 配置远程学习平台接口
	API APIConfig `json:"api" yaml:"api" mapstructure:"api"`

	// Breaker configures the circuit breaker in front of the API
	// Breaker 配置API前的熔断器
	Breaker BreakerConfig `json:"breaker" yaml:"breaker" mapstructure:"breaker"`

	// Log configures the logging behavior
	// Log 配置日志行为
	Log LogConfig `json:"log" yaml:"log" mapstructure:"log"`

	// Metrics configures Prometheus collection
	// Metrics 配置Prometheus指标收集
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	// Server configures the inspector HTTP server
	// Server 配置检查用HTTP服务
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`

	// Extensions configures optional features like hot reloading
	// Extensions 配置可选功能，如热重载
	Extensions ExtensionsConfig `json:"extensions" yaml:"extensions" mapstructure:"extensions"`

	// Extra allows for custom configuration options
	// Extra 允许自定义配置选项
	Extra map[string]interface{} `json:"extra" yaml:"extra" mapstructure:"extra"`
}

// CacheConfig contains the query defaults.
// A negative StaleTime means never stale by age; a negative GCTime means
// never evicted.
//
// CacheConfig 包含查询的默认设置。
// StaleTime为负表示不会因时间而过期；GCTime为负表示永不回收。
type CacheConfig struct {
	StaleTime            time.Duration `json:"stale_time" yaml:"stale_time" mapstructure:"stale_time"`
	GCTime               time.Duration `json:"gc_time" yaml:"gc_time" mapstructure:"gc_time"`
	RefetchOnMount       bool          `json:"refetch_on_mount" yaml:"refetch_on_mount" mapstructure:"refetch_on_mount"`
	RefetchOnWindowFocus bool          `json:"refetch_on_window_focus" yaml:"refetch_on_window_focus" mapstructure:"refetch_on_window_focus"`
	RefetchOnReconnect   bool          `json:"refetch_on_reconnect" yaml:"refetch_on_reconnect" mapstructure:"refetch_on_reconnect"`
	RefetchInterval      time.Duration `json:"refetch_interval" yaml:"refetch_interval" mapstructure:"refetch_interval"`

	// SubscriptionBuffer is the initial buffer of each subscription channel
	// SubscriptionBuffer 是每个订阅通道的初始缓冲
	SubscriptionBuffer int `json:"subscription_buffer" yaml:"subscription_buffer" mapstructure:"subscription_buffer"`
}

// RetryConfig contains the retry policy settings.
//
// RetryConfig 包含重试策略设置。
type RetryConfig struct {
	MaxRetries     int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	Delay          time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
	RateLimitDelay time.Duration `json:"rate_limit_delay" yaml:"rate_limit_delay" mapstructure:"rate_limit_delay"`
	AuthRetries    int           `json:"auth_retries" yaml:"auth_retries" mapstructure:"auth_retries"`
	UnknownRetries int           `json:"unknown_retries" yaml:"unknown_retries" mapstructure:"unknown_retries"`
}

// QueryConfig overrides the defaults for every key under Prefix.
// Unset fields keep the value of less specific profiles.
// Viper lowercases map keys, so Params names given through ViperConfig
// must already be lowercase to match; LoadFromFile keeps them as written.
//
// QueryConfig 为Prefix下的所有键覆盖默认设置。未设置的字段沿用更不具体的配置档。
type QueryConfig struct {
	Prefix               []string               `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	Params               map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
	StaleTime            *time.Duration         `json:"stale_time,omitempty" yaml:"stale_time,omitempty" mapstructure:"stale_time"`
	GCTime               *time.Duration         `json:"gc_time,omitempty" yaml:"gc_time,omitempty" mapstructure:"gc_time"`
	RefetchOnMount       *bool                  `json:"refetch_on_mount,omitempty" yaml:"refetch_on_mount,omitempty" mapstructure:"refetch_on_mount"`
	RefetchOnWindowFocus *bool                  `json:"refetch_on_window_focus,omitempty" yaml:"refetch_on_window_focus,omitempty" mapstructure:"refetch_on_window_focus"`
	RefetchOnReconnect   *bool                  `json:"refetch_on_reconnect,omitempty" yaml:"refetch_on_reconnect,omitempty" mapstructure:"refetch_on_reconnect"`
	RefetchInterval      *time.Duration         `json:"refetch_interval,omitempty" yaml:"refetch_interval,omitempty" mapstructure:"refetch_interval"`
	Enabled              *bool                  `json:"enabled,omitempty" yaml:"enabled,omitempty" mapstructure:"enabled"`
}

// InvalidationConfig maps mutation kinds to "precise" or "blunt".
//
// InvalidationConfig 将变更类型映射为"precise"或"blunt"。
type InvalidationConfig struct {
	Strategies map[string]string `json:"strategies" yaml:"strategies" mapstructure:"strategies"`
}

// APIConfig contains settings for the remote API.
//
// APIConfig 包含远程API的设置。
type APIConfig struct {
	BaseURL   string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Token is a static bearer credential, mostly for tools and tests
	// Token 是静态的Bearer凭证，主要用于工具和测试
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`
}

// BreakerConfig contains the circuit breaker settings.
//
// BreakerConfig 包含熔断器设置。
type BreakerConfig struct {
	Enable       bool          `json:"enable" yaml:"enable" mapstructure:"enable"`
	MaxRequests  uint32        `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`
	Interval     time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MinRequests  uint32        `json:"min_requests" yaml:"min_requests" mapstructure:"min_requests"`
	FailureRatio float64       `json:"failure_ratio" yaml:"failure_ratio" mapstructure:"failure_ratio"`
}

// LogConfig contains settings for logging.
//
// LogConfig 包含日志记录的设置。
type LogConfig struct {
	// Level sets the minimum log level ("debug", "info", "warn", "error")
	// Level 设置最低日志级别
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Encoding specifies the log format ("json", "console")
	// Encoding 指定日志格式
	Encoding string `json:"encoding" yaml:"encoding" mapstructure:"encoding"`

	// OutputPaths are the zap sinks, e.g. "stdout" or a file path
	// OutputPaths 是日志输出位置
	OutputPaths []string `json:"output_paths" yaml:"output_paths" mapstructure:"output_paths"`

	// ErrorOutputPaths receive internal logger errors
	// ErrorOutputPaths 接收日志器内部错误
	ErrorOutputPaths []string `json:"error_output_paths" yaml:"error_output_paths" mapstructure:"error_output_paths"`
}

// MetricsConfig contains settings for metrics collection.
//
// MetricsConfig 包含指标收集的设置。
type MetricsConfig struct {
	// Enable determines whether metrics collection is active
	// Enable 确定是否启用指标收集
	Enable bool `json:"enable" yaml:"enable" mapstructure:"enable"`

	// Level controls the detail of metrics collection ("basic", "detailed")
	// Level 控制指标收集的详细程度
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Namespace prefixes every metric name
	// Namespace 是所有指标名称的前缀
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// ServerConfig contains settings for the inspector server.
//
// ServerConfig 包含检查服务的设置。
type ServerConfig struct {
	Enable bool   `json:"enable" yaml:"enable" mapstructure:"enable"`
	Addr   string `json:"addr" yaml:"addr" mapstructure:"addr"`
	// Mode is the gin mode ("debug", "release", "test")
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// ExtensionsConfig contains settings for extensions.
//
// ExtensionsConfig 包含扩展的设置。
type ExtensionsConfig struct {
	// HotReload contains settings for dynamic configuration reloading
	// HotReload 包含动态配置重新加载的设置
	HotReload HotReloadConfig `json:"hot_reload" yaml:"hot_reload" mapstructure:"hot_reload"`
}

// HotReloadConfig contains settings for hot reloading.
// A zero WatchInterval relies on file system notifications only.
//
// HotReloadConfig 包含热重载的设置。WatchInterval为零时仅依赖文件系统通知。
type HotReloadConfig struct {
	Enable        bool          `json:"enable" yaml:"enable" mapstructure:"enable"`
	WatchInterval time.Duration `json:"watch_interval" yaml:"watch_interval" mapstructure:"watch_interval"`
}

// DefaultConfig returns a new Config with default values.
//
// DefaultConfig 返回具有默认值的新Config。
//
// Returns:
//   - *Config: A new configuration instance with default values
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			StaleTime:            0,
			GCTime:               cache.DefaultGCTime,
			RefetchOnMount:       true,
			RefetchOnWindowFocus: true,
			RefetchOnReconnect:   true,
			SubscriptionBuffer:   8,
		},
		Retry: RetryConfig{
			MaxRetries:     2,
			Delay:          time.Second,
			RateLimitDelay: 5 * time.Second,
			AuthRetries:    1,
			UnknownRetries: 1,
		},
		Invalidation: InvalidationConfig{
			Strategies: make(map[string]string),
		},
		API: APIConfig{
			BaseURL:   "http://localhost:8080/api",
			Timeout:   10 * time.Second,
			UserAgent: "hquery",
		},
		Breaker: BreakerConfig{
			Enable:       true,
			MaxRequests:  5,
			Interval:     30 * time.Second,
			Timeout:      60 * time.Second,
			MinRequests:  5,
			FailureRatio: 0.8,
		},
		Log: LogConfig{
			Level:            "info",
			Encoding:         "json",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
		Metrics: MetricsConfig{
			Enable:    true,
			Level:     "basic",
			Namespace: "hquery",
		},
		Server: ServerConfig{
			Enable: false,
			Addr:   ":9090",
			Mode:   "release",
		},
		Extensions: ExtensionsConfig{
			HotReload: HotReloadConfig{
				Enable:        false,
				WatchInterval: 30 * time.Second,
			},
		},
		Extra: make(map[string]interface{}),
	}
}

// LoadFromFile loads configuration from a file.
// It supports both YAML and JSON formats, detected from the file extension.
//
// LoadFromFile 从文件加载配置。支持YAML和JSON格式，根据文件扩展名检测格式。
//
// Parameters:
//   - filename: Path to the configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if loading fails
func LoadFromFile(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file, strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."))
}

// LoadFromReader loads configuration from an io.Reader.
//
// LoadFromReader 从io.Reader加载配置。
//
// Parameters:
//   - r: The reader providing the configuration data
//   - format: The format of the data ("json", "yaml", or "yml")
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if loading fails
func LoadFromReader(r io.Reader, format string) (*Config, error) {
	config := DefaultConfig()
	var err error

	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.NewDecoder(r).Decode(config)
	case "json":
		err = json.NewDecoder(r).Decode(config)
	default:
		return nil, fmt.Errorf("unsupported configuration format: %s", format)
	}

	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a file in the format given by its extension.
//
// SaveToFile 将配置保存到文件，格式由扩展名决定。
//
// Parameters:
//   - filename: Path where the configuration will be saved
//
// Returns:
//   - error: An error if saving fails
func (c *Config) SaveToFile(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return fmt.Errorf("unsupported configuration file format: %s", ext)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	defer file.Close()

	if ext == ".json" {
		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(c)
	} else {
		encoder := yaml.NewEncoder(file)
		err = encoder.Encode(c)
		if closeErr := encoder.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return nil
}

// Validate validates the configuration.
//
// Validate 验证配置。
//
// Returns:
//   - error: An error describing the validation failure, or nil if valid
func (c *Config) Validate() error {
	// 缓存与重试
	if c.Cache.RefetchInterval < 0 {
		return fmt.Errorf("cache.refetch_interval must be non-negative")
	}
	if c.Cache.SubscriptionBuffer < 0 {
		return fmt.Errorf("cache.subscription_buffer must be non-negative")
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	for i, q := range c.Queries {
		if len(q.Prefix) == 0 {
			return fmt.Errorf("queries[%d].prefix must not be empty", i)
		}
		if q.RefetchInterval != nil && *q.RefetchInterval < 0 {
			return fmt.Errorf("queries[%d].refetch_interval must be non-negative", i)
		}
	}

	if _, err := c.Invalidation.Parse(); err != nil {
		return err
	}

	// 远程接口
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be specified")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Breaker.Enable {
		if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
			return fmt.Errorf("breaker.failure_ratio must be between 0 and 1")
		}
		if c.Breaker.Timeout <= 0 {
			return fmt.Errorf("breaker.timeout must be positive")
		}
	}

	// 日志与指标
	if err := c.LoggerConfig().Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Metrics.Enable {
		switch c.Metrics.Level {
		case "basic", "detailed":
		default:
			return fmt.Errorf("metrics.level must be one of: basic, detailed")
		}
	}

	if c.Server.Enable && c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be specified when server.enable is true")
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be one of: debug, release, test")
	}

	if c.Extensions.HotReload.Enable && c.Extensions.HotReload.WatchInterval != 0 &&
		c.Extensions.HotReload.WatchInterval < time.Second {
		return fmt.Errorf("extensions.hot_reload.watch_interval must be at least 1 second")
	}

	return nil
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() cache.RetryPolicy {
	return cache.RetryPolicy{
		MaxRetries:     c.Retry.MaxRetries,
		Delay:          c.Retry.Delay,
		RateLimitDelay: c.Retry.RateLimitDelay,
		AuthRetries:    c.Retry.AuthRetries,
		UnknownRetries: c.Retry.UnknownRetries,
	}
}

// QueryDefaults converts the cache and retry sections into the
// configuration every query starts from.
//
// QueryDefaults 将cache和retry部分转换为所有查询的起始配置。
//
// Returns:
//   - cache.Config: The query defaults
func (c *Config) QueryDefaults() cache.Config {
	cfg := cache.NewDefaultConfig()
	cfg.StaleTime = staleTime(c.Cache.StaleTime)
	cfg.GCTime = gcTime(c.Cache.GCTime)
	cfg.RefetchOnMount = c.Cache.RefetchOnMount
	cfg.RefetchOnWindowFocus = c.Cache.RefetchOnWindowFocus
	cfg.RefetchOnReconnect = c.Cache.RefetchOnReconnect
	cfg.RefetchInterval = c.Cache.RefetchInterval
	cfg.Retry = c.RetryPolicy()
	return cfg
}

// LoggerConfig converts the log section.
func (c *Config) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:            c.Log.Level,
		Encoding:         c.Log.Encoding,
		OutputPaths:      c.Log.OutputPaths,
		ErrorOutputPaths: c.Log.ErrorOutputPaths,
	}
}

// Key returns the prefix of the query profile.
func (q QueryConfig) Key() querykey.Key {
	return querykey.New(q.Prefix...).With(querykey.Params(q.Params))
}

// Options returns the cache options of the fields that are set.
//
// Options 返回已设置字段对应的缓存选项。
func (q QueryConfig) Options() []cache.Option {
	var opts []cache.Option
	if q.StaleTime != nil {
		opts = append(opts, cache.WithStaleTime(staleTime(*q.StaleTime)))
	}
	if q.GCTime != nil {
		opts = append(opts, cache.WithGCTime(gcTime(*q.GCTime)))
	}
	if q.RefetchOnMount != nil {
		opts = append(opts, cache.WithRefetchOnMount(*q.RefetchOnMount))
	}
	if q.RefetchOnWindowFocus != nil {
		opts = append(opts, cache.WithRefetchOnWindowFocus(*q.RefetchOnWindowFocus))
	}
	if q.RefetchOnReconnect != nil {
		opts = append(opts, cache.WithRefetchOnReconnect(*q.RefetchOnReconnect))
	}
	if q.RefetchInterval != nil {
		opts = append(opts, cache.WithRefetchInterval(*q.RefetchInterval))
	}
	if q.Enabled != nil {
		opts = append(opts, cache.WithEnabled(*q.Enabled))
	}
	return opts
}

// Parse converts the strategy names.
//
// Parse 转换策略名称。
//
// Returns:
//   - map[string]mutation.Strategy: Strategy per mutation kind
//   - error: Error naming the first unknown strategy
func (c InvalidationConfig) Parse() (map[string]mutation.Strategy, error) {
	out := make(map[string]mutation.Strategy, len(c.Strategies))
	for kind, name := range c.Strategies {
		s, err := mutation.ParseStrategy(name)
		if err != nil {
			return nil, fmt.Errorf("invalidation.strategies.%s: %w", kind, err)
		}
		out[strings.ToLower(kind)] = s
	}
	return out, nil
}

func staleTime(d time.Duration) time.Duration {
	if d < 0 {
		return cache.StaleForever
	}
	return d
}

func gcTime(d time.Duration) time.Duration {
	if d < 0 {
		return cache.GCForever
	}
	return d
}
