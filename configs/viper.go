// Package configs provides configuration structures and utilities for hquery.
// This file implements Viper-based configuration management with hot reloading support.
//
// Package configs 提供hquery的配置结构和工具。
// 本文件实现基于Viper的配置管理，支持热重载。
package configs

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/pkg/logger"
)

// EnvPrefix is the prefix of environment overrides, e.g. HQUERY_API_BASE_URL.
const EnvPrefix = "HQUERY"

// ViperConfig wraps a Config with Viper functionality for hot reloading.
// It provides thread-safe access to configuration and notifies subscribers
// when the underlying configuration file changes.
//
// ViperConfig 使用Viper功能包装Config以支持热重载。
// 它提供对配置的线程安全访问，并在底层配置文件更改时通知订阅者。
type ViperConfig struct {
	viper      *viper.Viper
	configFile string
	log        logger.Logger

	mu          sync.RWMutex
	config      *Config
	subscribers []func(*Config)

	stopOnce sync.Once
	stop     chan struct{}
}

// ViperOption configures a ViperConfig.
type ViperOption func(*ViperConfig)

// WithViperLogger sets the logger used to report reload events.
func WithViperLogger(l logger.Logger) ViperOption {
	return func(vc *ViperConfig) {
		vc.log = logger.OrNop(l)
	}
}

// NewViperConfig creates a new ViperConfig.
// It loads configuration from the specified file, applies HQUERY_* environment
// overrides, and validates the result.
//
// NewViperConfig 创建一个新的ViperConfig。
// 它从指定的文件加载配置，应用HQUERY_*环境变量覆盖，并验证结果。
//
// Parameters:
//   - configFile: Path to the configuration file
//   - opts: Optional settings
//
// Returns:
//   - *ViperConfig: A new ViperConfig instance
//   - error: An error if loading or validation fails
func NewViperConfig(configFile string, opts ...ViperOption) (*ViperConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(configFile), "."))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	vc := &ViperConfig{
		viper:      v,
		configFile: configFile,
		log:        logger.NewNop(),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(vc)
	}

	config, err := vc.decode()
	if err != nil {
		return nil, err
	}
	vc.config = config
	return vc, nil
}

// decode unmarshals the viper state on top of the defaults and validates it.
func (vc *ViperConfig) decode() (*Config, error) {
	config := DefaultConfig()
	if err := vc.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// AutomaticEnv只对显式读取的键生效
	if url := vc.viper.GetString("api.base_url"); url != "" {
		config.API.BaseURL = url
	}
	if token := vc.viper.GetString("api.token"); token != "" {
		config.API.Token = token
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// EnableHotReload enables hot reloading of the configuration file.
// When the file changes, the configuration is reloaded and all subscribers are
// notified. Invalid files are logged and ignored.
//
// EnableHotReload 启用配置文件的热重载。
// 当文件更改时重新加载配置并通知所有订阅者。无效的文件会被记录并忽略。
func (vc *ViperConfig) EnableHotReload() {
	vc.viper.OnConfigChange(func(e fsnotify.Event) {
		vc.log.Info("config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		vc.reload()
	})
	vc.viper.WatchConfig()
}

// Reload re-reads the configuration file and notifies subscribers when the
// content changed.
//
// Reload 重新读取配置文件，内容变化时通知订阅者。
//
// Returns:
//   - bool: Whether the configuration changed
//   - error: An error if the file could not be read or is invalid
func (vc *ViperConfig) Reload() (bool, error) {
	if err := vc.viper.ReadInConfig(); err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return vc.apply()
}

func (vc *ViperConfig) reload() {
	if _, err := vc.apply(); err != nil {
		vc.log.Warn("config reload rejected", zap.String("file", vc.configFile), zap.Error(err))
	}
}

func (vc *ViperConfig) apply() (bool, error) {
	newConfig, err := vc.decode()
	if err != nil {
		return false, err
	}

	vc.mu.Lock()
	if configsEqual(vc.config, newConfig) {
		vc.mu.Unlock()
		return false, nil
	}
	vc.config = newConfig
	subscribers := make([]func(*Config), len(vc.subscribers))
	copy(subscribers, vc.subscribers)
	vc.mu.Unlock()

	vc.log.Info("config reloaded", zap.String("file", vc.configFile), zap.Int("subscribers", len(subscribers)))
	for _, subscriber := range subscribers {
		subscriber(newConfig)
	}
	return true, nil
}

// Subscribe adds a subscriber that will be notified when the configuration changes.
// The subscriber function is called with the new configuration as its argument.
//
// Subscribe 添加一个在配置更改时将被通知的订阅者。
//
// Parameters:
//   - subscriber: A function to call when the configuration changes
func (vc *ViperConfig) Subscribe(subscriber func(*Config)) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.subscribers = append(vc.subscribers, subscriber)
}

// Get returns the current configuration.
// The returned value must be treated as read-only.
//
// Get 返回当前配置。返回值必须视为只读。
//
// Returns:
//   - *Config: The current configuration
func (vc *ViperConfig) Get() *Config {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.config
}

// Close stops the polling watcher started by LoadViperConfigWithWatcher.
func (vc *ViperConfig) Close() {
	vc.stopOnce.Do(func() { close(vc.stop) })
}

// LoadViperConfig loads a configuration from a file using Viper.
// Hot reloading is enabled when enableHotReload is set or when the file
// itself enables extensions.hot_reload.
//
// LoadViperConfig 使用Viper从文件加载配置。
// 当enableHotReload为真或文件自身启用extensions.hot_reload时启用热重载。
//
// Parameters:
//   - configFile: Path to the configuration file
//   - enableHotReload: Whether to enable hot reloading
//   - opts: Optional settings
//
// Returns:
//   - *ViperConfig: A new ViperConfig instance
//   - error: An error if loading fails
func LoadViperConfig(configFile string, enableHotReload bool, opts ...ViperOption) (*ViperConfig, error) {
	vc, err := NewViperConfig(configFile, opts...)
	if err != nil {
		return nil, err
	}

	if enableHotReload || vc.Get().Extensions.HotReload.Enable {
		vc.EnableHotReload()
	}

	return vc, nil
}

// LoadViperConfigWithWatcher loads a configuration from a file using Viper and
// polls the file for changes. It is an alternative to fsnotify for file
// systems where notifications are unreliable. Call Close to stop polling.
//
// LoadViperConfigWithWatcher 使用Viper从文件加载配置并定期检查文件变化。
// 在文件系统通知不可靠时可替代fsnotify。调用Close停止轮询。
//
// Parameters:
//   - configFile: Path to the configuration file
//   - watchInterval: How often to check for changes
//   - opts: Optional settings
//
// Returns:
//   - *ViperConfig: A new ViperConfig instance
//   - error: An error if loading fails
func LoadViperConfigWithWatcher(configFile string, watchInterval time.Duration, opts ...ViperOption) (*ViperConfig, error) {
	if watchInterval <= 0 {
		return nil, fmt.Errorf("watch interval must be positive")
	}
	vc, err := NewViperConfig(configFile, opts...)
	if err != nil {
		return nil, err
	}

	go func() {
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-vc.stop:
				return
			case <-ticker.C:
				if _, err := vc.Reload(); err != nil {
					vc.log.Warn("config poll failed", zap.String("file", configFile), zap.Error(err))
				}
			}
		}
	}()

	return vc, nil
}

// configsEqual reports whether two configurations are deeply equal.
func configsEqual(c1, c2 *Config) bool {
	return reflect.DeepEqual(c1, c2)
}
