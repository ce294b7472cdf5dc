// Package configs provides configuration structures and utilities for hquery.
// This file contains tests for the Viper-based configuration functionality.
//
// Package configs 提供hquery的配置结构和工具。
// 本文件包含基于Viper的配置功能的测试。
package configs

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
cache:
  stale_time: 30s
  gc_time: 2m
queries:
  - prefix: ["settings"]
    stale_time: 10m
invalidation:
  strategies:
    topic: precise
api:
  base_url: http://api.test
  timeout: 3s
`

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// TestViperConfigLoad verifies that viper decodes durations and nested
// sections onto the defaults.
//
// TestViperConfigLoad 验证viper将时长和嵌套部分解析到默认值之上。
func TestViperConfigLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hquery.yaml")
	writeConfig(t, path, baseYAML)

	vc, err := NewViperConfig(path)
	require.NoError(t, err)
	config := vc.Get()

	assert.Equal(t, 30*time.Second, config.Cache.StaleTime)
	assert.Equal(t, 2*time.Minute, config.Cache.GCTime)
	assert.True(t, config.Cache.RefetchOnMount)
	assert.Equal(t, 3*time.Second, config.API.Timeout)
	assert.Equal(t, "precise", config.Invalidation.Strategies["topic"])
	require.Len(t, config.Queries, 1)
	require.NotNil(t, config.Queries[0].StaleTime)
	assert.Equal(t, 10*time.Minute, *config.Queries[0].StaleTime)
	assert.Nil(t, config.Queries[0].GCTime)
}

// TestViperConfigEnvOverride checks HQUERY_* overrides of the API section.
func TestViperConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hquery.yaml")
	writeConfig(t, path, baseYAML)
	t.Setenv("HQUERY_API_BASE_URL", "http://override.test")

	vc, err := NewViperConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override.test", vc.Get().API.BaseURL)
}

// TestViperConfigInvalid rejects files failing validation.
func TestViperConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hquery.yaml")
	writeConfig(t, path, "invalidation:\n  strategies:\n    topic: sometimes\n")

	_, err := NewViperConfig(path)
	assert.Error(t, err)

	_, err = NewViperConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestViperConfigReload verifies subscribers are notified only on change and
// that invalid content keeps the previous configuration.
//
// TestViperConfigReload 验证只有内容变化时才通知订阅者，无效内容保留原配置。
func TestViperConfigReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hquery.yaml")
	writeConfig(t, path, baseYAML)

	vc, err := NewViperConfig(path)
	require.NoError(t, err)

	var calls atomic.Int32
	var last atomic.Pointer[Config]
	vc.Subscribe(func(c *Config) {
		calls.Add(1)
		last.Store(c)
	})

	changed, err := vc.Reload()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int32(0), calls.Load())

	writeConfig(t, path, baseYAML+"retry:\n  max_retries: 5\n")
	changed, err = vc.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 5, last.Load().Retry.MaxRetries)
	assert.Equal(t, 5, vc.Get().Retry.MaxRetries)

	writeConfig(t, path, baseYAML+"retry:\n  max_retries: -1\n")
	_, err = vc.Reload()
	assert.Error(t, err)
	assert.Equal(t, 5, vc.Get().Retry.MaxRetries)
	assert.Equal(t, int32(1), calls.Load())
}

// TestLoadViperConfigWithWatcher polls the file and picks up edits.
//
// TestLoadViperConfigWithWatcher 轮询文件并获取修改。
func TestLoadViperConfigWithWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hquery.yaml")
	writeConfig(t, path, baseYAML)

	_, err := LoadViperConfigWithWatcher(path, 0)
	require.Error(t, err)

	vc, err := LoadViperConfigWithWatcher(path, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(vc.Close)

	changed := make(chan *Config, 1)
	vc.Subscribe(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	writeConfig(t, path, baseYAML+"metrics:\n  namespace: learn\n")

	select {
	case c := <-changed:
		assert.Equal(t, "learn", c.Metrics.Namespace)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not pick up the change")
	}
}

// TestConfigsEqual compares configurations deeply.
func TestConfigsEqual(t *testing.T) {
	a, b := DefaultConfig(), DefaultConfig()
	assert.True(t, configsEqual(a, b))

	b.Queries = []QueryConfig{{Prefix: []string{"settings"}}}
	assert.False(t, configsEqual(a, b))
}
