// Package configs provides configuration structures and utilities for hquery.
// This file contains tests for the configuration functionality.
//
// Package configs 提供hquery的配置结构和工具。
// 本文件包含配置功能的测试。
package configs

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/mutation"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// TestDefaultConfig verifies the defaults match the cache package defaults.
//
// TestDefaultConfig 验证默认值与缓存包的默认值一致。
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NotNil(t, config)
	require.NoError(t, config.Validate())

	assert.Equal(t, cache.NewDefaultConfig(), config.QueryDefaults())
	assert.Equal(t, cache.DefaultRetryPolicy(), config.RetryPolicy())
	assert.Equal(t, "info", config.Log.Level)
	assert.True(t, config.Breaker.Enable)
}

// TestLoadAndSaveConfig saves and reloads configuration in YAML and JSON.
//
// TestLoadAndSaveConfig 测试YAML和JSON格式的保存与加载。
func TestLoadAndSaveConfig(t *testing.T) {
	tempDir := t.TempDir()
	stale := 10 * time.Minute

	config := DefaultConfig()
	config.Cache.GCTime = time.Minute
	config.API.BaseURL = "https://learn.example.com/api"
	config.Queries = []QueryConfig{{Prefix: []string{"settings"}, StaleTime: &stale}}
	config.Invalidation.Strategies = map[string]string{"question": "blunt"}

	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tempDir, name)
			require.NoError(t, config.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, time.Minute, loaded.Cache.GCTime)
			assert.Equal(t, "https://learn.example.com/api", loaded.API.BaseURL)
			require.Len(t, loaded.Queries, 1)
			require.NotNil(t, loaded.Queries[0].StaleTime)
			assert.Equal(t, stale, *loaded.Queries[0].StaleTime)
			assert.Equal(t, "blunt", loaded.Invalidation.Strategies["question"])
		})
	}

	assert.Error(t, config.SaveToFile(filepath.Join(tempDir, "config.txt")))
	_, err := LoadFromFile(filepath.Join(tempDir, "missing.yaml"))
	assert.Error(t, err)
}

// TestLoadFromReader decodes human readable durations and keeps defaults for
// omitted sections.
//
// TestLoadFromReader 解析可读的时长格式，并为省略的部分保留默认值。
func TestLoadFromReader(t *testing.T) {
	yamlConfig := `
cache:
  stale_time: 30s
  gc_time: -1
  refetch_on_window_focus: false
queries:
  - prefix: ["questions", "summary"]
    params:
      categoryId: 7
    stale_time: 1m
    enabled: false
invalidation:
  strategies:
    solution: precise
api:
  base_url: http://api.test
`
	config, err := LoadFromReader(strings.NewReader(yamlConfig), "yaml")
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	defaults := config.QueryDefaults()
	assert.Equal(t, 30*time.Second, defaults.StaleTime)
	assert.Equal(t, cache.GCForever, defaults.GCTime)
	assert.False(t, defaults.RefetchOnWindowFocus)
	assert.True(t, defaults.RefetchOnReconnect)
	assert.Equal(t, 10*time.Second, config.API.Timeout)

	require.Len(t, config.Queries, 1)
	q := config.Queries[0]
	want := querykey.New("questions", "summary").With(querykey.Params{"categoryId": 7})
	assert.True(t, querykey.Equal(want, q.Key()))

	resolved := cache.NewDefaultConfig()
	for _, opt := range q.Options() {
		opt(&resolved)
	}
	assert.Equal(t, time.Minute, resolved.StaleTime)
	assert.False(t, resolved.Enabled)
	assert.Equal(t, cache.DefaultGCTime, resolved.GCTime)

	strategies, err := config.Invalidation.Parse()
	require.NoError(t, err)
	assert.Equal(t, mutation.Precise, strategies["solution"])

	_, err = LoadFromReader(strings.NewReader("{}"), "toml")
	assert.Error(t, err)
}

// TestNegativeStaleTimeMeansForever checks the config shorthand for StaleForever.
func TestNegativeStaleTimeMeansForever(t *testing.T) {
	config := DefaultConfig()
	config.Cache.StaleTime = -5 * time.Second
	assert.Equal(t, cache.StaleForever, config.QueryDefaults().StaleTime)
	assert.NoError(t, config.QueryDefaults().Validate())
}

// TestValidate exercises each validation rule.
//
// TestValidate 测试每条验证规则。
func TestValidate(t *testing.T) {
	negative := -time.Second

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"negative interval", func(c *Config) { c.Cache.RefetchInterval = -time.Second }, true},
		{"negative buffer", func(c *Config) { c.Cache.SubscriptionBuffer = -1 }, true},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, true},
		{"empty query prefix", func(c *Config) { c.Queries = []QueryConfig{{}} }, true},
		{"negative query interval", func(c *Config) {
			c.Queries = []QueryConfig{{Prefix: []string{"x"}, RefetchInterval: &negative}}
		}, true},
		{"unknown strategy", func(c *Config) {
			c.Invalidation.Strategies = map[string]string{"question": "sometimes"}
		}, true},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, true},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"bad failure ratio", func(c *Config) { c.Breaker.FailureRatio = 1.5 }, true},
		{"bad ratio with breaker off", func(c *Config) {
			c.Breaker.Enable = false
			c.Breaker.FailureRatio = 1.5
		}, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"bad metrics level", func(c *Config) { c.Metrics.Level = "everything" }, true},
		{"server without addr", func(c *Config) {
			c.Server.Enable = true
			c.Server.Addr = ""
		}, true},
		{"bad server mode", func(c *Config) { c.Server.Mode = "prod" }, true},
		{"short watch interval", func(c *Config) {
			c.Extensions.HotReload.Enable = true
			c.Extensions.HotReload.WatchInterval = time.Millisecond
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
