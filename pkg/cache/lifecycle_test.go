package cache

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// TestUnreadUpdatesReleased 测试未读取的推送在取消订阅或清空后被释放
func TestUnreadUpdatesReleased(t *testing.T) {
	c := newTestClient(t, nil)
	key := querykey.New("progress", "user", "stats")
	c.SetData(key, 0)

	before := runtime.NumGoroutine()
	for round := 0; round < 20; round++ {
		sub, err := c.Subscribe(key, WithStaleTime(StaleForever))
		require.NoError(t, err)
		// more transitions than the channel buffers, never read
		for i := 0; i < 30; i++ {
			c.SetData(key, i)
		}
		sub.Unsubscribe()
	}
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, waitFor, 10*time.Millisecond)

	for round := 0; round < 20; round++ {
		c.SetData(key, 0)
		_, err := c.Subscribe(key, WithStaleTime(StaleForever))
		require.NoError(t, err)
		for i := 0; i < 30; i++ {
			c.SetData(key, i)
		}
		c.Clear()
	}
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, waitFor, 10*time.Millisecond)
}

// TestRetune 测试整体替换默认配置与配置档
func TestRetune(t *testing.T) {
	c := NewClient()
	t.Cleanup(func() { _ = c.Close() })
	settings := querykey.New("settings", "system")

	profiles := []Profile{
		{Prefix: querykey.New("settings"), Options: []Option{WithStaleTime(time.Minute)}},
		{Prefix: querykey.New("settings"), Options: []Option{WithStaleTime(10 * time.Minute)}},
		{Prefix: querykey.New("admin", "stats"), Options: []Option{WithRefetchInterval(time.Minute)}},
	}
	require.NoError(t, c.Retune(NewDefaultConfig(), profiles))
	assert.Equal(t, 10*time.Minute, c.Resolve(settings).StaleTime)
	assert.Equal(t, time.Minute, c.Resolve(querykey.New("admin", "stats")).RefetchInterval)

	bad := NewDefaultConfig()
	bad.Retry.MaxRetries = -1
	assert.Error(t, c.Retune(bad, nil))
	assert.Equal(t, 10*time.Minute, c.Resolve(settings).StaleTime)

	// 并发解析只能看到完整的配置
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			default:
				_ = c.Retune(NewDefaultConfig(), profiles)
			}
		}
	}()
	for i := 0; i < 2000; i++ {
		if got := c.Resolve(settings).StaleTime; got != 10*time.Minute {
			close(done)
			<-finished
			t.Fatalf("resolved stale time %v during retune", got)
		}
	}
	close(done)
	<-finished
}

// TestOutdatedGCFireIgnored 测试过期的回收回调不会淘汰条目
func TestOutdatedGCFireIgnored(t *testing.T) {
	c := newTestClient(t, NewMockLoader(nil))
	key := querykey.New("course", "stats")

	sub, err := c.Subscribe(key, WithGCTime(time.Hour))
	require.NoError(t, err)
	waitSuccess(t, sub)
	sub.Unsubscribe()

	// a fire for a deadline replaced by the unsubscribe above
	c.onGCExpired(key.String())
	assert.Equal(t, 1, c.Len())
	_, scheduled := c.gc.Deadline(key.String())
	assert.True(t, scheduled)

	// a fire while observed again
	again, err := c.Subscribe(key, WithGCTime(time.Hour))
	require.NoError(t, err)
	c.onGCExpired(key.String())
	assert.Equal(t, 1, c.Len())
	again.Unsubscribe()

	// the current deadline is due
	c.mu.Lock()
	c.entries[key.String()].gcAt = time.Now().Add(-time.Millisecond)
	c.mu.Unlock()
	c.onGCExpired(key.String())
	assert.Equal(t, 0, c.Len())
	_, scheduled = c.gc.Deadline(key.String())
	assert.False(t, scheduled)
}
