package cache

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/hquery/internal/routine"
	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/loader"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

var fastRetry = RetryPolicy{
	MaxRetries:     2,
	Delay:          time.Millisecond,
	RateLimitDelay: time.Millisecond,
	AuthRetries:    1,
	UnknownRetries: 1,
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestClient(t *testing.T, l loader.Loader, opts ...ClientOption) *Client {
	t.Helper()
	reg := loader.NewRegistry()
	if l != nil {
		reg.Register(querykey.Root, l)
	}
	c := NewClient(append([]ClientOption{WithLoaders(reg)}, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitSuccess(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		s := sub.Snapshot()
		return s.Status == StatusSuccess
	}, waitFor, tick)
	return sub.Snapshot()
}

func summaryKey(page int) querykey.Key {
	return querykey.New("questions", "summary").With(querykey.Params{"page": page})
}

// TestSubscribeDeduplicates 测试并发订阅同一个键只发起一次请求
func TestSubscribeDeduplicates(t *testing.T) {
	ml := NewMockLoader(nil)
	release := ml.Block()
	c := newTestClient(t, ml)
	key := summaryKey(0)

	const n = 10
	subs := make([]*Subscription, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := c.Subscribe(key)
			assert.NoError(t, err)
			subs[i] = sub
		}(i)
	}
	wg.Wait()
	release()
	require.NotContains(t, subs, (*Subscription)(nil))

	for _, sub := range subs {
		s := waitSuccess(t, sub)
		assert.Equal(t, key.String(), s.Data)
		assert.Equal(t, n, s.Subscribers)
	}
	assert.Equal(t, 1, ml.Calls(key))
}

// TestConcurrentFetchShareResult 测试并发Fetch共享同一结果
func TestConcurrentFetchShareResult(t *testing.T) {
	var calls atomic.Int32
	l := loader.LoaderFunc(func(ctx context.Context, key querykey.Key) (any, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "shared", nil
	})
	c := newTestClient(t, l)

	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), querykey.New("categories", "list"))
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

// TestStaleTimeThreshold 测试过期阈值
func TestStaleTimeThreshold(t *testing.T) {
	clk := newFakeClock()
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml, WithClock(clk.Now))
	key := summaryKey(0)
	staleTime := time.Minute

	first, err := c.Subscribe(key, WithStaleTime(staleTime))
	require.NoError(t, err)
	waitSuccess(t, first)
	first.Unsubscribe()

	clk.Advance(staleTime - time.Second)
	second, err := c.Subscribe(key, WithStaleTime(staleTime))
	require.NoError(t, err)
	s := second.Snapshot()
	assert.False(t, s.IsFetching)
	assert.False(t, s.IsStale)
	second.Unsubscribe()

	clk.Advance(2 * time.Second)
	third, err := c.Subscribe(key, WithStaleTime(staleTime))
	require.NoError(t, err)
	assert.True(t, third.Snapshot().IsFetching)
	waitSuccess(t, third)
	assert.Equal(t, 2, ml.Calls(key))
}

// TestZeroStaleTimeRefetchesEverySubscribe 测试staleTime为0时每次订阅都会重新获取
func TestZeroStaleTimeRefetchesEverySubscribe(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("categories", "with-progress")

	for i := 1; i <= 3; i++ {
		sub, err := c.Subscribe(key)
		require.NoError(t, err)
		waitSuccess(t, sub)
		sub.Unsubscribe()
		assert.Equal(t, i, ml.Calls(key))
	}
}

// TestRefetchOnMountDisabled 测试关闭挂载重新获取后只在无数据时获取
func TestRefetchOnMountDisabled(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("settings", "system")

	sub, err := c.Subscribe(key, WithRefetchOnMount(false))
	require.NoError(t, err)
	waitSuccess(t, sub)

	again, err := c.Subscribe(key, WithRefetchOnMount(false))
	require.NoError(t, err)
	assert.False(t, again.Snapshot().IsFetching)
	assert.True(t, again.Snapshot().IsStale)
	assert.Equal(t, 1, ml.Calls(key))
}

// TestStaleWhileError 测试失败时保留旧数据
func TestStaleWhileError(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("questions", "detail", "42")

	ml.Enqueue(key, "v1", nil)
	sub, err := c.Subscribe(key, WithRetry(NoRetry()))
	require.NoError(t, err)
	waitSuccess(t, sub)

	ml.Enqueue(key, nil, errors.FromStatus("GET /questions/42", 422, "bad request"))
	_, err = sub.Refetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	s := sub.Snapshot()
	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, "v1", s.Data)
	assert.True(t, s.HasData)
	require.Error(t, s.Err)
	assert.False(t, s.IsLoading)
}

// TestEvictionAfterGCTime 测试无订阅者超过gcTime后被回收
func TestEvictionAfterGCTime(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("course", "stats")

	sub, err := c.Subscribe(key, WithGCTime(30*time.Millisecond))
	require.NoError(t, err)
	waitSuccess(t, sub)

	// observed entries are never evicted
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, c.Len())

	sub.Unsubscribe()
	require.Eventually(t, func() bool { return c.Len() == 0 }, waitFor, tick)
	_, ok := c.Peek(key)
	assert.False(t, ok)

	again, err := c.Subscribe(key)
	require.NoError(t, err)
	s := again.Snapshot()
	assert.True(t, s.IsLoading)
	waitSuccess(t, again)
	assert.Equal(t, 2, ml.Calls(key))
}

// TestResubscribeCancelsEviction 测试重新订阅会取消回收
func TestResubscribeCancelsEviction(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("course", "topics", "list")

	sub, err := c.Subscribe(key, WithGCTime(40*time.Millisecond))
	require.NoError(t, err)
	waitSuccess(t, sub)
	sub.Unsubscribe()
	_, err = c.Subscribe(key, WithGCTime(40*time.Millisecond))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, c.Len())
}

// TestInvalidateRefetchesObservedOnly 测试失效时只立即重新获取被观察的条目
func TestInvalidateRefetchesObservedOnly(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	observed := summaryKey(0)
	idle := querykey.New("questions", "detail", "7")
	unrelated := querykey.New("solutions", "list")

	sub, err := c.Subscribe(observed)
	require.NoError(t, err)
	waitSuccess(t, sub)
	_, err = c.Fetch(context.Background(), idle)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), unrelated)
	require.NoError(t, err)

	marked := c.Invalidate(querykey.New("questions"))
	assert.Equal(t, 2, marked)

	require.Eventually(t, func() bool { return ml.Calls(observed) == 2 }, waitFor, tick)
	waitSuccess(t, sub)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, ml.Calls(idle))
	s, ok := c.Peek(idle)
	require.True(t, ok)
	assert.True(t, s.IsStale)

	u, _ := c.Peek(unrelated)
	assert.Equal(t, StatusSuccess, u.Status)

	// lazy refetch on next access
	_, err = c.Get(context.Background(), idle, WithStaleTime(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, ml.Calls(idle))
}

// TestMarkStaleDoesNotRefetch 测试MarkStale不会重新获取
func TestMarkStaleDoesNotRefetch(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("admin", "stats")
	sub, err := c.Subscribe(key, WithStaleTime(time.Hour))
	require.NoError(t, err)
	waitSuccess(t, sub)

	assert.Equal(t, 1, c.MarkStale(querykey.New("admin")))
	assert.True(t, sub.Snapshot().IsStale)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, ml.Calls(key))
}

// TestRefreshAll 测试RefreshAll重新获取所有被观察的条目
func TestRefreshAll(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	a, err := c.Subscribe(querykey.New("course", "stats"))
	require.NoError(t, err)
	b, err := c.Subscribe(querykey.New("solutions", "list"))
	require.NoError(t, err)
	waitSuccess(t, a)
	waitSuccess(t, b)

	assert.Equal(t, 2, c.RefreshAll())
	require.Eventually(t, func() bool { return ml.TotalCalls() == 4 }, waitFor, tick)
}

// TestInvalidateSupersedesInFlight 测试失效会取代进行中的请求
func TestInvalidateSupersedesInFlight(t *testing.T) {
	var n atomic.Int32
	var cancelled atomic.Bool
	l := loader.LoaderFunc(func(ctx context.Context, key querykey.Key) (any, error) {
		if n.Add(1) == 1 {
			<-ctx.Done()
			cancelled.Store(true)
			return "old", ctx.Err()
		}
		return "fresh", nil
	})
	c := newTestClient(t, l)
	key := querykey.New("questions", "list")

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.Fetch(context.Background(), key)
		done <- result{v, err}
	}()
	require.Eventually(t, func() bool { return n.Load() == 1 }, waitFor, tick)

	c.Invalidate(key)
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "fresh", r.v)
	case <-time.After(waitFor):
		t.Fatal("waiter did not follow the new fetch")
	}
	require.Eventually(t, cancelled.Load, waitFor, tick)
	s, _ := c.Peek(key)
	assert.Equal(t, "fresh", s.Data)
}

// TestCallerCancelDoesNotAbortFetch 测试调用方取消不会中止共享请求
func TestCallerCancelDoesNotAbortFetch(t *testing.T) {
	ml := NewMockLoader(nil)
	release := ml.Block()
	c := newTestClient(t, ml)
	key := querykey.New("progress", "user", "stats")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Fetch(ctx, key)
	assert.ErrorIs(t, err, context.Canceled)

	release()
	require.Eventually(t, func() bool {
		s, ok := c.Peek(key)
		return ok && s.Status == StatusSuccess
	}, waitFor, tick)
}

// TestRetryPolicyApplied 测试按错误类别重试
func TestRetryPolicyApplied(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   func(error) bool
	}{
		{"server recovers", []error{errors.FromStatus("GET", 503, ""), errors.FromStatus("GET", 500, "")}, 3, nil},
		{"server exhausts", []error{errors.FromStatus("GET", 503, ""), errors.FromStatus("GET", 503, ""), errors.FromStatus("GET", 503, "")}, 3, errors.IsServer},
		{"network recovers", []error{errors.Network("GET", context.DeadlineExceeded)}, 2, nil},
		{"rate limited", []error{errors.FromStatus("GET", 429, "")}, 2, nil},
		{"validation terminal", []error{errors.FromStatus("GET", 400, "")}, 1, errors.IsValidation},
		{"not found terminal", []error{errors.FromStatus("GET", 404, "")}, 1, errors.IsNotFound},
		{"unknown once", []error{stderrors.New("x"), stderrors.New("y")}, 2, func(err error) bool { return err != nil }},
		{"auth without refresher", []error{errors.FromStatus("GET", 401, "")}, 1, errors.IsAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ml := NewMockLoader(nil)
			c := newTestClient(t, ml)
			key := querykey.New("questions", "stats")
			for _, err := range tt.errs {
				ml.Enqueue(key, nil, err)
			}

			v, err := c.Fetch(context.Background(), key, WithRetry(fastRetry))
			assert.Equal(t, tt.wantCalls, ml.Calls(key))
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, key.String(), v)
			} else {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
			}
		})
	}
}

// TestAuthRetriedAfterRefresh 测试认证失败在刷新凭证后重试一次
func TestAuthRetriedAfterRefresh(t *testing.T) {
	var refreshed atomic.Int32
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml, WithCredentialRefresher(RefresherFunc(func(ctx context.Context) error {
		refreshed.Add(1)
		return nil
	})))
	key := querykey.New("progress", "user", "recent")

	ml.Enqueue(key, nil, errors.FromStatus("GET", 401, ""))
	_, err := c.Fetch(context.Background(), key, WithRetry(fastRetry))
	require.NoError(t, err)
	assert.Equal(t, 2, ml.Calls(key))
	assert.Equal(t, int32(1), refreshed.Load())

	// second auth failure in the same fetch is terminal
	ml.Enqueue(key, nil, errors.FromStatus("GET", 401, ""))
	ml.Enqueue(key, nil, errors.FromStatus("GET", 403, ""))
	_, err = c.Fetch(context.Background(), key, WithRetry(fastRetry))
	assert.True(t, errors.IsAuth(err))
	assert.Equal(t, 4, ml.Calls(key))
}

// TestNotFoundSuppressesAutomaticRefetch 测试不存在的实体不会被自动重新获取
func TestNotFoundSuppressesAutomaticRefetch(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("questions", "detail", "9")

	sub, err := c.Subscribe(key)
	require.NoError(t, err)
	waitSuccess(t, sub)

	ml.Enqueue(key, nil, errors.FromStatus("GET /questions/9", 404, ""))
	_, err = sub.Refetch(context.Background())
	require.True(t, errors.IsNotFound(err))

	s := sub.Snapshot()
	assert.False(t, s.HasData)
	assert.Equal(t, StatusError, s.Status)

	other, err := c.Subscribe(key)
	require.NoError(t, err)
	assert.False(t, other.Snapshot().IsFetching)
	assert.Equal(t, 0, c.NotifyFocus())
	assert.Equal(t, 2, ml.Calls(key))

	// invalidation lifts the suppression
	c.Invalidate(key)
	waitSuccess(t, sub)
	assert.Equal(t, 3, ml.Calls(key))
}

// TestLoaderPanicBecomesError 测试加载器panic转换为错误
func TestLoaderPanicBecomesError(t *testing.T) {
	l := loader.LoaderFunc(func(ctx context.Context, key querykey.Key) (any, error) {
		panic("broken loader")
	})
	c := newTestClient(t, l)
	_, err := c.Fetch(context.Background(), querykey.New("files", "upload-config"), WithRetry(NoRetry()))
	require.Error(t, err)
	assert.ErrorIs(t, err, routine.ErrPanicRecovered)
}

// TestSetData 测试手动写入
func TestSetData(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("questions", "detail", "1")

	sub, err := c.Subscribe(key, WithStaleTime(time.Hour))
	require.NoError(t, err)
	waitSuccess(t, sub)
	c.MarkStale(key)

	c.SetData(key, "authoritative")
	s := sub.Snapshot()
	assert.Equal(t, "authoritative", s.Data)
	assert.False(t, s.IsStale)
	assert.Equal(t, StatusSuccess, s.Status)

	c.UpdateData(key, func(old any, ok bool) any {
		require.True(t, ok)
		return old.(string) + "!"
	})
	assert.Equal(t, "authoritative!", sub.Snapshot().Data)
}

// TestSetDataResolvesInFlightWaiters 测试手动写入会释放进行中请求的等待者
func TestSetDataResolvesInFlightWaiters(t *testing.T) {
	ml := NewMockLoader(nil)
	release := ml.Block()
	defer release()
	c := newTestClient(t, ml)
	key := querykey.New("settings", "system")

	done := make(chan any, 1)
	go func() {
		v, _ := c.Fetch(context.Background(), key)
		done <- v
	}()
	require.Eventually(t, func() bool { return ml.Calls(key) == 1 }, waitFor, tick)

	c.SetData(key, "saved")
	select {
	case v := <-done:
		assert.Equal(t, "saved", v)
	case <-time.After(waitFor):
		t.Fatal("waiter not released")
	}
}

// TestClear 测试清空缓存
func TestClear(t *testing.T) {
	ml := NewMockLoader(nil)
	release := ml.Block()
	defer release()
	c := newTestClient(t, ml)
	key := querykey.New("categories", "list")

	sub, err := c.Subscribe(key)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return sub.Snapshot().IsFetching }, waitFor, tick)

	c.Clear()
	select {
	case err := <-errCh:
		assert.True(t, errors.IsCleared(err))
	case <-time.After(waitFor):
		t.Fatal("waiter not released by Clear")
	}
	assert.Equal(t, 0, c.Len())

	// the update channel drains and closes
	for range sub.Updates() {
	}
	sub.Unsubscribe()
	_, err = sub.Refetch(context.Background())
	assert.True(t, errors.IsCleared(err))
}

// TestUpdatesStream 测试状态变化推送
func TestUpdatesStream(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	sub, err := c.Subscribe(querykey.New("course", "documents", "by-topic", "3"))
	require.NoError(t, err)

	var seen []Status
	timeout := time.After(waitFor)
	for {
		select {
		case s := <-sub.Updates():
			seen = append(seen, s.Status)
			if s.Status == StatusSuccess {
				assert.Equal(t, []Status{StatusIdle, StatusFetching, StatusSuccess}, seen)
				return
			}
		case <-timeout:
			t.Fatalf("no success snapshot, saw %v", seen)
		}
	}
}

// TestFocusAndReconnectTriggers 测试焦点与重连触发器
func TestFocusAndReconnectTriggers(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)

	always := querykey.New("questions", "list")
	fresh := querykey.New("files", "upload-config")
	noFocus := querykey.New("settings", "system")

	a, err := c.Subscribe(always)
	require.NoError(t, err)
	b, err := c.Subscribe(fresh, WithStaleTime(StaleForever))
	require.NoError(t, err)
	d, err := c.Subscribe(noFocus, WithRefetchOnWindowFocus(false))
	require.NoError(t, err)
	waitSuccess(t, a)
	waitSuccess(t, b)
	waitSuccess(t, d)

	assert.Equal(t, 1, c.NotifyFocus())
	waitSuccess(t, a)
	require.Eventually(t, func() bool { return ml.Calls(always) == 2 }, waitFor, tick)

	assert.Equal(t, 2, c.NotifyReconnect())
	require.Eventually(t, func() bool { return ml.Calls(noFocus) == 2 }, waitFor, tick)
	assert.Equal(t, 1, ml.Calls(fresh))
}

// TestRefetchInterval 测试定期重新获取
func TestRefetchInterval(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("admin", "stats")

	sub, err := c.Subscribe(key, WithRefetchInterval(15*time.Millisecond), WithGCTime(GCForever))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ml.Calls(key) >= 3 }, waitFor, tick)

	sub.Unsubscribe()
	time.Sleep(20 * time.Millisecond)
	stopped := ml.Calls(key)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stopped, ml.Calls(key))
}

// TestDisabledQuery 测试禁用的查询
func TestDisabledQuery(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	key := querykey.New("questions", "detail", "0")

	sub, err := c.Subscribe(key, WithEnabled(false))
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, sub.Snapshot().Status)
	_, err = c.Get(context.Background(), key, WithEnabled(false))
	assert.ErrorIs(t, err, errors.ErrDisabled)

	v, err := sub.Refetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, key.String(), v)
}

// TestNoLoader 测试未绑定加载器
func TestNoLoader(t *testing.T) {
	c := newTestClient(t, nil)
	_, err := c.Fetch(context.Background(), querykey.New("nothing"))
	assert.ErrorIs(t, err, errors.ErrNoLoader)
}

// TestProfiles 测试配置档按具体程度叠加
func TestProfiles(t *testing.T) {
	c := newTestClient(t, nil,
		WithProfile(querykey.New("files"), WithStaleTime(10*time.Minute)),
		WithProfile(querykey.New("files", "upload-config"), WithGCTime(time.Hour)),
		WithProfile(querykey.New("settings"), WithStaleTime(5*time.Minute)),
	)

	cfg := c.Resolve(querykey.New("files", "upload-config"))
	assert.Equal(t, 10*time.Minute, cfg.StaleTime)
	assert.Equal(t, time.Hour, cfg.GCTime)

	cfg = c.Resolve(querykey.New("questions", "list"))
	assert.Equal(t, time.Duration(0), cfg.StaleTime)
	assert.Equal(t, DefaultGCTime, cfg.GCTime)

	c.SetProfile(querykey.New("settings"), WithStaleTime(time.Minute))
	assert.Equal(t, time.Minute, c.Resolve(querykey.New("settings", "system")).StaleTime)
	assert.Equal(t, 2*time.Minute, c.Resolve(querykey.New("settings", "system"), WithStaleTime(2*time.Minute)).StaleTime)

	c.ResetProfiles()
	assert.Equal(t, time.Duration(0), c.Resolve(querykey.New("settings", "system")).StaleTime)
}

// TestClosedClient 测试关闭后的客户端
func TestClosedClient(t *testing.T) {
	c := NewClient()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Subscribe(querykey.New("x"))
	assert.ErrorIs(t, err, errors.ErrClosed)
	_, err = c.Fetch(context.Background(), querykey.New("x"))
	assert.True(t, errors.IsClosed(err))
}

// TestEntries 测试条目列表按键排序
func TestEntries(t *testing.T) {
	ml := NewMockLoader(nil)
	c := newTestClient(t, ml)
	for _, k := range []querykey.Key{querykey.New("b"), querykey.New("a")} {
		_, err := c.Fetch(context.Background(), k)
		require.NoError(t, err)
	}
	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, `["a"]`, entries[0].Key.String())
	assert.Equal(t, `["b"]`, entries[1].Key.String())
}
