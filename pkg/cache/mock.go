package cache

import (
	"context"
	"sync"

	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// MockLoader is a scripted loader for tests.
// Responses queued with Enqueue are served first, in order; afterwards the
// fallback function answers. Block holds every Load until released.
//
// MockLoader 是用于测试的脚本化加载器。
// 通过Enqueue排队的响应按顺序优先返回，之后由后备函数应答。Block会阻塞所有Load直到释放。
type MockLoader struct {
	mu       sync.Mutex
	queued   map[string][]mockResponse
	calls    map[string]int
	total    int
	gate     chan struct{}
	fallback func(ctx context.Context, key querykey.Key) (any, error)
}

type mockResponse struct {
	data any
	err  error
}

// NewMockLoader creates a mock loader answering with fn when nothing is queued.
// A nil fn answers with the canonical key string.
//
// NewMockLoader 创建模拟加载器，没有排队响应时使用fn应答。
func NewMockLoader(fn func(ctx context.Context, key querykey.Key) (any, error)) *MockLoader {
	if fn == nil {
		fn = func(ctx context.Context, key querykey.Key) (any, error) {
			return key.String(), nil
		}
	}
	return &MockLoader{
		queued:   make(map[string][]mockResponse),
		calls:    make(map[string]int),
		fallback: fn,
	}
}

// Enqueue queues one response for key.
func (m *MockLoader) Enqueue(key querykey.Key, data any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := key.String()
	m.queued[id] = append(m.queued[id], mockResponse{data: data, err: err})
}

// Block makes every subsequent Load wait until release is called or the
// load's context is cancelled.
//
// Block 使后续的Load等待，直到调用release或加载上下文被取消。
func (m *MockLoader) Block() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times key was loaded.
func (m *MockLoader) Calls(key querykey.Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key.String()]
}

// TotalCalls returns how many loads ran in total.
func (m *MockLoader) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Load implements loader.Loader.
func (m *MockLoader) Load(ctx context.Context, key querykey.Key) (any, error) {
	id := key.String()

	m.mu.Lock()
	m.calls[id]++
	m.total++
	gate := m.gate
	var resp *mockResponse
	if q := m.queued[id]; len(q) > 0 {
		resp = &q[0]
		m.queued[id] = q[1:]
	}
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp != nil {
		return resp.data, resp.err
	}
	return m.fallback(ctx, key)
}
