// Package ttl 提供无订阅者缓存条目的回收调度
// 每个键最多只有一个回收截止时间，到期后通过回调通知缓存进行淘汰
package ttl

import (
	"container/heap"
	"sync"
	"time"
)

const (
	// 空闲时的最长等待时间
	defaultIdleWait = time.Minute
)

// Config 回收调度器配置
type Config struct {
	// 到期回调函数，在调度器锁之外调用
	OnExpired func(key string)

	// 时间源，默认为time.Now
	Now func() time.Time
}

// Manager 回收调度器
// 使用最小堆维护截止时间，单个定时器总是指向最早的截止时间
type Manager struct {
	config    Config
	expiry    *expiryHeap
	index     map[string]*expiryItem // 键到堆元素的索引
	mu        sync.Mutex
	wake      chan struct{} // 堆顶变化信号
	closeChan chan struct{} // 关闭信号
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// expiryItem 表示一个待回收项
type expiryItem struct {
	key      string
	expireAt time.Time
	index    int
}

// expiryHeap 实现堆接口，截止时间早的在堆顶
type expiryHeap []*expiryItem

func (h expiryHeap) Len() int {
	return len(h)
}

func (h expiryHeap) Less(i, j int) bool {
	return h[i].expireAt.Before(h[j].expireAt)
}

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	item := x.(*expiryItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // 避免内存泄漏
	item.index = -1 // 标记为已移除
	*h = old[:n-1]
	return item
}

// NewManager 创建回收调度器并启动后台协程
func NewManager(config Config) *Manager {
	if config.Now == nil {
		config.Now = time.Now
	}
	m := &Manager{
		config:    config,
		expiry:    &expiryHeap{},
		index:     make(map[string]*expiryItem),
		wake:      make(chan struct{}, 1),
		closeChan: make(chan struct{}),
	}
	heap.Init(m.expiry)

	m.wg.Add(1)
	go m.loop()
	return m
}

// Schedule 设置键的回收时间，已存在的截止时间会被替换
func (m *Manager) Schedule(key string, at time.Time) {
	m.mu.Lock()
	if item, ok := m.index[key]; ok {
		item.expireAt = at
		heap.Fix(m.expiry, item.index)
	} else {
		item := &expiryItem{key: key, expireAt: at}
		heap.Push(m.expiry, item)
		m.index[key] = item
	}
	m.mu.Unlock()
	m.signal()
}

// Cancel 取消键的回收，返回是否存在待回收项
func (m *Manager) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.index[key]
	if !ok {
		return false
	}
	heap.Remove(m.expiry, item.index)
	delete(m.index, key)
	return true
}

// Deadline 返回键的回收时间
func (m *Manager) Deadline(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.index[key]
	if !ok {
		return time.Time{}, false
	}
	return item.expireAt, true
}

// Len 返回待回收项数量
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiry.Len()
}

// Reset 清空所有待回收项
func (m *Manager) Reset() {
	m.mu.Lock()
	m.expiry = &expiryHeap{}
	m.index = make(map[string]*expiryItem)
	m.mu.Unlock()
	m.signal()
}

// Close 关闭调度器并等待后台协程退出
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closeChan)
	})
	m.wg.Wait()
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// loop 等待最早的截止时间并触发回调
func (m *Manager) loop() {
	defer m.wg.Done()

	timer := time.NewTimer(defaultIdleWait)
	defer timer.Stop()

	for {
		wait := m.nextWait()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
			m.fireExpired()
		case <-m.wake:
		case <-m.closeChan:
			return
		}
	}
}

func (m *Manager) nextWait() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expiry.Len() == 0 {
		return defaultIdleWait
	}
	wait := (*m.expiry)[0].expireAt.Sub(m.config.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

// fireExpired 弹出所有到期项，在锁外调用回调
func (m *Manager) fireExpired() {
	now := m.config.Now()
	var due []string

	m.mu.Lock()
	for m.expiry.Len() > 0 {
		item := (*m.expiry)[0]
		if item.expireAt.After(now) {
			break
		}
		heap.Pop(m.expiry)
		delete(m.index, item.key)
		due = append(due, item.key)
	}
	m.mu.Unlock()

	if m.config.OnExpired == nil {
		return
	}
	for _, key := range due {
		m.config.OnExpired(key)
	}
}
