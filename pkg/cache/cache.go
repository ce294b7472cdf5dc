// Package cache provides the query cache: a process-wide keyed store of
// remote reads with per-query freshness rules, single-flight fetching,
// push-based subscriptions and prefix invalidation.
//
// Package cache 提供查询缓存：一个进程级的远程读取键值存储，
// 支持按查询配置的新鲜度规则、单飞请求、推送式订阅以及前缀失效。
package cache

import (
	"context"
	"time"

	"github.com/Humphrey-He/hquery/pkg/codec"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// QueryCache defines the interface of the query cache.
// All methods are thread-safe and can be called concurrently.
//
// QueryCache 定义查询缓存的接口。
// 所有方法都是线程安全的，可以并发调用。
type QueryCache interface {
	// Subscribe registers a consumer's interest in key.
	// The entry is created lazily and fetched when it has no data, or when
	// it is stale and the query refetches on mount.
	//
	// Subscribe 注册消费者对key的关注。
	// 条目按需创建；当条目没有数据，或条目已过期且配置了挂载时重新获取，则发起请求。
	//
	// Parameters:
	//   - key: The query key to observe
	//   - opts: Per-call configuration layered over profiles and defaults
	//
	// Returns:
	//   - *Subscription: A live view of the entry
	//   - error: Error if the client is closed or the configuration is invalid
	Subscribe(key querykey.Key, opts ...Option) (*Subscription, error)

	// Fetch runs the de-duplicated fetch for key and waits for its result.
	// Cancelling ctx only stops the wait; the shared fetch still populates the cache.
	//
	// Fetch 执行去重后的请求并等待结果。
	// 取消ctx只会停止等待，共享请求仍会填充缓存。
	Fetch(ctx context.Context, key querykey.Key, opts ...Option) (any, error)

	// Get returns fresh cached data, fetching only when the entry is absent or stale.
	//
	// Get 返回新鲜的缓存数据，仅在条目不存在或已过期时发起请求。
	Get(ctx context.Context, key querykey.Key, opts ...Option) (any, error)

	// Invalidate marks every entry under the prefixes stale and immediately
	// refetches the observed ones. It returns the number of entries marked.
	//
	// Invalidate 将前缀下的所有条目标记为过期，并立即重新获取被观察的条目。
	Invalidate(prefixes ...querykey.Key) int

	// SetData overwrites an entry's data and clears staleness without a network call.
	//
	// SetData 直接覆盖条目数据并清除过期标记，不发起网络请求。
	SetData(key querykey.Key, data any)

	// RefreshAll invalidates every entry and refetches every observed one.
	//
	// RefreshAll 使所有条目失效，并重新获取所有被观察的条目。
	RefreshAll() int

	// Clear drops all entries and in-flight state.
	//
	// Clear 丢弃所有条目和进行中的请求状态。
	Clear()

	// Close releases background resources. The client must not be used afterwards.
	//
	// Close 释放后台资源，之后不应再使用客户端。
	Close() error
}

// Status is the fetch state of an entry.
//
// Status 是条目的请求状态。
type Status int

const (
	// StatusIdle means the entry was never fetched.
	StatusIdle Status = iota
	// StatusFetching means a fetch is in flight.
	StatusFetching
	// StatusSuccess means the last fetch succeeded.
	StatusSuccess
	// StatusError means the last fetch failed.
	StatusError
)

var statusNames = [...]string{"idle", "fetching", "success", "error"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the consumer-facing state of one entry at one point in time.
//
// Snapshot 是某一时刻单个条目面向消费者的状态。
type Snapshot struct {
	Key         querykey.Key `json:"key"`
	Data        any          `json:"data,omitempty"`
	HasData     bool         `json:"has_data"`
	Status      Status       `json:"status"`
	Err         error        `json:"-"`
	UpdatedAt   time.Time    `json:"updated_at"`
	IsStale     bool         `json:"is_stale"`
	IsLoading   bool         `json:"is_loading"`
	IsFetching  bool         `json:"is_fetching"`
	Subscribers int          `json:"subscribers"`
}

// Error returns the error message of the snapshot, or an empty string.
func (s Snapshot) Error() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// DataAs returns the snapshot data as T.
// Loosely typed data, such as a map written through SetData from decoded
// JSON, is converted through the JSON codec when its shape fits T.
//
// DataAs 以T类型返回快照数据。松散类型的数据（如由JSON解码后通过SetData写入的map）
// 在结构匹配时通过JSON编解码器转换。
//
// Returns:
//   - T: The typed data
//   - bool: False if there is no data or it cannot be read as a T
func DataAs[T any](s Snapshot) (T, bool) {
	var zero T
	if !s.HasData {
		return zero, false
	}
	v, err := codec.Convert[T](codec.DefaultCodec(), s.Data)
	if err != nil {
		return zero, false
	}
	return v, true
}
