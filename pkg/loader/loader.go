// Package loader binds fetch functions to query key patterns.
// The query cache asks the registry for the loader of a key whenever an
// entry has to be (re)fetched from the remote API.
//
// Package loader 将获取函数绑定到查询键模式。
// 每当条目需要从远程API（重新）获取时，查询缓存都会向注册表查询该键的加载器。
package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Loader is the interface that wraps the basic Load method.
//
// Load retrieves the value identified by key from the data source.
// Implementations must honour ctx cancellation so superseded fetches
// release their network call.
//
// Loader 是包装基本Load方法的接口。
// Load 从数据源检索key标识的值。实现必须遵守ctx取消，以便被取代的请求释放其网络调用。
type Loader interface {
	Load(ctx context.Context, key querykey.Key) (any, error)
}

// LoaderFunc is a function type that implements the Loader interface.
//
// LoaderFunc 是实现Loader接口的函数类型。
type LoaderFunc func(ctx context.Context, key querykey.Key) (any, error)

// Load calls the function itself.
//
// Load 调用函数本身。
func (f LoaderFunc) Load(ctx context.Context, key querykey.Key) (any, error) {
	return f(ctx, key)
}

// Typed adapts a strongly typed fetch function into a Loader.
//
// Typed 将强类型的获取函数适配为Loader。
//
// Parameters:
//   - fn: The typed fetch function
//
// Returns:
//   - Loader: A loader returning T values boxed as any
func Typed[T any](fn func(ctx context.Context, key querykey.Key) (T, error)) Loader {
	return LoaderFunc(func(ctx context.Context, key querykey.Key) (any, error) {
		v, err := fn(ctx, key)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Registry maps key prefixes to loaders. The most specific registered
// prefix wins.
//
// Registry 将键前缀映射到加载器，最具体的已注册前缀优先。
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

type registration struct {
	prefix querykey.Key
	loader Loader
}

// NewRegistry creates an empty registry.
//
// NewRegistry 创建一个空注册表。
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds l to every key under prefix. Registering the same prefix
// twice replaces the earlier loader.
//
// Register 将l绑定到prefix下的所有键。重复注册相同前缀会替换之前的加载器。
//
// Parameters:
//   - prefix: The key pattern
//   - l: The loader serving the pattern
func (r *Registry) Register(prefix querykey.Key, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := prefix.String()
	for i := range r.entries {
		if r.entries[i].prefix.String() == id {
			r.entries[i].loader = l
			return
		}
	}
	r.entries = append(r.entries, registration{prefix: prefix, loader: l})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return specificity(r.entries[i].prefix) > specificity(r.entries[j].prefix)
	})
}

// RegisterFunc is shorthand for Register(prefix, LoaderFunc(fn)).
func (r *Registry) RegisterFunc(prefix querykey.Key, fn func(ctx context.Context, key querykey.Key) (any, error)) {
	r.Register(prefix, LoaderFunc(fn))
}

// Lookup returns the loader bound to the most specific prefix of key.
//
// Lookup 返回绑定到key最具体前缀的加载器。
//
// Parameters:
//   - key: The key to resolve
//
// Returns:
//   - Loader: The resolved loader
//   - bool: False if no registered prefix matches
func (r *Registry) Lookup(key querykey.Key) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if querykey.HasPrefix(key, e.prefix) {
			return e.loader, true
		}
	}
	return nil, false
}

// Load resolves the loader for key and runs it, so a Registry is itself a Loader.
//
// Load 解析key的加载器并执行，因此Registry本身也是一个Loader。
func (r *Registry) Load(ctx context.Context, key querykey.Key) (any, error) {
	l, ok := r.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("loader: no loader for %s", key)
	}
	return l.Load(ctx, key)
}

// Prefixes lists the registered prefixes, most specific first.
func (r *Registry) Prefixes() []querykey.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]querykey.Key, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.prefix
	}
	return out
}

func specificity(k querykey.Key) int {
	n := len(k.Segments) * 2
	if len(k.Params) > 0 {
		n++
	}
	return n
}
