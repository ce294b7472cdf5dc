package mutation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Rule is one row of an invalidation graph: the mutation kind, its
// default strategy, and the read prefixes it affects for a target.
//
// Rule 是失效图中的一行：变更类型、默认策略，以及针对目标影响到的读取前缀。
type Rule[T any] struct {
	Kind     string
	Strategy Strategy
	Prefixes func(target T) []querykey.Key
}

// Graph is a static table mapping mutation kinds to the cached reads they
// make stale. Strategies can be overridden at runtime; the prefixes cannot.
//
// Graph 是一张静态表，将变更类型映射到它们使其过期的缓存读取。
// 策略可以在运行时覆盖，前缀不可以。
type Graph[T any] struct {
	rules map[string]Rule[T]

	mu        sync.RWMutex
	overrides map[string]Strategy
}

// NewGraph creates a graph from rules. It panics on duplicate kinds or
// rules without prefixes, which are programming errors.
//
// NewGraph 使用rules创建失效图。类型重复或缺少前缀函数时panic。
func NewGraph[T any](rules ...Rule[T]) *Graph[T] {
	g := &Graph[T]{
		rules:     make(map[string]Rule[T], len(rules)),
		overrides: make(map[string]Strategy),
	}
	for _, r := range rules {
		if _, dup := g.rules[r.Kind]; dup {
			panic(fmt.Sprintf("mutation: duplicate rule %q", r.Kind))
		}
		if r.Prefixes == nil {
			panic(fmt.Sprintf("mutation: rule %q has no prefixes", r.Kind))
		}
		g.rules[r.Kind] = r
	}
	return g
}

// Affected returns the de-duplicated prefixes kind invalidates for target.
//
// Affected 返回kind针对target需要失效的去重前缀。
//
// Parameters:
//   - kind: Mutation kind
//   - target: The mutated entity identifiers
//
// Returns:
//   - []querykey.Key: Prefixes in rule order
//   - error: Error if kind has no rule
func (g *Graph[T]) Affected(kind string, target T) ([]querykey.Key, error) {
	r, ok := g.rules[kind]
	if !ok {
		return nil, fmt.Errorf("mutation: no rule for %q", kind)
	}
	prefixes := r.Prefixes(target)
	seen := make(map[string]struct{}, len(prefixes))
	out := prefixes[:0:0]
	for _, p := range prefixes {
		id := p.String()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Strategy returns the effective strategy of kind.
func (g *Graph[T]) Strategy(kind string) Strategy {
	g.mu.RLock()
	s, ok := g.overrides[kind]
	g.mu.RUnlock()
	if ok {
		return s
	}
	return g.rules[kind].Strategy
}

// StrategyOf returns a function reading the current strategy of kind,
// for use as Descriptor.Strategy.
func (g *Graph[T]) StrategyOf(kind string) func() Strategy {
	return func() Strategy { return g.Strategy(kind) }
}

// Override replaces the strategy of kind until ResetOverrides.
//
// Override 覆盖kind的策略，直到调用ResetOverrides。
func (g *Graph[T]) Override(kind string, s Strategy) error {
	if _, ok := g.rules[kind]; !ok {
		return fmt.Errorf("mutation: no rule for %q", kind)
	}
	g.mu.Lock()
	g.overrides[kind] = s
	g.mu.Unlock()
	return nil
}

// ResetOverrides restores every default strategy.
func (g *Graph[T]) ResetOverrides() {
	g.mu.Lock()
	g.overrides = make(map[string]Strategy)
	g.mu.Unlock()
}

// Kinds returns every mutation kind in sorted order.
func (g *Graph[T]) Kinds() []string {
	kinds := make([]string, 0, len(g.rules))
	for k := range g.rules {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
