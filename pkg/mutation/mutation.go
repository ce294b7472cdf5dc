// Package mutation runs write operations against the remote API and
// refreshes the cached reads they make stale.
package mutation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/internal/metrics"
	"github.com/Humphrey-He/hquery/internal/routine"
	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/logger"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

const tracerName = "github.com/Humphrey-He/hquery/pkg/mutation"

// Invalidator is the part of the query cache a mutation may touch.
// *cache.Client implements it.
//
// Invalidator 是变更可以操作的查询缓存部分，*cache.Client实现了该接口。
type Invalidator interface {
	Invalidate(prefixes ...querykey.Key) int
	RefreshAll() int
	SetData(key querykey.Key, data any)
}

// Status is the state of a mutation handle.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Descriptor describes one API side effect and the reads it affects.
//
// Descriptor 描述一个API副作用及其影响的读取。
type Descriptor[In, Out any] struct {
	// Name identifies the mutation in logs, traces and metrics.
	Name string

	// Do performs the side effect. It is never retried.
	Do func(ctx context.Context, in In) (Out, error)

	// Affected returns the prefixes to invalidate after a precise success.
	Affected func(in In, out Out) []querykey.Key

	// Strategy returns the strategy to apply; nil means Precise.
	Strategy func() Strategy

	// OnSuccess runs before invalidation, typically to SetData the
	// authoritative entity returned by the API.
	OnSuccess func(inv Invalidator, in In, out Out)
}

// State is a point-in-time view of a mutation handle.
type State[Out any] struct {
	Status Status
	Data   Out
	Err    error
}

// Option configures a Mutation.
type Option func(*settings)

type settings struct {
	log     logger.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		s.log = l
	}
}

// WithMetrics sets the collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// Mutation is a reusable handle running one Descriptor.
// Concurrent runs are allowed; State reflects the latest one.
//
// Mutation 是运行一个Descriptor的可复用句柄。允许并发执行，State反映最近一次调用。
type Mutation[In, Out any] struct {
	desc    Descriptor[In, Out]
	inv     Invalidator
	log     logger.Logger
	metrics *metrics.Metrics
	runner  routine.Runner
	tracer  trace.Tracer

	mu      sync.Mutex
	seq     uint64
	pending int
	state   State[Out]
}

// New creates a mutation handle.
//
// New 创建变更句柄。
//
// Parameters:
//   - inv: The cache to refresh after success
//   - desc: The mutation descriptor
//   - opts: Handle options
//
// Returns:
//   - *Mutation[In, Out]: A ready to use handle
func New[In, Out any](inv Invalidator, desc Descriptor[In, Out], opts ...Option) *Mutation[In, Out] {
	if desc.Do == nil {
		panic(fmt.Sprintf("mutation: %q has no Do", desc.Name))
	}
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	log := logger.OrNop(s.log)
	return &Mutation[In, Out]{
		desc:    desc,
		inv:     inv,
		log:     log,
		metrics: s.metrics,
		runner:  routine.New(log),
		tracer:  otel.Tracer(tracerName),
	}
}

// Name returns the descriptor name.
func (m *Mutation[In, Out]) Name() string {
	return m.desc.Name
}

// MutateAsync runs the mutation and waits for it. On success the cache is
// refreshed before MutateAsync returns.
//
// MutateAsync 执行变更并等待结果。成功时在返回前刷新缓存。
//
// Parameters:
//   - ctx: Bounds the API call
//   - in: Mutation input
//
// Returns:
//   - Out: The API result
//   - error: The API error; the cache is left untouched
func (m *Mutation[In, Out]) MutateAsync(ctx context.Context, in In) (Out, error) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.pending++
	m.state = State[Out]{Status: StatusPending}
	m.mu.Unlock()

	start := time.Now()
	out, err := m.run(ctx, in)
	m.metrics.RecordMutation(m.desc.Name, err, time.Since(start))

	if err == nil {
		m.applySuccess(in, out)
	} else {
		m.log.Warn("mutation failed",
			zap.String("mutation", m.desc.Name),
			zap.String("class", errors.ClassOf(err).String()),
			zap.Error(err),
		)
	}

	m.mu.Lock()
	m.pending--
	if seq == m.seq {
		if err != nil {
			m.state = State[Out]{Status: StatusError, Err: err}
		} else {
			m.state = State[Out]{Status: StatusSuccess, Data: out}
		}
	}
	m.mu.Unlock()
	return out, err
}

// Mutate runs the mutation in the background. The outcome is visible
// through State.
//
// Mutate 在后台执行变更，结果通过State查看。
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) {
	m.runner.GoNamed("mutation "+m.desc.Name, func() {
		_, _ = m.MutateAsync(ctx, in)
	})
}

// Wait blocks until every background Mutate call returned.
func (m *Mutation[In, Out]) Wait() {
	m.runner.Wait()
}

// IsPending reports whether a run is in progress.
func (m *Mutation[In, Out]) IsPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending > 0
}

// State returns the outcome of the latest run.
func (m *Mutation[In, Out]) State() State[Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the handle to idle. Runs still in progress keep their
// cache effects but no longer update State.
//
// Reset 将句柄恢复为空闲。进行中的调用仍会刷新缓存，但不再更新State。
func (m *Mutation[In, Out]) Reset() {
	m.mu.Lock()
	m.seq++
	m.state = State[Out]{}
	m.mu.Unlock()
}

func (m *Mutation[In, Out]) run(ctx context.Context, in In) (Out, error) {
	ctx, span := m.tracer.Start(ctx, "mutation.do",
		trace.WithAttributes(attribute.String("mutation.name", m.desc.Name)),
	)
	defer span.End()

	out, err := routine.Call(func() (Out, error) {
		return m.desc.Do(ctx, in)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (m *Mutation[In, Out]) applySuccess(in In, out Out) {
	if m.inv == nil {
		return
	}
	if m.desc.OnSuccess != nil {
		m.desc.OnSuccess(m.inv, in, out)
	}

	strategy := Precise
	if m.desc.Strategy != nil {
		strategy = m.desc.Strategy()
	}
	var marked int
	switch {
	case strategy == Blunt:
		marked = m.inv.RefreshAll()
	case m.desc.Affected != nil:
		prefixes := m.desc.Affected(in, out)
		if len(prefixes) > 0 {
			marked = m.inv.Invalidate(prefixes...)
		}
	}
	m.log.Debug("mutation succeeded",
		zap.String("mutation", m.desc.Name),
		zap.Stringer("strategy", strategy),
		zap.Int("invalidated", marked),
	)
}
