// Package metrics collects runtime metrics of the query cache and the
// mutation layer and exposes them as Prometheus collectors.
//
// Package metrics 采集查询缓存与变更层的运行时指标，并以Prometheus收集器的形式导出。
//
// All recording methods are safe on a nil *Metrics, so components can be
// built without metrics in tests.
//
// 所有记录方法在*Metrics为nil时都是安全的，因此测试中可以不启用指标。
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Level defines the metrics collection level.
// Level 定义指标采集级别。
type Level int

const (
	// Disabled means metrics collection is turned off.
	// Disabled 表示禁用指标采集。
	Disabled Level = iota

	// Basic enables counters and gauges.
	// Basic 启用计数器和仪表。
	Basic

	// Detailed additionally records fetch and mutation latency histograms.
	// Detailed 额外记录请求与变更的延迟直方图。
	Detailed
)

// ParseLevel converts a configuration string into a Level.
// Unknown values map to Basic.
func ParseLevel(s string) Level {
	switch s {
	case "disabled", "off", "none":
		return Disabled
	case "detailed", "full":
		return Detailed
	}
	return Basic
}

// Fetch outcomes used as label values.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
	OutcomeCleared    = "cleared"
)

// Metrics is the collector set of one query client.
// Each instance owns its own registry so several clients can coexist in one process.
//
// Metrics 是单个查询客户端的收集器集合。每个实例拥有独立的注册表。
type Metrics struct {
	level    Level
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	dedups        prometheus.Counter
	retries       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	evictions     prometheus.Counter
	entries       prometheus.Gauge
	subscribers   prometheus.Gauge
	mutations     *prometheus.CounterVec
	mutationTime  *prometheus.HistogramVec

	// 快照计数器，供检查接口读取
	fetchCount      atomic.Uint64
	fetchErrors     atomic.Uint64
	dedupCount      atomic.Uint64
	invalidateCount atomic.Uint64
	evictionCount   atomic.Uint64
	mutationCount   atomic.Uint64
	mutationErrors  atomic.Uint64
}

// New creates a metrics collector registered on a fresh registry.
//
// New 创建注册在新注册表上的指标收集器。
//
// Parameters:
//   - namespace: Prometheus namespace, e.g. "hquery"
//   - level: The collection level
//
// Returns:
//   - *Metrics: The collector, nil when level is Disabled
func New(namespace string, level Level) *Metrics {
	if level == Disabled {
		return nil
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		level:    level,
		registry: registry,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Completed query fetches by outcome",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Query fetch duration including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		dedups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_dedup_total",
			Help:      "Fetch requests joined to an in-flight fetch",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch retries by error class",
		}, []string{"class"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_entries_total",
			Help:      "Entries marked stale, by whether they were refetched immediately",
		}, []string{"refetch"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Entries removed by garbage collection",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Live cache entries",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Active subscriptions across all entries",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Completed mutations by name and outcome",
		}, []string{"mutation", "outcome"}),
		mutationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Mutation duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mutation"}),
	}

	registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.dedups,
		m.retries,
		m.invalidations,
		m.evictions,
		m.entries,
		m.subscribers,
		m.mutations,
		m.mutationTime,
	)
	return m
}

// Registry returns the Prometheus registry of this collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus text format.
// A nil collector serves an empty registry.
//
// Handler 返回以Prometheus文本格式输出注册表的HTTP处理器。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFetch records a finished fetch.
func (m *Metrics) RecordFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchCount.Add(1)
	if outcome == OutcomeError {
		m.fetchErrors.Add(1)
	}
	if m.level >= Detailed {
		m.fetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// RecordDedup records a caller joining an in-flight fetch.
func (m *Metrics) RecordDedup() {
	if m == nil {
		return
	}
	m.dedups.Inc()
	m.dedupCount.Add(1)
}

// RecordRetry records one retry for an error class.
func (m *Metrics) RecordRetry(class string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(class).Inc()
}

// RecordInvalidation records entries marked stale.
func (m *Metrics) RecordInvalidation(refetched, deferred int) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues("immediate").Add(float64(refetched))
	m.invalidations.WithLabelValues("deferred").Add(float64(deferred))
	m.invalidateCount.Add(uint64(refetched + deferred))
}

// RecordEviction records one garbage-collected entry.
func (m *Metrics) RecordEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
	m.evictionCount.Add(1)
}

// SetEntries updates the live entry gauge.
func (m *Metrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

// AddSubscribers moves the subscriber gauge by delta.
func (m *Metrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}

// RecordMutation records a finished mutation.
func (m *Metrics) RecordMutation(name string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
		m.mutationErrors.Add(1)
	}
	m.mutationCount.Add(1)
	m.mutations.WithLabelValues(name, outcome).Inc()
	if m.level >= Detailed {
		m.mutationTime.WithLabelValues(name).Observe(d.Seconds())
	}
}

// Snapshot is a point-in-time copy of the headline counters.
//
// Snapshot 是主要计数器的时间点副本。
type Snapshot struct {
	Fetches        uint64 `json:"fetches"`
	FetchErrors    uint64 `json:"fetch_errors"`
	Dedups         uint64 `json:"dedups"`
	Invalidations  uint64 `json:"invalidations"`
	Evictions      uint64 `json:"evictions"`
	Mutations      uint64 `json:"mutations"`
	MutationErrors uint64 `json:"mutation_errors"`
}

// GetSnapshot returns the current counters. A nil collector returns zeros.
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Fetches:        m.fetchCount.Load(),
		FetchErrors:    m.fetchErrors.Load(),
		Dedups:         m.dedupCount.Load(),
		Invalidations:  m.invalidateCount.Load(),
		Evictions:      m.evictionCount.Load(),
		Mutations:      m.mutationCount.Load(),
		MutationErrors: m.mutationErrors.Load(),
	}
}
