package binx

import (
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// MetricsCollector defines the interface for collecting and reporting metrics
type MetricsCollector interface {
	// Counters
	IncrementCounter(name string, tags map[string]string)
	IncrementCounterBy(name string, value int64, tags map[string]string)

	// Gauges
	SetGauge(name string, value float64, tags map[string]string)

	// Histograms/Timing
	RecordTiming(name string, duration time.Duration, tags map[string]string)
	RecordValue(name string, value float64, tags map[string]string)

	// Flush any buffered metrics
	Flush() error
}

// ObservabilityHook is notified once per frame written by Writer.Write or read by Reader.Read.
type ObservabilityHook interface {
	OnFrameEncoded(size int, duration time.Duration, err error)
	OnFrameDecoded(size int, duration time.Duration, err error)
}

// NoOpMetricsCollector is a no-op implementation of MetricsCollector
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) IncrementCounter(name string, tags map[string]string)                 {}
func (n *NoOpMetricsCollector) IncrementCounterBy(name string, value int64, tags map[string]string) {}
func (n *NoOpMetricsCollector) SetGauge(name string, value float64, tags map[string]string)         {}
func (n *NoOpMetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
}
func (n *NoOpMetricsCollector) RecordValue(name string, value float64, tags map[string]string) {}
func (n *NoOpMetricsCollector) Flush() error                                                   { return nil }

// NoOpObservabilityHook is a no-op implementation of ObservabilityHook
type NoOpObservabilityHook struct{}

func (n *NoOpObservabilityHook) OnFrameEncoded(size int, duration time.Duration, err error) {}
func (n *NoOpObservabilityHook) OnFrameDecoded(size int, duration time.Duration, err error) {}

// InMemoryMetricsCollector is a simple in-memory implementation for testing and development
type InMemoryMetricsCollector struct {
	mu       sync.Mutex
	counters map[string]*int64
	gauges   map[string]float64
	timings  []TimingMetric
	values   []ValueMetric
}

type TimingMetric struct {
	Name     string
	Duration time.Duration
	Tags     map[string]string
	Time     time.Time
}

type ValueMetric struct {
	Name  string
	Value float64
	Tags  map[string]string
	Time  time.Time
}

// NewInMemoryMetricsCollector creates a new in-memory metrics collector
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		counters: make(map[string]*int64),
		gauges:   make(map[string]float64),
	}
}

func (m *InMemoryMetricsCollector) IncrementCounter(name string, tags map[string]string) {
	m.IncrementCounterBy(name, 1, tags)
}

func (m *InMemoryMetricsCollector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	key := buildMetricKey(name, tags)
	m.mu.Lock()
	counter, exists := m.counters[key]
	if !exists {
		counter = new(int64)
		m.counters[key] = counter
	}
	m.mu.Unlock()
	atomic.AddInt64(counter, value)
}

func (m *InMemoryMetricsCollector) SetGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[buildMetricKey(name, tags)] = value
}

func (m *InMemoryMetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings = append(m.timings, TimingMetric{
		Name:     name,
		Duration: duration,
		Tags:     copyTags(tags),
		Time:     time.Now(),
	})
}

func (m *InMemoryMetricsCollector) RecordValue(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, ValueMetric{
		Name:  name,
		Value: value,
		Tags:  copyTags(tags),
		Time:  time.Now(),
	})
}

func (m *InMemoryMetricsCollector) Flush() error {
	return nil
}

// GetCounterValue returns the current value of a counter
func (m *InMemoryMetricsCollector) GetCounterValue(name string, tags map[string]string) int64 {
	m.mu.Lock()
	counter, exists := m.counters[buildMetricKey(name, tags)]
	m.mu.Unlock()
	if !exists {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// GetGaugeValue returns the current value of a gauge
func (m *InMemoryMetricsCollector) GetGaugeValue(name string, tags map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[buildMetricKey(name, tags)]
}

// GetTimings returns all recorded timing metrics
func (m *InMemoryMetricsCollector) GetTimings() []TimingMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TimingMetric(nil), m.timings...)
}

// GetValues returns all recorded value metrics
func (m *InMemoryMetricsCollector) GetValues() []ValueMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ValueMetric(nil), m.values...)
}

func buildMetricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := lo.Keys(tags)
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += "," + k + ":" + tags[k]
	}
	return key
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	return maps.Clone(tags)
}

// Metric names emitted by StandardObservabilityHook.
const (
	MetricFrames        = "binx.frames"
	MetricFrameErrors   = "binx.frame.errors"
	MetricFrameBytes    = "binx.frame.bytes"
	MetricFrameDuration = "binx.frame.duration"
	MetricLastFrameSize = "binx.frame.last_bytes"
)

// StandardObservabilityHook turns frame events into metrics.
type StandardObservabilityHook struct {
	metrics MetricsCollector
}

// NewStandardObservabilityHook creates a new standard observability hook
func NewStandardObservabilityHook(metrics MetricsCollector) *StandardObservabilityHook {
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	return &StandardObservabilityHook{metrics: metrics}
}

func (h *StandardObservabilityHook) OnFrameEncoded(size int, duration time.Duration, err error) {
	h.record("encode", size, duration, err)
}

func (h *StandardObservabilityHook) OnFrameDecoded(size int, duration time.Duration, err error) {
	h.record("decode", size, duration, err)
}

func (h *StandardObservabilityHook) record(direction string, size int, duration time.Duration, err error) {
	tags := map[string]string{"direction": direction, "status": "success"}
	if err != nil {
		tags["status"] = "error"
		h.metrics.IncrementCounter(MetricFrameErrors, map[string]string{
			"direction":  direction,
			"error_type": errorType(err),
		})
	} else {
		sizeTags := map[string]string{"direction": direction}
		h.metrics.RecordValue(MetricFrameBytes, float64(size), sizeTags)
		h.metrics.SetGauge(MetricLastFrameSize, float64(size), sizeTags)
	}
	h.metrics.IncrementCounter(MetricFrames, tags)
	h.metrics.RecordTiming(MetricFrameDuration, duration, tags)
}

// Flush flushes the underlying collector.
func (h *StandardObservabilityHook) Flush() error {
	return h.metrics.Flush()
}

func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsParseError(err):
		return "parse"
	case IsProgrammingError(err):
		return "programming"
	case IsResourceError(err):
		return "resource"
	}
	return "general_error"
}
