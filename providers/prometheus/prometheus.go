// Package prommetrics exports binx metrics through Prometheus.
//
// Collector implements binx.MetricsCollector. Each metric name becomes a vector whose
// labels are the tag keys of its first observation; later observations with another
// label set are dropped and logged.
package prommetrics

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/hengadev/binx"
)

// Config holds configuration for the Prometheus collector.
type Config struct {
	// Namespace prefixes every metric name. Default: binx.DefaultMetricsNamespace
	Namespace string

	// Registerer receives the vectors. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// ValueBuckets are used for RecordValue histograms. Defaults to powers of four from 16.
	ValueBuckets []float64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Collector is a binx.MetricsCollector backed by counter, gauge and histogram vectors.
type Collector struct {
	mu         sync.Mutex
	namespace  string
	registerer prometheus.Registerer
	buckets    []float64
	logger     *slog.Logger

	counters   map[string]*family[*prometheus.CounterVec]
	gauges     map[string]*family[*prometheus.GaugeVec]
	histograms map[string]*family[*prometheus.HistogramVec]
}

var _ binx.MetricsCollector = (*Collector)(nil)

type family[V any] struct {
	vec    V
	labels []string
}

// New creates a collector. Vectors are registered lazily on first use.
func New(cfg Config) *Collector {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = binx.DefaultMetricsNamespace
	}
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	buckets := cfg.ValueBuckets
	if len(buckets) == 0 {
		buckets = prometheus.ExponentialBuckets(16, 4, 10)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		namespace:  sanitize(namespace),
		registerer: registerer,
		buckets:    buckets,
		logger:     logger.With("provider", "prometheus"),
		counters:   make(map[string]*family[*prometheus.CounterVec]),
		gauges:     make(map[string]*family[*prometheus.GaugeVec]),
		histograms: make(map[string]*family[*prometheus.HistogramVec]),
	}
}

// MetricName returns the fully qualified Prometheus name for a binx metric name and suffix.
func (c *Collector) MetricName(name, suffix string) string {
	base := sanitize(name)
	if c.namespace != "" && base != c.namespace && !strings.HasPrefix(base, c.namespace+"_") {
		base = c.namespace + "_" + base
	}
	if suffix != "" && !strings.HasSuffix(base, "_"+suffix) {
		base += "_" + suffix
	}
	return base
}

func (c *Collector) IncrementCounter(name string, tags map[string]string) {
	c.IncrementCounterBy(name, 1, tags)
}

func (c *Collector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	if value < 0 {
		c.logger.Warn("negative counter increment dropped", "metric", name, "value", value)
		return
	}
	labels := labelNames(tags)
	c.mu.Lock()
	f, err := lookup(c, c.counters, name, labels, func(fq string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fq,
			Help: "binx counter " + name + ".",
		}, labels)
	}, "total")
	c.mu.Unlock()
	if err != nil {
		c.drop(name, err)
		return
	}
	f.vec.WithLabelValues(labelValues(f.labels, tags)...).Add(float64(value))
}

func (c *Collector) SetGauge(name string, value float64, tags map[string]string) {
	labels := labelNames(tags)
	c.mu.Lock()
	f, err := lookup(c, c.gauges, name, labels, func(fq string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: fq,
			Help: "binx gauge " + name + ".",
		}, labels)
	}, "")
	c.mu.Unlock()
	if err != nil {
		c.drop(name, err)
		return
	}
	f.vec.WithLabelValues(labelValues(f.labels, tags)...).Set(value)
}

func (c *Collector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	c.observe(name, "seconds", prometheus.DefBuckets, duration.Seconds(), tags)
}

func (c *Collector) RecordValue(name string, value float64, tags map[string]string) {
	c.observe(name, "", c.buckets, value, tags)
}

// Flush is a no-op; Prometheus pulls.
func (c *Collector) Flush() error {
	return nil
}

func (c *Collector) observe(name, suffix string, buckets []float64, value float64, tags map[string]string) {
	labels := labelNames(tags)
	c.mu.Lock()
	f, err := lookup(c, c.histograms, name, labels, func(fq string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fq,
			Help:    "binx histogram " + name + ".",
			Buckets: buckets,
		}, labels)
	}, suffix)
	c.mu.Unlock()
	if err != nil {
		c.drop(name, err)
		return
	}
	f.vec.WithLabelValues(labelValues(f.labels, tags)...).Observe(value)
}

func (c *Collector) drop(name string, err error) {
	c.logger.Warn("metric observation dropped", "metric", name, "error", err)
}

// lookup returns the family for name, creating and registering it on first use.
// Must be called with c.mu held.
func lookup[V prometheus.Collector](c *Collector, families map[string]*family[V], name string, labels []string, build func(string) V, suffix string) (*family[V], error) {
	if f, ok := families[name]; ok {
		if !slices.Equal(f.labels, labels) {
			return nil, fmt.Errorf("label set %v does not match %v", labels, f.labels)
		}
		return f, nil
	}
	vec := build(c.MetricName(name, suffix))
	if err := c.registerer.Register(vec); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(V)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	f := &family[V]{vec: vec, labels: labels}
	families[name] = f
	return f, nil
}

func labelNames(tags map[string]string) []string {
	names := lo.Map(lo.Keys(tags), func(k string, _ int) string { return sanitize(k) })
	sort.Strings(names)
	return names
}

func labelValues(labels []string, tags map[string]string) []string {
	byLabel := lo.MapKeys(tags, func(_ string, k string) string { return sanitize(k) })
	return lo.Map(labels, func(l string, _ int) string { return byLabel[l] })
}

// sanitize maps a binx metric or tag name to the Prometheus name alphabet.
func sanitize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
