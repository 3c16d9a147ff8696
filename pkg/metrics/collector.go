// Package metrics exposes Prometheus metrics for frame analysis batches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "frame_analyzer"

// Frame outcomes
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Collector records batch and per-frame metrics on its own registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	framesTotal    *prometheus.CounterVec
	detectDuration prometheus.Histogram
	detectInFlight prometheus.Gauge
	batchesTotal   *prometheus.CounterVec
}

// NewCollector creates a collector on a fresh registry
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		framesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Total number of analyzed frames by outcome",
			},
			[]string{"outcome"},
		),
		detectDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detect_duration_seconds",
				Help:      "Detector call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		detectInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "detect_in_flight",
				Help:      "Number of detector calls currently running",
			},
		),
		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of batches by result",
			},
			[]string{"result"},
		),
	}
}

// Registry returns the registry the metrics live on
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// DetectStarted marks a detector call as in flight and returns the func that ends it
func (c *Collector) DetectStarted() func() {
	if c == nil {
		return func() {}
	}
	start := time.Now()
	c.detectInFlight.Inc()
	return func() {
		c.detectInFlight.Dec()
		c.detectDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordFrame counts one analyzed frame
func (c *Collector) RecordFrame(ok bool) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeFailed
	}
	c.framesTotal.WithLabelValues(outcome).Inc()
}

// RecordBatch counts one finished batch; result is "ok" or the fatal kind
func (c *Collector) RecordBatch(result string) {
	if c == nil {
		return
	}
	c.batchesTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// WriteTextfile writes the registry for the node exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
