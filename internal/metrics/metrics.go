package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "salesdash"

// Metrics owns a private registry so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	Transforms       prometheus.Counter
	TransformSeconds prometheus.Histogram
	SelectionSize    prometheus.Histogram
	DatasetRows      prometheus.Gauge
	DatasetLoadSecs  prometheus.Gauge
	Requests         *prometheus.CounterVec
	WSConnections    prometheus.Gauge
}

// New registers the collectors. cacheStats may be nil.
func New(cacheStats func() (hits, misses uint64)) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Transforms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transforms_total",
			Help:      "Filter-and-aggregate transforms computed (cache misses).",
		}),
		TransformSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Time spent in the filter-and-aggregate transform.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		SelectionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "selection_size",
			Help:      "Number of entities in requested selections.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows in the loaded dataset; 0 while loading.",
		}),
		DatasetLoadSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_load_seconds",
			Help:      "Wall time of the startup dataset load.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Transforms, m.TransformSeconds, m.SelectionSize,
		m.DatasetRows, m.DatasetLoadSecs, m.Requests, m.WSConnections,
	)

	if cacheStats != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Dashboard result cache hits.",
			}, func() float64 { h, _ := cacheStats(); return float64(h) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Dashboard result cache misses.",
			}, func() float64 { _, m := cacheStats(); return float64(m) }),
		)
	}
	return m
}

// ObserveTransform records one computed transform.
func (m *Metrics) ObserveTransform(selectionSize int, d time.Duration) {
	m.Transforms.Inc()
	m.SelectionSize.Observe(float64(selectionSize))
	m.TransformSeconds.Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(route, method string, code int) {
	m.Requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
