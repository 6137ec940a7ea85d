package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the routing engine.
type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	actionsTotal        *prometheus.CounterVec
	upstreamTotal       *prometheus.CounterVec
	upstreamDuration    *prometheus.HistogramVec
	compressionTotal    *prometheus.CounterVec
	recursionRejections prometheus.Counter
	assetServes         *prometheus.CounterVec
	configReloads       *prometheus.CounterVec
	buildInfo           *prometheus.GaugeVec
	registry            *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "edgerouter"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests handled by the engine",
		},
		[]string{"method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request handling duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "status"},
	)

	m.actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of route actions executed, by type and outcome",
		},
		[]string{"action", "outcome"},
	)

	m.upstreamTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of proxied upstream requests",
		},
		[]string{"upstream", "status"},
	)

	m.upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream request duration in seconds",
			Buckets: []float64{
				.005, .01, .025, .05, .1,
				.25, .5, 1, 2.5, 5, 10, 30,
			},
		},
		[]string{"upstream"},
	)

	m.compressionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compression_selected_total",
			Help:      "Total number of responses by selected content encoding",
		},
		[]string{"encoding"},
	)

	m.recursionRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recursion_rejections_total",
			Help:      "Total number of requests rejected by the recursion guard",
		},
	)

	m.assetServes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_serves_total",
			Help:      "Total number of asset serve attempts",
		},
		[]string{"result"},
	)

	m.configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Total number of configuration reload attempts",
		},
		[]string{"result"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.actionsTotal,
		m.upstreamTotal,
		m.upstreamDuration,
		m.compressionTotal,
		m.recursionRejections,
		m.assetServes,
		m.configReloads,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest records a handled request.
func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, code).Inc()
	m.requestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

// ObserveAction records an executed route action.
func (m *Metrics) ObserveAction(action, outcome string) {
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveUpstream records a proxied upstream request.
func (m *Metrics) ObserveUpstream(upstream string, status int, duration time.Duration) {
	m.upstreamTotal.WithLabelValues(upstream, strconv.Itoa(status)).Inc()
	m.upstreamDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

// ObserveCompression records a compression negotiation result.
func (m *Metrics) ObserveCompression(encoding string) {
	if encoding == "" {
		encoding = "identity"
	}
	m.compressionTotal.WithLabelValues(encoding).Inc()
}

// ObserveRecursionRejection records a recursion guard rejection.
func (m *Metrics) ObserveRecursionRejection() {
	m.recursionRejections.Inc()
}

// ObserveAssetServe records an asset serve attempt.
func (m *Metrics) ObserveAssetServe(result string) {
	m.assetServes.WithLabelValues(result).Inc()
}

// ObserveConfigReload records a configuration reload attempt.
func (m *Metrics) ObserveConfigReload(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.configReloads.WithLabelValues(result).Inc()
}

// SetBuildInfo sets the build information gauge.
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns an http.Handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
