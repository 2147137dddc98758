package prometheus

import (
	"fmt"
	"net/http"
	"time"

	"github.com/petermyo/DecentralizeFileShare/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
	defaultPort       = 9090
)

// Metrics groups the collectors exported by the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	resolutions     *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	proxiedBytes    prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

// NewMetrics registers the service collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_resolutions_total",
			Help: "Short-link resolution decisions by record kind and outcome.",
		}, []string{"kind", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_refresh_total",
			Help: "Delegated credential refresh attempts by result.",
		}, []string{"result"}),
		proxiedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_bytes_total",
			Help: "Bytes streamed from the storage provider to requesters.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "access_events_published_total",
			Help: "Access events handed to JetStream by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.resolutions,
		m.refreshes,
		m.proxiedBytes,
		m.eventsPublished,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveResolution(kind, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) AddProxiedBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.proxiedBytes.Add(float64(n))
}

// ProxiedBytes exposes the byte counter, mainly for tests.
func (m *Metrics) ProxiedBytes() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.proxiedBytes
}

func (m *Metrics) ObservePublish(result string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}

// NewServer builds a basic HTTP server that exposes /metrics for Prometheus scraping.
func NewServer(cfg config.PrometheusConfig, metrics *Metrics) *http.Server {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	handler := promhttp.Handler()
	if reg := metrics.Registry(); reg != nil {
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
}
