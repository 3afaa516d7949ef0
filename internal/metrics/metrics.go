// Package metrics holds the Prometheus collectors of the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orcamento/internal/core"
)

const namespace = "orcamento"

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	summaryDuration prometheus.Histogram
	summaryFailures *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	publishFailures prometheus.Counter
	consumed        *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		summaryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "summary_duration_seconds",
			Help:      "Time spent assembling a monthly budget summary.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		summaryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "summary_failures_total",
			Help:      "Summary assemblies aborted, by failing stage.",
		}, []string{"stage"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "summary_lookups_total",
			Help:      "Summary cache lookups by result.",
		}, []string{"result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "mutations_total",
			Help:      "Applied budget mutations by kind.",
		}, []string{"kind"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amqp",
			Name:      "publish_failures_total",
			Help:      "Budget change events that could not be published.",
		}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amqp",
			Name:      "consumed_total",
			Help:      "Budget change events handled by the worker, by kind and result.",
		}, []string{"kind", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.summaryDuration,
		m.summaryFailures,
		m.cacheLookups,
		m.mutations,
		m.publishFailures,
		m.consumed,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveSummary records one assembly. Failures are counted by stage; input
// validation failures are not counted.
func (m *Metrics) ObserveSummary(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.summaryDuration.Observe(d.Seconds())
	var ae *core.AssemblyError
	if errors.As(err, &ae) {
		m.summaryFailures.WithLabelValues(ae.Stage).Inc()
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Mutation(kind string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) Consumed(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.consumed.WithLabelValues(kind, result).Inc()
}
