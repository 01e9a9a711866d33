// Package metrics owns the Prometheus registry for the service.
//
// Exposed series:
//
//	http_requests_total{method,route,status}
//	http_request_duration_seconds{method,route}
//	snippet_highlight_duration_seconds{language,outcome}
//
// route is the chi route pattern ("/snippets/{id}"), never the raw path, so
// label cardinality stays bounded by the number of routes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/snippets/internal/highlight"
)

// Metrics holds the collectors. Create one per process with New.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	highlight *prometheus.HistogramVec
}

// New creates a registry with the HTTP and highlight collectors plus the
// standard Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests handled, by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		highlight: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snippet_highlight_duration_seconds",
			Help:    "Time spent rendering snippets to highlighted HTML.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"language", "outcome"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.highlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Highlighter wraps next so every render is timed.
func (m *Metrics) Highlighter(next highlight.Highlighter) highlight.Highlighter {
	return &timedHighlighter{next: next, hist: m.highlight}
}

type timedHighlighter struct {
	next highlight.Highlighter
	hist *prometheus.HistogramVec
}

func (t *timedHighlighter) Highlight(code, language, style string, opts highlight.Options) (string, error) {
	start := time.Now()
	out, err := t.next.Highlight(code, language, style, opts)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.hist.WithLabelValues(language, outcome).Observe(time.Since(start).Seconds())

	return out, err
}
