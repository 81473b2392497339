// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Parses counts instance and solution parses by kind and outcome
	Parses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pdptw_parses_total", Help: "Instance and solution parses by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// ParseDuration tracks parse latency in seconds
	ParseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "pdptw_parse_duration_seconds", Help: "Parse duration in seconds.", Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1}},
		[]string{"kind"},
	)
	// ParseWarnings counts recovered per-route and per-node problems
	ParseWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pdptw_parse_warnings_total", Help: "Recovered solution parse warnings."},
	)

	// SolveJobs counts solver jobs by final status
	SolveJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pdptw_solve_jobs_total", Help: "Solver jobs by final status."},
		[]string{"status"},
	)
	// SolveCacheHits counts solve requests answered from the cache
	SolveCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pdptw_solve_cache_hits_total", Help: "Solve requests served from cache."},
	)
	// SolveDuration records external solver run time in seconds
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "pdptw_solve_duration_seconds", Help: "External solver run time in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300}},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Parses)
		Registry.MustRegister(ParseDuration)
		Registry.MustRegister(ParseWarnings)
		Registry.MustRegister(SolveJobs)
		Registry.MustRegister(SolveCacheHits)
		Registry.MustRegister(SolveDuration)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// ObserveParse records one parse of the given kind ("instance" or "solution").
func ObserveParse(kind string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	Parses.WithLabelValues(kind, outcome).Inc()
	ParseDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
