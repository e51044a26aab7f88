// Package metrics exposes planner counters and histograms for Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "netplan"

// Planner groups the collectors of one process. All methods are nil-safe so
// callers can run without metrics.
type Planner struct {
	solvesTotal    *prometheus.CounterVec
	solveDuration  *prometheus.HistogramVec
	fallbacksTotal *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New registers the planner collectors on reg.
func New(reg prometheus.Registerer) *Planner {
	f := promauto.With(reg)
	return &Planner{
		solvesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solves_total",
			Help:      "Solver invocations by backend and terminal status.",
		}, []string{"solver", "status"}),
		solveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solve_duration_seconds",
			Help:      "Wall time spent inside the solver backend.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 600, 1800},
		}, []string{"solver"}),
		fallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "fallbacks_total",
			Help:      "Requests served by the default backend because the requested one was unavailable.",
		}, []string{"requested"}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Completed planning runs by status.",
		}, []string{"status"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
	}
}

var (
	defaultOnce sync.Once
	defaultSet  *Planner
)

// Default returns the collectors registered on the global registry.
func Default() *Planner {
	defaultOnce.Do(func() {
		defaultSet = New(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

func (p *Planner) ObserveSolve(solver, status string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.solvesTotal.WithLabelValues(solver, status).Inc()
	p.solveDuration.WithLabelValues(solver).Observe(elapsed.Seconds())
}

func (p *Planner) Fallback(requested string) {
	if p == nil {
		return
	}
	p.fallbacksTotal.WithLabelValues(requested).Inc()
}

func (p *Planner) ObserveRun(status string) {
	if p == nil {
		return
	}
	p.runsTotal.WithLabelValues(status).Inc()
}

func (p *Planner) CacheLookup(hit bool) {
	if p == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}
