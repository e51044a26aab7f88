package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPlannerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(reg)

	p.ObserveSolve("bnb", "optimal", 20*time.Millisecond)
	p.ObserveSolve("bnb", "optimal", 30*time.Millisecond)
	p.ObserveSolve("bnb", "infeasible", time.Millisecond)
	p.Fallback("gurobi")
	p.CacheLookup(true)
	p.CacheLookup(false)
	p.CacheLookup(false)

	if got := testutil.ToFloat64(p.solvesTotal.WithLabelValues("bnb", "optimal")); got != 2 {
		t.Fatalf("optimal solves = %g, want 2", got)
	}
	if got := testutil.ToFloat64(p.fallbacksTotal.WithLabelValues("gurobi")); got != 1 {
		t.Fatalf("fallbacks = %g, want 1", got)
	}
	if got := testutil.ToFloat64(p.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("cache misses = %g, want 2", got)
	}
	if n := testutil.CollectAndCount(p.solveDuration); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}
}

func TestNilPlannerIsNoop(t *testing.T) {
	var p *Planner
	p.ObserveSolve("bnb", "optimal", time.Second)
	p.Fallback("x")
	p.ObserveRun("optimal")
	p.CacheLookup(true)
}
