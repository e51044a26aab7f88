package milp

import (
	"math"
	"time"
)

// Status is the raw termination state reported by a backend.
type Status int

const (
	StatusUnknown Status = iota
	// StatusOptimal: incumbent proven optimal within the requested gap.
	StatusOptimal
	// StatusFeasible: incumbent found, a limit stopped the proof.
	StatusFeasible
	StatusInfeasible
	StatusUnbounded
	// StatusNoSolution: a limit stopped the search before any incumbent.
	StatusNoSolution
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusNoSolution:
		return "no_solution"
	default:
		return "unknown"
	}
}

// Params are backend-neutral solve parameters. The dispatcher fills them from
// the per-call configuration; backends read only what they support.
type Params struct {
	TimeLimit   time.Duration
	RelativeGap float64
	MaxNodes    int
	Presolve    bool
	Verbose     bool
}

// Result is what a backend returns.
type Result struct {
	Status    Status
	Values    []float64
	Objective float64
	Bound     float64
	Nodes     int
	// NodeLimit is set when Params.MaxNodes, not the clock, stopped the search.
	NodeLimit bool
}

// HasSolution reports whether Values holds a feasible point.
func (r *Result) HasSolution() bool {
	return r != nil && (r.Status == StatusOptimal || r.Status == StatusFeasible) && r.Values != nil
}

// Gap returns the relative distance between the incumbent and the bound.
func (r *Result) Gap() float64 {
	if !r.HasSolution() || math.IsInf(r.Bound, 0) || math.IsNaN(r.Bound) {
		return math.Inf(1)
	}
	diff := r.Objective - r.Bound
	if diff <= 0 {
		return 0
	}
	return diff / math.Max(math.Abs(r.Objective), 1e-10)
}
