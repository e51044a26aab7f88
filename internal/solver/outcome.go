package solver

import (
	"time"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/milp"
)

// Outcome is the dispatcher's view of one solve.
type Outcome struct {
	Status          domain.SolveStatus
	Solver          string
	RequestedSolver string
	// Objective, BestBound and Gap are nil when unknown.
	Objective *float64
	BestBound *float64
	Gap       *float64
	Nodes     int
	SolveTime time.Duration
	TimeLimit time.Duration
	// NodeLimit is the node cap that stopped the search, 0 when none did.
	NodeLimit int
	Families  []string
	Warnings  []string
	Values    []float64

	cause error
}

// HasSolution reports whether Values holds an accepted plan.
func (o *Outcome) HasSolution() bool {
	return o != nil && o.Status.HasSolution() && o.Values != nil
}

// Value returns the solved value of v, or 0 without a solution.
func (o *Outcome) Value(v milp.Var) float64 {
	if !o.HasSolution() || int(v) < 0 || int(v) >= len(o.Values) {
		return 0
	}
	return o.Values[v]
}

// Err maps a terminal status to its typed error. Solved outcomes return nil.
func (o *Outcome) Err() error {
	switch o.Status {
	case domain.StatusInfeasible:
		return domain.NewModelInfeasibleError(o.Families)
	case domain.StatusUnbounded:
		return domain.NewModelUnboundedError(o.Families)
	case domain.StatusTimeoutNoSolution:
		return domain.NewSolverTimeoutError(o.Solver, o.TimeLimit, o.NodeLimit)
	case domain.StatusSolverUnavailable:
		return domain.NewSolverUnavailableError(o.RequestedSolver, DefaultSolver, o.cause)
	}
	return nil
}

func statusFor(s milp.Status) (domain.SolveStatus, bool) {
	switch s {
	case milp.StatusOptimal:
		return domain.StatusOptimal, true
	case milp.StatusFeasible:
		return domain.StatusFeasibleSuboptimal, true
	case milp.StatusInfeasible:
		return domain.StatusInfeasible, true
	case milp.StatusUnbounded:
		return domain.StatusUnbounded, true
	case milp.StatusNoSolution:
		return domain.StatusTimeoutNoSolution, true
	}
	return "", false
}

func floatPtr(v float64) *float64 { return &v }
