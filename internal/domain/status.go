package domain

import "strings"

// SolveStatus classifies how a solve terminated.
type SolveStatus string

const (
	StatusOptimal            SolveStatus = "optimal"
	StatusFeasibleSuboptimal SolveStatus = "feasible_suboptimal"
	StatusInfeasible         SolveStatus = "infeasible"
	StatusUnbounded          SolveStatus = "unbounded"
	StatusTimeoutNoSolution  SolveStatus = "timeout_no_solution"
	StatusSolverUnavailable  SolveStatus = "solver_unavailable"
)

var solveStatusLabels = map[SolveStatus]string{
	StatusOptimal:            "Optimal",
	StatusFeasibleSuboptimal: "Feasible (gap not proven)",
	StatusInfeasible:         "Infeasible",
	StatusUnbounded:          "Unbounded",
	StatusTimeoutNoSolution:  "Timed out without a solution",
	StatusSolverUnavailable:  "Solver unavailable",
}

// Label returns a human-readable label for the status.
func (s SolveStatus) Label() string {
	if label, ok := solveStatusLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// HasSolution reports whether the status carries an accepted solution that
// can be extracted.
func (s SolveStatus) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasibleSuboptimal
}

// ParseSolveStatus returns the status for a given label (case-insensitive).
func ParseSolveStatus(label string) (SolveStatus, bool) {
	s := SolveStatus(strings.ToLower(strings.TrimSpace(label)))
	_, ok := solveStatusLabels[s]

	return s, ok
}
