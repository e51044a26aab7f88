package solver

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/andresuchdata/netplan/internal/milp"
)

const (
	DefaultSolver    = NameBnB
	DefaultTimeLimit = 600 * time.Second
	DefaultMIPGap    = 0.01
)

// Options are the per-call solver settings.
type Options struct {
	SolverName string
	// TimeLimit is the wall-clock budget of the solve. Zero means DefaultTimeLimit.
	TimeLimit time.Duration
	// MIPGap is the relative gap at which the search stops. Zero asks for a
	// proven optimum; use DefaultOptions for the usual 1%.
	MIPGap float64
	// MaxNodes caps the branch-and-bound tree where the backend supports it.
	MaxNodes int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		SolverName: DefaultSolver,
		TimeLimit:  DefaultTimeLimit,
		MIPGap:     DefaultMIPGap,
	}
}

// WithDefaults fills the solver name and time limit when unset.
func (o Options) WithDefaults() Options {
	o.SolverName = strings.ToLower(strings.TrimSpace(o.SolverName))
	if o.SolverName == "" {
		o.SolverName = DefaultSolver
	}
	if o.TimeLimit == 0 {
		o.TimeLimit = DefaultTimeLimit
	}
	return o
}

// OptionsError reports an invalid option value.
type OptionsError struct {
	Field  string
	Reason string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid solver option %s: %s", e.Field, e.Reason)
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.TimeLimit <= 0 {
		return &OptionsError{Field: "time_limit", Reason: fmt.Sprintf("must be positive, got %s", o.TimeLimit)}
	}
	if math.IsNaN(o.MIPGap) || o.MIPGap < 0 || o.MIPGap >= 1 {
		return &OptionsError{Field: "mip_gap", Reason: fmt.Sprintf("must be in [0, 1), got %g", o.MIPGap)}
	}
	if o.MaxNodes < 0 {
		return &OptionsError{Field: "max_nodes", Reason: fmt.Sprintf("must not be negative, got %d", o.MaxNodes)}
	}
	return nil
}

// params translates the options for one backend.
func (o Options) params(backend string) milp.Params {
	p := milp.Params{
		TimeLimit:   o.TimeLimit,
		RelativeGap: o.MIPGap,
		MaxNodes:    o.MaxNodes,
	}
	if backend == NameGLPK {
		// GLPK's integer optimizer needs an LP basis unless presolve is on.
		p.Presolve = true
	}
	return p
}
