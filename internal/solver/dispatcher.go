package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/metrics"
	"github.com/andresuchdata/netplan/internal/milp"
	"github.com/andresuchdata/netplan/pkg/logger"
	"github.com/rs/zerolog"
)

// Dispatcher selects a backend for each solve.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.Planner
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher over reg. A nil reg uses DefaultRegistry.
func NewDispatcher(reg *Registry, m *metrics.Planner) *Dispatcher {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Dispatcher{
		registry: reg,
		metrics:  m,
		log:      logger.Component("solver"),
	}
}

// Solve runs the model on the requested backend, falling back to the default
// one when the request cannot be served. The returned error covers invalid
// options and backend failures only; infeasible, unbounded, timeout and
// unavailable are statuses on the Outcome (see Outcome.Err).
//
// The solve is bounded by opts.TimeLimit alone: cancelling ctx does not stop
// a running solve.
func (d *Dispatcher) Solve(ctx context.Context, m *milp.Model, opts Options) (*Outcome, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	out := &Outcome{
		RequestedSolver: opts.SolverName,
		TimeLimit:       opts.TimeLimit,
		Families:        m.Families(),
	}

	backend, warning, err := d.resolve(opts.SolverName)
	if warning != "" {
		out.Warnings = append(out.Warnings, warning)
	}
	if err != nil {
		out.Status = domain.StatusSolverUnavailable
		out.cause = err
		d.metrics.ObserveSolve(opts.SolverName, string(out.Status), 0)
		d.log.Error().Err(err).Str("requested", opts.SolverName).Msg("no solver backend available")
		return out, nil
	}
	out.Solver = backend.Name()

	counts := m.CountByKind()
	d.log.Info().
		Str("model", m.Name).
		Str("solver", out.Solver).
		Int("variables", m.NumVariables()).
		Int("integer", counts[milp.Integer]+counts[milp.Binary]).
		Int("constraints", m.NumConstraints()).
		Dur("time_limit", opts.TimeLimit).
		Float64("mip_gap", opts.MIPGap).
		Msg("solving model")

	solveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.TimeLimit)
	defer cancel()

	start := time.Now()
	res, err := backend.Solve(solveCtx, m, opts.params(out.Solver))
	out.SolveTime = time.Since(start)
	if err != nil {
		d.metrics.ObserveSolve(out.Solver, "error", out.SolveTime)
		return nil, fmt.Errorf("solver %s: %w", out.Solver, err)
	}

	status, ok := statusFor(res.Status)
	if !ok {
		d.metrics.ObserveSolve(out.Solver, "error", out.SolveTime)
		return nil, fmt.Errorf("solver %s returned status %s", out.Solver, res.Status)
	}
	out.Status = status
	out.Nodes = res.Nodes
	if res.NodeLimit {
		out.NodeLimit = opts.MaxNodes
	}

	if isFinite(res.Bound) {
		out.BestBound = floatPtr(res.Bound)
	}
	if res.HasSolution() {
		out.Values = res.Values
		out.Objective = floatPtr(res.Objective)
		if gap := res.Gap(); isFinite(gap) {
			out.Gap = floatPtr(gap)
		}
	}

	d.metrics.ObserveSolve(out.Solver, string(out.Status), out.SolveTime)
	evt := d.log.Info()
	if !out.Status.HasSolution() {
		evt = d.log.Warn()
	}
	evt.Str("solver", out.Solver).
		Str("status", string(out.Status)).
		Int("nodes", out.Nodes).
		Bool("node_limit", out.NodeLimit > 0).
		Dur("elapsed", out.SolveTime).
		Msg("solve finished")

	return out, nil
}

// resolve returns the backend for name or the default one. warning is set
// when a fallback happened.
func (d *Dispatcher) resolve(name string) (Backend, string, error) {
	b, err := d.registry.Lookup(name)
	if err == nil {
		err = b.Available()
	}
	if err == nil {
		return b, "", nil
	}
	if name == DefaultSolver {
		return nil, "", err
	}

	warning := fmt.Sprintf("solver %s unavailable (%v); falling back to %s", name, err, DefaultSolver)
	d.log.Warn().Err(err).Str("requested", name).Str("fallback", DefaultSolver).Msg("solver unavailable, using fallback")
	d.metrics.Fallback(name)

	fb, ferr := d.registry.Lookup(DefaultSolver)
	if ferr == nil {
		ferr = fb.Available()
	}
	if ferr != nil {
		return nil, warning, fmt.Errorf("%v; fallback: %w", err, ferr)
	}
	return fb, warning, nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
