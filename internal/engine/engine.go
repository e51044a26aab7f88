// Package engine runs the planning pipeline: build the model, dispatch it to
// a solver, extract the plan and compute the KPIs, as one blocking call.
package engine

import (
	"context"
	"fmt"

	"github.com/andresuchdata/netplan/internal/builder"
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/extract"
	"github.com/andresuchdata/netplan/internal/kpi"
	"github.com/andresuchdata/netplan/internal/metrics"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/andresuchdata/netplan/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the engine defaults.
type Config struct {
	Solver              solver.Options
	Builder             builder.Options
	ScenarioConcurrency int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Solver:              solver.DefaultOptions(),
		ScenarioConcurrency: 2,
	}
}

// Request is one planning run.
type Request struct {
	// RunID identifies the run; a UUID is generated when empty.
	RunID string
	Input *domain.Input
	// Options overrides the engine's solver defaults when set.
	Options *solver.Options
}

// Engine holds no per-run state and is safe for concurrent use.
type Engine struct {
	dispatcher *solver.Dispatcher
	cfg        Config
	metrics    *metrics.Planner
	log        zerolog.Logger
}

// New creates an engine. A nil dispatcher uses the default registry.
func New(dispatcher *solver.Dispatcher, cfg Config, m *metrics.Planner) *Engine {
	if dispatcher == nil {
		dispatcher = solver.NewDispatcher(nil, m)
	}
	if cfg.ScenarioConcurrency <= 0 {
		cfg.ScenarioConcurrency = 1
	}
	return &Engine{
		dispatcher: dispatcher,
		cfg:        cfg,
		metrics:    m,
		log:        logger.Component("engine"),
	}
}

// Options returns the solver options a request runs with.
func (e *Engine) Options(req Request) solver.Options {
	if req.Options != nil {
		return *req.Options
	}
	return e.cfg.Solver
}

// Run executes one request. Input errors (DataEmptyError) and solver
// failures return a nil Result. Terminal solve statuses return the Result
// together with the matching typed error; solved runs return a nil error.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := e.log.With().Str("run_id", runID).Logger()

	pm, err := builder.Build(req.Input, e.cfg.Builder)
	if err != nil {
		log.Error().Err(err).Msg("model build failed")
		return nil, err
	}

	out, err := e.dispatcher.Solve(ctx, pm.Model, e.Options(req))
	if err != nil {
		log.Error().Err(err).Msg("solve failed")
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	res := newResult(runID)
	res.Status = out.Status
	res.Solver = out.Solver
	res.RequestedSolver = out.RequestedSolver
	res.ObjectiveValue = out.Objective
	res.BestBound = out.BestBound
	res.MIPGap = out.Gap
	res.Nodes = out.Nodes
	res.SolveTimeSeconds = out.SolveTime.Seconds()
	res.ConstraintFamilies = append(res.ConstraintFamilies, out.Families...)
	res.Warnings = append(res.Warnings, pm.Warnings...)
	res.Warnings = append(res.Warnings, out.Warnings...)

	if out.HasSolution() {
		plan, err := extract.Extract(pm, out)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		res.CostBreakdown = &plan.Costs
		res.ProductionPlan = plan.Production
		res.ShipmentPlan = plan.Shipments
		res.TripPlan = plan.Trips
		res.InventoryProfile = plan.Inventory
		res.DemandFulfillment = plan.Fulfillment

		report := kpi.Calculate(plan)
		res.KPI = &report

		if violations := plan.Audit(); len(violations) > 0 {
			res.Violations = append(res.Violations, violations...)
			for _, v := range violations {
				log.Warn().Str("violation", v).Msg("plan audit")
			}
		}
	}

	e.metrics.ObserveRun(string(res.Status))
	runErr := out.Err()
	if runErr != nil {
		res.Error = runErr.Error()
		log.Warn().Err(runErr).Str("status", string(res.Status)).Msg("run finished without a plan")
		return res, runErr
	}

	evt := log.Info().
		Str("status", string(res.Status)).
		Str("solver", res.Solver).
		Float64("solve_time_seconds", res.SolveTimeSeconds)
	if res.ObjectiveValue != nil {
		evt = evt.Float64("objective", *res.ObjectiveValue)
	}
	evt.Msg("run finished")
	return res, nil
}
