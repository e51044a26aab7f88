package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DataEmptyError is returned when the demand table holds no usable record.
// The run cannot proceed and no model is built.
type DataEmptyError struct {
	Received int
	Dropped  int
}

func (e *DataEmptyError) Error() string {
	if e.Received == 0 {
		return "demand table is empty"
	}
	return fmt.Sprintf("demand table has no usable record (%d received, %d dropped)", e.Received, e.Dropped)
}

// ModelInfeasibleError means the solver proved that no plan satisfies the
// constraints. Families lists the constraint families present in the model.
type ModelInfeasibleError struct {
	Families []string
}

func (e *ModelInfeasibleError) Error() string {
	return "model is infeasible; active constraint families: " + strings.Join(e.Families, ", ")
}

// ModelUnboundedError means the objective decreases without limit, which
// points at a missing capacity constraint or a negative cost.
type ModelUnboundedError struct {
	Families []string
}

func (e *ModelUnboundedError) Error() string {
	return "model is unbounded; active constraint families: " + strings.Join(e.Families, ", ")
}

// SolverTimeoutError is returned when a search limit stopped the solver
// before any feasible plan was found. NodeLimit is set when the node cap, not
// the clock, was the limit. A stop with an incumbent is not an error.
type SolverTimeoutError struct {
	Solver    string
	TimeLimit time.Duration
	NodeLimit int
}

func (e *SolverTimeoutError) Error() string {
	if e.NodeLimit > 0 {
		return fmt.Sprintf("solver %s found no feasible plan within the node limit of %d", e.Solver, e.NodeLimit)
	}
	return fmt.Sprintf("solver %s found no feasible plan within %s", e.Solver, e.TimeLimit)
}

// SolverUnavailableError is returned when neither the requested backend nor
// the default fallback can run.
type SolverUnavailableError struct {
	Requested string
	Fallback  string
	Cause     error
}

func (e *SolverUnavailableError) Error() string {
	msg := fmt.Sprintf("solver %q unavailable", e.Requested)
	if e.Fallback != "" && e.Fallback != e.Requested {
		msg += fmt.Sprintf(" and fallback %q unavailable", e.Fallback)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SolverUnavailableError) Unwrap() error { return e.Cause }

// NewDataEmptyError returns a DataEmptyError carrying a stack trace.
func NewDataEmptyError(received, dropped int) error {
	return errors.WithStack(&DataEmptyError{Received: received, Dropped: dropped})
}

// NewModelInfeasibleError returns a ModelInfeasibleError carrying a stack trace.
func NewModelInfeasibleError(families []string) error {
	return errors.WithStack(&ModelInfeasibleError{Families: append([]string(nil), families...)})
}

// NewModelUnboundedError returns a ModelUnboundedError carrying a stack trace.
func NewModelUnboundedError(families []string) error {
	return errors.WithStack(&ModelUnboundedError{Families: append([]string(nil), families...)})
}

// NewSolverTimeoutError returns a SolverTimeoutError carrying a stack trace.
// nodeLimit is zero when the time limit stopped the search.
func NewSolverTimeoutError(solver string, limit time.Duration, nodeLimit int) error {
	return errors.WithStack(&SolverTimeoutError{Solver: solver, TimeLimit: limit, NodeLimit: nodeLimit})
}

// NewSolverUnavailableError returns a SolverUnavailableError carrying a stack trace.
func NewSolverUnavailableError(requested, fallback string, cause error) error {
	return errors.WithStack(&SolverUnavailableError{Requested: requested, Fallback: fallback, Cause: cause})
}

// Retryable reports whether re-running the same request could succeed.
// Only a timeout without incumbent qualifies, and only with a larger limit.
func Retryable(err error) bool {
	var timeout *SolverTimeoutError
	return errors.As(err, &timeout)
}
