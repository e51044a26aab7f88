package bnb

import (
	"errors"
	"fmt"
	"math"

	"github.com/andresuchdata/netplan/internal/milp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

type relaxStatus int

const (
	relaxOptimal relaxStatus = iota
	relaxInfeasible
	relaxUnbounded
)

const feasTol = 1e-7

type lpRow struct {
	cols  []int
	coefs []float64
	sense milp.Sense
	rhs   float64
}

// relax solves the LP relaxation under the node bounds lo, hi and returns
// the objective and a full-length solution in original variable space.
func (e *search) relax(lo, hi []float64) (float64, []float64, relaxStatus, error) {
	x := make([]float64, e.n)
	col := make([]int, e.n)
	nCols := 0
	for j := 0; j < e.n; j++ {
		col[j] = -1
		if hi[j] < lo[j]-e.s.IntTol {
			return 0, nil, relaxInfeasible, nil
		}
		x[j] = lo[j]
		if hi[j]-lo[j] <= e.s.IntTol {
			continue
		}
		if !e.inRow[j] {
			// Unconstrained except by its bounds.
			if e.cost[j] < 0 {
				if math.IsInf(hi[j], 1) {
					return 0, nil, relaxUnbounded, nil
				}
				x[j] = hi[j]
			}
			continue
		}
		col[j] = nCols
		nCols++
	}

	var rows []lpRow
	for _, c := range e.m.Constraints() {
		r := lpRow{sense: c.Sense, rhs: c.RHS}
		for _, t := range c.Terms {
			if k := col[t.Var]; k >= 0 {
				r.cols = append(r.cols, k)
				r.coefs = append(r.coefs, t.Coef)
				// x = lo + x'
				r.rhs -= t.Coef * lo[t.Var]
				continue
			}
			r.rhs -= t.Coef * x[t.Var]
		}
		if len(r.cols) == 0 {
			if !constantFeasible(r.sense, r.rhs) {
				return 0, nil, relaxInfeasible, nil
			}
			continue
		}
		rows = append(rows, r)
	}
	for j := 0; j < e.n; j++ {
		if col[j] >= 0 && !math.IsInf(hi[j], 1) {
			rows = append(rows, lpRow{
				cols:  []int{col[j]},
				coefs: []float64{1},
				sense: milp.LessEq,
				rhs:   hi[j] - lo[j],
			})
		}
	}

	if nCols == 0 {
		return e.m.Objective(x), x, relaxOptimal, nil
	}

	xs, st, err := e.simplex(nCols, col, rows)
	if err != nil || st != relaxOptimal {
		return 0, nil, st, err
	}
	for j := 0; j < e.n; j++ {
		if k := col[j]; k >= 0 {
			x[j] = lo[j] + xs[k]
		}
	}
	return e.m.Objective(x), x, relaxOptimal, nil
}

func constantFeasible(sense milp.Sense, rhs float64) bool {
	switch sense {
	case milp.LessEq:
		return 0 <= rhs+feasTol
	case milp.GreaterEq:
		return 0 >= rhs-feasTol
	default:
		return math.Abs(rhs) <= feasTol
	}
}

// simplex builds the standard form with one slack or surplus column per
// inequality and solves it.
func (e *search) simplex(nCols int, col []int, rows []lpRow) (xs []float64, st relaxStatus, err error) {
	nSlack := 0
	for _, r := range rows {
		if r.sense != milp.Equal {
			nSlack++
		}
	}
	m, n := len(rows), nCols+nSlack
	if m > n {
		return nil, relaxOptimal, fmt.Errorf("relaxation has %d rows and only %d columns", m, n)
	}

	c := make([]float64, n)
	for j, k := range col {
		if k >= 0 {
			c[k] = e.cost[j]
		}
	}

	A := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	slack := nCols
	for i, r := range rows {
		for t, k := range r.cols {
			A.Set(i, k, A.At(i, k)+r.coefs[t])
		}
		switch r.sense {
		case milp.LessEq:
			A.Set(i, slack, 1)
			slack++
		case milp.GreaterEq:
			A.Set(i, slack, -1)
			slack++
		}
		b[i] = r.rhs
	}

	defer func() {
		if p := recover(); p != nil {
			xs, st, err = nil, relaxOptimal, fmt.Errorf("simplex panic: %v", p)
		}
	}()

	_, optX, err := lp.Simplex(c, A, b, e.s.SimplexTol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, relaxInfeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return nil, relaxUnbounded, nil
	case err != nil:
		return nil, relaxOptimal, fmt.Errorf("simplex: %w", err)
	}
	return optX[:nCols], relaxOptimal, nil
}
