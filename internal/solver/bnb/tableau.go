package bnb

import (
	"math"

	"github.com/andresuchdata/netplan/internal/milp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type colStatus uint8

const (
	isBasic colStatus = iota
	atLower
	atUpper
)

// basis is a snapshot of the column statuses of an optimal tableau. Children
// of a node restart the dual simplex from their parent's basis.
type basis []colStatus

const (
	// boxBound replaces infinite upper bounds so every nonbasic column can
	// sit at either bound. A solution touching it is handed to the dense path.
	boxBound  = 1e9
	pivotTol  = 1e-9
	primalTol = 1e-7
	dualTol   = 1e-9
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpIterLimit
)

// tableau is a dense bounded-variable simplex tableau. Columns are the model
// variables followed by one slack per row; GreaterEq rows are negated so every
// slack is non-negative, and equality slacks are fixed at zero. Row m holds the
// reduced costs and the last column the basic values with all nonbasic columns
// at zero.
type tableau struct {
	m, n, cols int

	init *mat.Dense
	t    *mat.Dense

	head  []int
	stat  []colStatus
	lo    []float64
	hi    []float64
	boxed []bool
	x     []float64

	slackHi []float64
	nz      []int
	pivots  int
}

func newTableau(model *milp.Model) *tableau {
	vars, rows := model.Variables(), model.Constraints()
	m, n := len(rows), len(vars)
	cols := n + m

	tb := &tableau{
		m:       m,
		n:       n,
		cols:    cols,
		init:    mat.NewDense(m+1, cols+1, nil),
		t:       mat.NewDense(m+1, cols+1, nil),
		head:    make([]int, m),
		stat:    make([]colStatus, cols),
		lo:      make([]float64, cols),
		hi:      make([]float64, cols),
		boxed:   make([]bool, cols),
		x:       make([]float64, cols),
		slackHi: make([]float64, m),
	}

	for i, r := range rows {
		sign := 1.0
		if r.Sense == milp.GreaterEq {
			sign = -1
		}
		row := tb.init.RawRowView(i)
		for _, t := range r.Terms {
			row[t.Var] += sign * t.Coef
		}
		row[n+i] = 1
		row[cols] = sign * r.RHS
		tb.slackHi[i] = math.Inf(1)
		if r.Sense == milp.Equal {
			tb.slackHi[i] = 0
		}
	}
	cost := tb.init.RawRowView(m)
	for j, v := range vars {
		cost[j] = v.Cost
	}
	return tb
}

// setBounds installs node bounds for the structural columns.
func (tb *tableau) setBounds(lo, hi []float64) {
	for j := 0; j < tb.cols; j++ {
		l, h := 0.0, 0.0
		if j < tb.n {
			l, h = lo[j], hi[j]
		} else {
			h = tb.slackHi[j-tb.n]
		}
		tb.boxed[j] = math.IsInf(h, 1)
		if tb.boxed[j] {
			h = boxBound
		}
		tb.lo[j], tb.hi[j] = l, h
	}
}

// reset loads the slack basis with every structural column at the bound its
// cost prefers.
func (tb *tableau) reset() {
	tb.t.Copy(tb.init)
	cost := tb.init.RawRowView(tb.m)
	for j := 0; j < tb.n; j++ {
		tb.stat[j] = atLower
		if cost[j] < 0 {
			tb.stat[j] = atUpper
		}
	}
	for i := 0; i < tb.m; i++ {
		tb.head[i] = tb.n + i
		tb.stat[tb.n+i] = isBasic
	}
	tb.pivots = 0
}

// load refactors the tableau for b. It reports false when b is singular.
func (tb *tableau) load(b basis) bool {
	tb.reset()
	for q := 0; q < tb.cols; q++ {
		if b[q] != isBasic || tb.stat[q] == isBasic {
			continue
		}
		r, best := -1, pivotTol
		for i := 0; i < tb.m; i++ {
			if b[tb.head[i]] == isBasic {
				continue
			}
			if a := math.Abs(tb.t.At(i, q)); a > best {
				r, best = i, a
			}
		}
		if r < 0 {
			return false
		}
		tb.stat[tb.head[r]] = atLower
		tb.pivot(r, q)
	}
	for j, s := range b {
		if s != isBasic {
			tb.stat[j] = s
		}
	}
	tb.pivots = 0
	return true
}

func (tb *tableau) snapshot() basis {
	return append(basis(nil), tb.stat...)
}

// pivot brings column q into the basis on row r. The caller sets the status
// of the leaving column.
func (tb *tableau) pivot(r, q int) {
	pr := tb.t.RawRowView(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, pr)
			row[q] = 0
		}
	}
	tb.head[r] = q
	tb.stat[q] = isBasic
	tb.pivots++
}

func (tb *tableau) nonbasicValue(j int) float64 {
	if tb.stat[j] == atUpper {
		return tb.hi[j]
	}
	return tb.lo[j]
}

func (tb *tableau) computeValues() {
	tb.nz = tb.nz[:0]
	for j := 0; j < tb.cols; j++ {
		if tb.stat[j] == isBasic {
			continue
		}
		v := tb.nonbasicValue(j)
		tb.x[j] = v
		if v != 0 {
			tb.nz = append(tb.nz, j)
		}
	}
	for i := 0; i < tb.m; i++ {
		row := tb.t.RawRowView(i)
		v := row[tb.cols]
		for _, j := range tb.nz {
			v -= row[j] * tb.x[j]
		}
		tb.x[tb.head[i]] = v
	}
}

// flipToDualFeasible moves every nonbasic column to the bound matching the
// sign of its reduced cost. All bounds are finite, so this always succeeds.
func (tb *tableau) flipToDualFeasible() {
	d := tb.t.RawRowView(tb.m)
	for j := 0; j < tb.cols; j++ {
		switch tb.stat[j] {
		case atLower:
			if d[j] < -dualTol {
				tb.stat[j] = atUpper
			}
		case atUpper:
			if d[j] > dualTol {
				tb.stat[j] = atLower
			}
		}
	}
}

// solve runs the dual simplex from the current basis.
func (tb *tableau) solve(maxIter int) lpStatus {
	tb.flipToDualFeasible()
	for it := 0; it < maxIter; it++ {
		tb.computeValues()
		r, toUpper := tb.leavingRow()
		if r < 0 {
			return lpOptimal
		}
		q := tb.enteringColumn(r, toUpper)
		if q < 0 {
			return lpInfeasible
		}
		if toUpper {
			tb.stat[tb.head[r]] = atUpper
		} else {
			tb.stat[tb.head[r]] = atLower
		}
		tb.pivot(r, q)
	}
	return lpIterLimit
}

// leavingRow picks the basic column with the largest bound violation.
func (tb *tableau) leavingRow() (int, bool) {
	r, toUpper, worst := -1, false, 0.0
	for i := 0; i < tb.m; i++ {
		j := tb.head[i]
		v := tb.x[j]
		if viol := tb.lo[j] - v; viol > primalTol*(1+math.Abs(tb.lo[j])) && viol > worst {
			r, toUpper, worst = i, false, viol
		}
		if viol := v - tb.hi[j]; viol > primalTol*(1+math.Abs(tb.hi[j])) && viol > worst {
			r, toUpper, worst = i, true, viol
		}
	}
	return r, toUpper
}

// enteringColumn runs the dual ratio test on row r: smallest |d/alpha|, then
// largest |alpha|, then lowest index.
func (tb *tableau) enteringColumn(r int, toUpper bool) int {
	pr := tb.t.RawRowView(r)
	d := tb.t.RawRowView(tb.m)
	q, bestRatio, bestAlpha := -1, math.Inf(1), 0.0
	for j := 0; j < tb.cols; j++ {
		st := tb.stat[j]
		if st == isBasic || tb.hi[j]-tb.lo[j] <= 0 {
			continue
		}
		a := pr[j]
		if math.Abs(a) <= pivotTol {
			continue
		}
		// Raising column j moves the leaving value by -a.
		var ok bool
		if toUpper {
			ok = (st == atLower && a > 0) || (st == atUpper && a < 0)
		} else {
			ok = (st == atLower && a < 0) || (st == atUpper && a > 0)
		}
		if !ok {
			continue
		}
		ratio := math.Abs(d[j]) / math.Abs(a)
		switch {
		case ratio < bestRatio-1e-12:
			q, bestRatio, bestAlpha = j, ratio, math.Abs(a)
		case ratio <= bestRatio+1e-12 && math.Abs(a) > bestAlpha:
			q, bestRatio, bestAlpha = j, math.Min(ratio, bestRatio), math.Abs(a)
		}
	}
	return q
}

// touchesBox reports whether the current point depends on a replaced infinite
// bound, in which case the answer may be an artefact of boxBound.
func (tb *tableau) touchesBox() bool {
	for j := 0; j < tb.cols; j++ {
		if !tb.boxed[j] {
			continue
		}
		if tb.stat[j] == atUpper || tb.x[j] >= boxBound/2 {
			return true
		}
	}
	return false
}

// structural copies the current values of the model variables.
func (tb *tableau) structural() []float64 {
	return append([]float64(nil), tb.x[:tb.n]...)
}
