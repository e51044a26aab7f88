// Package bnb is the default MILP backend: a deterministic LP-based
// branch-and-bound.
//
// Search outline:
//  1. Each node carries its own variable bounds. Relaxations are solved by a
//     bounded dual simplex over a dense tableau (tableau.go). A child starts
//     from its parent's optimal basis, so a branch usually costs a handful of
//     pivots. Models the tableau cannot settle (iteration limit, numerical
//     drift, unbounded columns) fall back to gonum's lp.Simplex on a
//     standard-form rebuild (relax.go).
//  2. At the root, and periodically while no incumbent exists, a rounding
//     heuristic fixes the binaries (up, nearest, down), re-solves, rounds the
//     general integers up and re-solves again. On planning models this yields
//     a feasible plan before any branching, since unmet demand absorbs what
//     the rounding takes away.
//  3. Until the first incumbent exists the queue dives depth-first, up branch
//     first. Afterwards it switches to best-bound order, but keeps plunging
//     into the up child of the node just solved so the tableau stays warm.
//  4. A node is pruned when its bound is within the gap of the incumbent:
//     bound ≥ incumbent − max(absGap, relGap·|incumbent|).
//  5. Branching picks the most fractional integer variable, lowest index on
//     ties, so two runs over the same model visit the same nodes.
//
// The time limit is checked between nodes; a single LP is never interrupted.
package bnb

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/netplan/internal/milp"
	"gonum.org/v1/gonum/floats"
)

// Name is the registry name of this backend.
const Name = "bnb"

// Solver is the branch-and-bound backend. The zero value is not usable; use New.
type Solver struct {
	// SimplexTol is passed to lp.Simplex.
	SimplexTol float64
	// IntTol is the distance to the nearest integer accepted as integral.
	IntTol float64
	// AbsGap is the absolute pruning tolerance.
	AbsGap float64
}

// New returns a solver with default tolerances.
func New() *Solver {
	return &Solver{
		SimplexTol: 1e-10,
		IntTol:     1e-6,
		AbsGap:     1e-6,
	}
}

// Name returns the registry name.
func (s *Solver) Name() string { return Name }

// Available always succeeds: the backend is pure Go.
func (s *Solver) Available() error { return nil }

// Solve runs the search until the tree is exhausted, the gap is closed, the
// context deadline or p.TimeLimit elapses, or p.MaxNodes nodes were solved.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, p milp.Params) (*milp.Result, error) {
	if m == nil {
		return nil, fmt.Errorf("bnb: nil model")
	}
	for _, v := range m.Variables() {
		if v.Lower < 0 || math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			return nil, fmt.Errorf("bnb: variable %s has unsupported lower bound %g", v.Name, v.Lower)
		}
	}

	e := newSearch(s, m, p)
	return e.run(ctx)
}

// heuristicEvery is the node interval of the rounding heuristic while no
// incumbent exists.
const heuristicEvery = 50

type search struct {
	s      *Solver
	m      *milp.Model
	params milp.Params

	n        int
	cost     []float64
	integral []bool
	inRow    []bool
	binaries []int
	generals []int

	tab          *tableau
	tabNode      int
	maxIter      int
	refreshAfter int

	incumbent []float64
	incObj    float64
	hasInc    bool

	queue       nodeQueue
	nextID      int
	nodes       int
	prunedBound float64
}

func newSearch(s *Solver, m *milp.Model, p milp.Params) *search {
	vars := m.Variables()
	e := &search{
		s:           s,
		m:           m,
		params:      p,
		n:           len(vars),
		cost:        make([]float64, len(vars)),
		integral:    make([]bool, len(vars)),
		inRow:       make([]bool, len(vars)),
		tab:         newTableau(m),
		tabNode:     -1,
		prunedBound: math.Inf(1),
	}
	for j, v := range vars {
		e.cost[j] = v.Cost
		e.integral[j] = v.IsIntegral()
		switch v.Kind {
		case milp.Binary:
			e.binaries = append(e.binaries, j)
		case milp.Integer:
			e.generals = append(e.generals, j)
		}
	}
	for _, r := range m.Constraints() {
		for _, t := range r.Terms {
			e.inRow[t.Var] = true
		}
	}
	rows := m.NumConstraints()
	e.maxIter = 50*(rows+e.n) + 1000
	e.refreshAfter = max(100, rows)
	return e
}

func (e *search) run(ctx context.Context) (*milp.Result, error) {
	deadline, hasDeadline := ctx.Deadline()
	if e.params.TimeLimit > 0 {
		d := time.Now().Add(e.params.TimeLimit)
		if !hasDeadline || d.Before(deadline) {
			deadline, hasDeadline = d, true
		}
	}

	root := &node{
		id:     e.newID(),
		parent: -1,
		bound:  math.Inf(-1),
		lo:     make([]float64, e.n),
		hi:     make([]float64, e.n),
	}
	for j, v := range e.m.Variables() {
		root.lo[j], root.hi[j] = v.Lower, v.Upper
		if e.integral[j] {
			root.lo[j] = math.Ceil(v.Lower - e.s.IntTol)
			if !math.IsInf(v.Upper, 1) {
				root.hi[j] = math.Floor(v.Upper + e.s.IntTol)
			}
		}
	}
	heap.Push(&e.queue, root)

	var next *node
	limitHit, nodeLimit := false, false
	for next != nil || e.queue.Len() > 0 {
		switch {
		case (hasDeadline && time.Now().After(deadline)) || ctx.Err() != nil:
			limitHit = true
		case e.params.MaxNodes > 0 && e.nodes >= e.params.MaxNodes:
			limitHit, nodeLimit = true, true
		}
		if limitHit {
			if next != nil {
				heap.Push(&e.queue, next)
			}
			break
		}

		nd := next
		next = nil
		if nd == nil {
			nd = heap.Pop(&e.queue).(*node)
		}
		if e.hasInc && nd.bound >= e.cutoff() {
			e.notePruned(nd.bound)
			continue
		}

		e.nodes++
		obj, x, st, err := e.solveNode(nd)
		if err != nil {
			return nil, fmt.Errorf("bnb: node %d: %w", nd.id, err)
		}

		switch st {
		case relaxInfeasible:
			continue
		case relaxUnbounded:
			if nd.depth == 0 {
				return &milp.Result{Status: milp.StatusUnbounded, Bound: math.Inf(-1), Nodes: e.nodes}, nil
			}
			continue
		}

		if e.hasInc && obj >= e.cutoff() {
			e.notePruned(obj)
			continue
		}

		j := e.branchVar(x)
		if j < 0 {
			e.accept(x)
			continue
		}

		var warm basis
		if e.tabNode == nd.id {
			warm = e.tab.snapshot()
		}
		if nd.depth == 0 || (!e.hasInc && e.nodes%heuristicEvery == 0) {
			e.roundAndRepair(nd, x, warm)
			if e.hasInc && obj >= e.cutoff() {
				e.notePruned(obj)
				continue
			}
		}

		down := e.child(nd, obj, warm)
		down.hi[j] = math.Floor(x[j])
		up := e.child(nd, obj, warm)
		up.lo[j] = math.Ceil(x[j])
		heap.Push(&e.queue, down)
		next = up
	}

	res := e.result(limitHit)
	res.NodeLimit = nodeLimit
	return res, nil
}

// solveNode solves the relaxation of nd, on the tableau when it can and on
// the dense standard form otherwise.
func (e *search) solveNode(nd *node) (float64, []float64, relaxStatus, error) {
	reuse := e.tabNode >= 0 && nd.parent == e.tabNode
	x, st, ok := e.solveLP(nd.lo, nd.hi, reuse, nd.warm)
	e.tabNode = -1
	if !ok {
		return e.relax(nd.lo, nd.hi)
	}
	if st != relaxOptimal {
		return 0, nil, st, nil
	}
	e.tabNode = nd.id
	return e.m.Objective(x), x, st, nil
}

// solveLP runs the dual simplex under lo, hi. reuse keeps the basis already
// on the tableau; otherwise warm, then the slack basis, is loaded. ok is false
// when the answer cannot be trusted and the dense path must decide.
func (e *search) solveLP(lo, hi []float64, reuse bool, warm basis) (x []float64, st relaxStatus, ok bool) {
	tb := e.tab
	tb.setBounds(lo, hi)

	for attempt := 0; attempt < 2; attempt++ {
		switch {
		case attempt > 0:
			tb.reset()
		case reuse:
			if tb.pivots >= e.refreshAfter && !tb.load(tb.snapshot()) {
				tb.reset()
			}
		case warm != nil:
			if !tb.load(warm) {
				tb.reset()
			}
		default:
			tb.reset()
		}

		switch tb.solve(e.maxIter) {
		case lpOptimal:
			if tb.touchesBox() {
				return nil, 0, false
			}
			x = tb.structural()
			if e.relaxationHolds(x, lo, hi) {
				return x, relaxOptimal, true
			}
		case lpInfeasible:
			if tb.touchesBox() {
				return nil, 0, false
			}
			return nil, relaxInfeasible, true
		}
	}
	return nil, 0, false
}

// relaxationHolds checks x against the node bounds and every row, then snaps
// x onto the bounds.
func (e *search) relaxationHolds(x, lo, hi []float64) bool {
	const tol = 1e-6
	for j, v := range x {
		if v < lo[j]-tol*(1+math.Abs(lo[j])) || v > hi[j]+tol*(1+math.Abs(hi[j])) {
			return false
		}
	}
	for r, c := range e.m.Constraints() {
		act, slack := e.m.Activity(r, x), tol*(1+math.Abs(c.RHS))
		switch c.Sense {
		case milp.LessEq:
			if act > c.RHS+slack {
				return false
			}
		case milp.GreaterEq:
			if act < c.RHS-slack {
				return false
			}
		default:
			if math.Abs(act-c.RHS) > slack {
				return false
			}
		}
	}
	for j := range x {
		x[j] = math.Min(math.Max(x[j], lo[j]), hi[j])
	}
	return true
}

// roundAndRepair tries to turn the relaxation x of nd into an incumbent.
func (e *search) roundAndRepair(nd *node, x []float64, warm basis) {
	defer func() { e.tabNode = -1 }()

	tol := e.s.IntTol
	rounders := [...]func(float64) float64{
		func(v float64) float64 { return math.Ceil(v - tol) },
		math.Round,
		func(v float64) float64 { return math.Floor(v + tol) },
	}

	var prev []float64
	for _, round := range rounders {
		lo := append([]float64(nil), nd.lo...)
		hi := append([]float64(nil), nd.hi...)
		fixed := make([]float64, 0, len(e.binaries))
		for _, j := range e.binaries {
			v := clamp(round(x[j]), lo[j], hi[j])
			lo[j], hi[j] = v, v
			fixed = append(fixed, v)
		}
		if prev != nil && floats.Equal(prev, fixed) {
			continue
		}
		prev = fixed

		x1, st, ok := e.solveLP(lo, hi, false, warm)
		if !ok || st != relaxOptimal {
			continue
		}
		for _, j := range e.generals {
			v := clamp(math.Ceil(x1[j]-tol), lo[j], math.Floor(hi[j]+tol))
			lo[j], hi[j] = v, v
		}
		x2, st, ok := e.solveLP(lo, hi, true, nil)
		if !ok || st != relaxOptimal {
			continue
		}
		if len(e.m.Violations(e.clean(x2), 1e-6)) > 0 {
			continue
		}
		e.accept(x2)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func (e *search) newID() int {
	id := e.nextID
	e.nextID++
	return id
}

func (e *search) child(parent *node, bound float64, warm basis) *node {
	return &node{
		id:     e.newID(),
		parent: parent.id,
		depth:  parent.depth + 1,
		bound:  bound,
		warm:   warm,
		lo:     append([]float64(nil), parent.lo...),
		hi:     append([]float64(nil), parent.hi...),
	}
}

func (e *search) cutoff() float64 {
	tol := math.Max(e.s.AbsGap, e.params.RelativeGap*math.Abs(e.incObj))
	return e.incObj - tol
}

func (e *search) notePruned(bound float64) {
	if bound < e.prunedBound {
		e.prunedBound = bound
	}
}

// branchVar returns the most fractional integral variable, or -1.
func (e *search) branchVar(x []float64) int {
	best, bestScore := -1, math.Inf(1)
	for j := 0; j < e.n; j++ {
		if !e.integral[j] {
			continue
		}
		f := x[j] - math.Floor(x[j])
		if f <= e.s.IntTol || f >= 1-e.s.IntTol {
			continue
		}
		if score := math.Abs(f - 0.5); score < bestScore {
			best, bestScore = j, score
		}
	}
	return best
}

// clean rounds integral columns and zeroes noise.
func (e *search) clean(x []float64) []float64 {
	out := make([]float64, e.n)
	for j, v := range x {
		if e.integral[j] {
			v = math.Round(v)
		}
		if math.Abs(v) < 1e-9 {
			v = 0
		}
		out[j] = v
	}
	return out
}

// accept records x as incumbent when it improves on the current one.
func (e *search) accept(x []float64) {
	clean := e.clean(x)
	obj := e.m.Objective(clean)
	if e.hasInc && obj >= e.incObj-1e-9 {
		return
	}

	first := !e.hasInc
	e.incumbent, e.incObj, e.hasInc = clean, obj, true
	if first {
		e.queue.bestFirst = true
		heap.Init(&e.queue)
	}
}

func (e *search) bestBound() float64 {
	bound := math.Inf(1)
	if e.hasInc {
		bound = e.incObj
	}
	bound = math.Min(bound, e.prunedBound)
	for _, nd := range e.queue.items {
		bound = math.Min(bound, nd.bound)
	}
	return bound
}

func (e *search) result(limitHit bool) *milp.Result {
	res := &milp.Result{Nodes: e.nodes, Bound: e.bestBound()}

	switch {
	case e.hasInc:
		res.Values = e.incumbent
		res.Objective = e.incObj
		res.Status = milp.StatusOptimal
		if limitHit && res.Gap() > e.params.RelativeGap {
			res.Status = milp.StatusFeasible
		}
	case limitHit:
		res.Status = milp.StatusNoSolution
	default:
		res.Status = milp.StatusInfeasible
	}
	return res
}
