//go:build glpk

// Package glpkbackend solves models with GLPK through lukpank/go-glpk. It is
// only compiled with the glpk build tag because it needs libglpk and cgo.
//
// The wrapper exposes no tm_lim, mip_gap or node limit on Iocp, so GLPK
// always runs to proven optimality with a zero gap. A context that is already
// done is refused before the model is loaded; once Intopt starts it cannot be
// interrupted, and a finish past the deadline is logged as an overrun.
package glpkbackend

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/netplan/internal/milp"
	"github.com/andresuchdata/netplan/pkg/logger"
	"github.com/lukpank/go-glpk/glpk"
)

const Name = "glpk"

type Solver struct{}

func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return Name }

func (s *Solver) Available() error { return nil }

func (s *Solver) Solve(ctx context.Context, m *milp.Model, p milp.Params) (*milp.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("glpk: %w", err)
	}
	log := logger.Component("glpk")
	if p.TimeLimit > 0 || p.RelativeGap > 0 || p.MaxNodes > 0 {
		log.Debug().
			Dur("time_limit", p.TimeLimit).
			Float64("mip_gap", p.RelativeGap).
			Int("max_nodes", p.MaxNodes).
			Msg("limits not enforced by glpk, solving to optimality")
	}
	start := time.Now()
	defer func() {
		if deadline, ok := ctx.Deadline(); ok && time.Now().After(deadline) {
			log.Warn().
				Str("model", m.Name).
				Dur("elapsed", time.Since(start)).
				Dur("overrun", time.Since(deadline)).
				Msg("glpk finished past the solve deadline")
		}
	}()

	lp := glpk.New()
	defer lp.Delete()
	lp.SetProbName(m.Name)
	lp.SetObjDir(glpk.ObjDir(glpk.MIN))

	vars := m.Variables()
	if len(vars) > 0 {
		lp.AddCols(len(vars))
	}
	for j, v := range vars {
		col := j + 1
		lp.SetColName(col, v.Name)
		switch v.Kind {
		case milp.Binary:
			lp.SetColKind(col, glpk.VarType(glpk.BV))
		case milp.Integer:
			lp.SetColKind(col, glpk.VarType(glpk.IV))
		}
		if v.Kind != milp.Binary {
			switch {
			case math.IsInf(v.Upper, 1):
				lp.SetColBnds(col, glpk.BndsType(glpk.LO), v.Lower, 0)
			case v.Upper == v.Lower:
				lp.SetColBnds(col, glpk.BndsType(glpk.FX), v.Lower, v.Upper)
			default:
				lp.SetColBnds(col, glpk.BndsType(glpk.DB), v.Lower, v.Upper)
			}
		}
		lp.SetObjCoef(col, v.Cost)
	}

	rows := m.Constraints()
	if len(rows) > 0 {
		lp.AddRows(len(rows))
	}
	for i, r := range rows {
		row := i + 1
		lp.SetRowName(row, r.Name)
		switch r.Sense {
		case milp.LessEq:
			lp.SetRowBnds(row, glpk.BndsType(glpk.UP), 0, r.RHS)
		case milp.GreaterEq:
			lp.SetRowBnds(row, glpk.BndsType(glpk.LO), r.RHS, 0)
		default:
			lp.SetRowBnds(row, glpk.BndsType(glpk.FX), r.RHS, r.RHS)
		}
		// Element 0 of both slices is ignored by GLPK.
		ind := make([]int32, len(r.Terms)+1)
		val := make([]float64, len(r.Terms)+1)
		for k, t := range r.Terms {
			ind[k+1] = int32(t.Var) + 1
			val[k+1] = t.Coef
		}
		lp.SetMatRow(row, ind, val)
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(p.Presolve)
	smcp := glpk.NewSmcp()
	if p.Verbose {
		iocp.SetMsgLev(glpk.MsgLev(glpk.MSG_ALL))
		smcp.SetMsgLev(glpk.MsgLev(glpk.MSG_ALL))
	} else {
		iocp.SetMsgLev(glpk.MsgLev(glpk.MSG_ERR))
		smcp.SetMsgLev(glpk.MsgLev(glpk.MSG_ERR))
	}

	if !p.Presolve {
		if err := lp.Simplex(smcp); err != nil {
			return nil, fmt.Errorf("glpk simplex: %w", err)
		}
	}

	if err := lp.Intopt(iocp); err != nil {
		switch err {
		case glpk.ENOPFS:
			return &milp.Result{Status: milp.StatusInfeasible, Bound: math.Inf(-1)}, nil
		case glpk.ENODFS:
			return &milp.Result{Status: milp.StatusUnbounded, Bound: math.Inf(-1)}, nil
		}
		return nil, fmt.Errorf("glpk intopt: %w", err)
	}

	res := &milp.Result{Bound: math.Inf(-1)}
	switch lp.MipStatus() {
	case glpk.OPT:
		res.Status = milp.StatusOptimal
	case glpk.FEAS:
		res.Status = milp.StatusFeasible
	case glpk.NOFEAS:
		res.Status = milp.StatusInfeasible
		return res, nil
	default:
		res.Status = milp.StatusNoSolution
		return res, nil
	}

	res.Values = make([]float64, len(vars))
	for j := range vars {
		res.Values[j] = lp.MipColVal(j + 1)
	}
	res.Objective = lp.MipObjVal()
	if res.Status == milp.StatusOptimal {
		res.Bound = res.Objective
	}
	return res, nil
}
