// Package milp holds a solver-neutral mixed-integer linear program: variables
// with bounds and kinds, linear constraints tagged with a family name, and a
// minimization objective. Backends in internal/solver translate it into their
// own representation.
package milp

import (
	"fmt"
	"math"
	"sort"
)

// VarKind is the domain of a decision variable.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return "continuous"
	}
}

// Var indexes a variable inside its Model.
type Var int

// Variable is a decision variable. Upper is +Inf when unbounded above.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
	Cost  float64
}

// IsIntegral reports whether the variable must take an integer value.
func (v Variable) IsIntegral() bool {
	return v.Kind == Integer || v.Kind == Binary
}

// Sense is the relation of a constraint row to its right-hand side.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	default:
		return "<="
	}
}

// Term is one coefficient of a linear expression.
type Term struct {
	Var  Var
	Coef float64
}

// Constraint is a linear row: sum(Terms) Sense RHS.
type Constraint struct {
	Name   string
	Family string
	Terms  []Term
	Sense  Sense
	RHS    float64
}

// Model is a minimization MILP.
type Model struct {
	Name string

	vars []Variable
	rows []Constraint
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVariable appends a variable and returns its index. Binary variables are
// clamped to [0, 1].
func (m *Model) AddVariable(name string, kind VarKind, lower, upper, cost float64) Var {
	if kind == Binary {
		lower = math.Max(lower, 0)
		upper = math.Min(upper, 1)
	}
	m.vars = append(m.vars, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper, Cost: cost})
	return Var(len(m.vars) - 1)
}

// AddConstraint appends a row. Zero coefficients are dropped and repeated
// variables are merged so backends always see a clean sparse row.
func (m *Model) AddConstraint(family, name string, sense Sense, rhs float64, terms ...Term) int {
	merged := make(map[Var]float64, len(terms))
	order := make([]Var, 0, len(terms))
	for _, t := range terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			panic(fmt.Sprintf("milp: constraint %s references unknown variable %d", name, t.Var))
		}
		if _, seen := merged[t.Var]; !seen {
			order = append(order, t.Var)
		}
		merged[t.Var] += t.Coef
	}

	clean := make([]Term, 0, len(order))
	for _, v := range order {
		if c := merged[v]; c != 0 {
			clean = append(clean, Term{Var: v, Coef: c})
		}
	}

	m.rows = append(m.rows, Constraint{Name: name, Family: family, Terms: clean, Sense: sense, RHS: rhs})
	return len(m.rows) - 1
}

// NumVariables returns the number of variables.
func (m *Model) NumVariables() int { return len(m.vars) }

// NumConstraints returns the number of rows.
func (m *Model) NumConstraints() int { return len(m.rows) }

// Variable returns the variable at index v.
func (m *Model) Variable(v Var) Variable { return m.vars[v] }

// Variables returns the variables. Callers must not modify the slice.
func (m *Model) Variables() []Variable { return m.vars }

// Constraints returns the rows. Callers must not modify the slice.
func (m *Model) Constraints() []Constraint { return m.rows }

// Families returns the sorted distinct constraint family names.
func (m *Model) Families() []string {
	seen := make(map[string]struct{})
	for _, r := range m.rows {
		seen[r.Family] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// CountByKind returns how many variables of each kind the model holds.
func (m *Model) CountByKind() map[VarKind]int {
	out := make(map[VarKind]int, 3)
	for _, v := range m.vars {
		out[v.Kind]++
	}
	return out
}

// Objective evaluates the objective at values.
func (m *Model) Objective(values []float64) float64 {
	var sum float64
	for i, v := range m.vars {
		if v.Cost != 0 {
			sum += v.Cost * values[i]
		}
	}
	return sum
}

// Activity evaluates the left-hand side of row r at values.
func (m *Model) Activity(r int, values []float64) float64 {
	var sum float64
	for _, t := range m.rows[r].Terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Violations lists every bound, integrality or row violation larger than tol.
// An empty result means values is a feasible point of the model.
func (m *Model) Violations(values []float64, tol float64) []string {
	var out []string
	if len(values) != len(m.vars) {
		return []string{fmt.Sprintf("expected %d values, got %d", len(m.vars), len(values))}
	}

	for i, v := range m.vars {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			out = append(out, fmt.Sprintf("%s=%g outside [%g, %g]", v.Name, x, v.Lower, v.Upper))
		}
		if v.IsIntegral() && math.Abs(x-math.Round(x)) > tol {
			out = append(out, fmt.Sprintf("%s=%g is not integral", v.Name, x))
		}
	}

	for r, row := range m.rows {
		lhs := m.Activity(r, values)
		// Scale the tolerance with the row magnitude.
		scale := math.Max(1, math.Abs(row.RHS))
		var bad bool
		switch row.Sense {
		case LessEq:
			bad = lhs > row.RHS+tol*scale
		case GreaterEq:
			bad = lhs < row.RHS-tol*scale
		case Equal:
			bad = math.Abs(lhs-row.RHS) > tol*scale
		}
		if bad {
			out = append(out, fmt.Sprintf("%s [%s]: %g %s %g", row.Name, row.Family, lhs, row.Sense, row.RHS))
		}
	}
	return out
}
