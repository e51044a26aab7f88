package milp

import (
	"math"
	"testing"
)

func TestAddConstraintMergesTerms(t *testing.T) {
	m := NewModel("merge")
	x := m.AddVariable("x", Continuous, 0, math.Inf(1), 1)
	y := m.AddVariable("y", Continuous, 0, math.Inf(1), 1)

	r := m.AddConstraint("cap", "cap[0]", LessEq, 10, Term{x, 1}, Term{y, 2}, Term{x, 3}, Term{y, -2})
	row := m.Constraints()[r]
	if len(row.Terms) != 1 {
		t.Fatalf("expected 1 term after merge, got %d: %+v", len(row.Terms), row.Terms)
	}
	if row.Terms[0].Var != x || row.Terms[0].Coef != 4 {
		t.Fatalf("unexpected merged term %+v", row.Terms[0])
	}
}

func TestAddConstraintUnknownVariablePanics(t *testing.T) {
	m := NewModel("panic")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown variable")
		}
	}()
	m.AddConstraint("f", "r", Equal, 0, Term{Var(3), 1})
}

func TestBinaryBoundsAreClamped(t *testing.T) {
	m := NewModel("bin")
	b := m.AddVariable("b", Binary, -5, 10, 0)
	v := m.Variable(b)
	if v.Lower != 0 || v.Upper != 1 {
		t.Fatalf("binary bounds = [%g, %g], want [0, 1]", v.Lower, v.Upper)
	}
	if !v.IsIntegral() {
		t.Fatal("binary must be integral")
	}
}

func TestFamiliesAndCounts(t *testing.T) {
	m := NewModel("fam")
	x := m.AddVariable("x", Continuous, 0, math.Inf(1), 0)
	n := m.AddVariable("n", Integer, 0, math.Inf(1), 0)
	m.AddVariable("a", Binary, 0, 1, 0)
	m.AddConstraint("trip_capacity", "t", LessEq, 0, Term{x, 1}, Term{n, -10})
	m.AddConstraint("capacity", "c", LessEq, 5, Term{x, 1})
	m.AddConstraint("capacity", "c2", LessEq, 5, Term{x, 1})

	fams := m.Families()
	if len(fams) != 2 || fams[0] != "capacity" || fams[1] != "trip_capacity" {
		t.Fatalf("families = %v", fams)
	}
	counts := m.CountByKind()
	if counts[Continuous] != 1 || counts[Integer] != 1 || counts[Binary] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestViolations(t *testing.T) {
	m := NewModel("viol")
	x := m.AddVariable("x", Continuous, 0, 10, 2)
	n := m.AddVariable("n", Integer, 0, math.Inf(1), 1)
	m.AddConstraint("link", "link", LessEq, 0, Term{x, 1}, Term{n, -4})
	m.AddConstraint("demand", "demand", Equal, 6, Term{x, 1})

	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{"feasible", []float64{6, 2}, 0},
		{"fractional", []float64{6, 1.5}, 1},
		{"row broken", []float64{6, 1}, 1},
		{"bound and equality", []float64{11, 3}, 2},
		{"wrong length", []float64{1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Violations(tt.values, 1e-6)
			if len(got) != tt.want {
				t.Fatalf("violations = %v, want %d", got, tt.want)
			}
		})
	}

	if obj := m.Objective([]float64{6, 2}); obj != 14 {
		t.Fatalf("objective = %g, want 14", obj)
	}
}

func TestResultGap(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want float64
	}{
		{"closed", Result{Status: StatusOptimal, Values: []float64{1}, Objective: 100, Bound: 100}, 0},
		{"open", Result{Status: StatusFeasible, Values: []float64{1}, Objective: 100, Bound: 90}, 0.1},
		{"no solution", Result{Status: StatusNoSolution, Bound: 90}, math.Inf(1)},
		{"infinite bound", Result{Status: StatusFeasible, Values: []float64{1}, Objective: 100, Bound: math.Inf(-1)}, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.res.Gap()
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Fatalf("gap = %g, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("gap = %g, want %g", got, tt.want)
			}
		})
	}
}
