package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/urfave/cli/v2"
)

func TestScenarioID(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		path string
		i    int
		want string
	}{
		{"data/north.xlsx", 0, "north-1-20260301T083000"},
		{"data/south/", 1, "south-2-20260301T083000"},
		{"scenario.json", 2, "scenario-3-20260301T083000"},
	}
	for _, tt := range tests {
		if got := scenarioID(tt.path, tt.i, started); got != tt.want {
			t.Errorf("scenarioID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestWriteArtifacts(t *testing.T) {
	in := &domain.Input{
		Plants: []domain.Record{{"plant_id": "P1", "period": "1", "max_capacity": 100.0, "variable_cost": 10.0}},
		Routes: []domain.Record{{"origin_plant_id": "P1", "destination_node_id": "C1", "mode": "truck", "variable_cost": 1.0, "vehicle_capacity": 50.0, "fixed_trip_cost": 5.0}},
		Demand: []domain.Record{{"node_id": "C1", "period": "1", "quantity": 80.0}},
	}
	eng := engine.New(nil, engine.DefaultConfig(), nil)
	res, err := eng.Run(context.Background(), engine.Request{
		RunID:   "cli",
		Input:   in,
		Options: &solver.Options{SolverName: solver.NameBnB, TimeLimit: 30 * time.Second},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	if err := writeArtifacts(dir, res); err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}
	for _, name := range []string{"result.json", "summary.csv", "production_plan.csv", "shipment_plan.csv", "trip_plan.csv", "inventory_profile.csv", "demand_fulfillment.csv", "plan.xlsx"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 {
			t.Errorf("%s missing or empty: %v", name, err)
		}
	}

	var buf bytes.Buffer
	printSummary(&buf, res)
	if !strings.Contains(buf.String(), "objective_value") || !strings.Contains(buf.String(), "890") {
		t.Fatalf("summary = %q", buf.String())
	}
}

func TestSolveRequiresInput(t *testing.T) {
	app := newApp()
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	if err := app.Run([]string{"planner", "solve"}); err == nil {
		t.Fatal("solve without INPUT must fail")
	}
}

func TestNoPlanExit(t *testing.T) {
	timeout := noPlanExit(domain.NewSolverTimeoutError(solver.NameBnB, time.Second, 0))
	if timeout.ExitCode() != exitNoPlan || !strings.Contains(timeout.Error(), "--time-limit") {
		t.Fatalf("timeout exit = %d %q", timeout.ExitCode(), timeout.Error())
	}

	infeasible := noPlanExit(domain.NewModelInfeasibleError([]string{"capacity"}))
	if infeasible.ExitCode() != exitNoPlan || strings.Contains(infeasible.Error(), "retry") {
		t.Fatalf("infeasible exit = %d %q", infeasible.ExitCode(), infeasible.Error())
	}
}

func TestSolverFlagListsCompiledBackends(t *testing.T) {
	for _, f := range solverFlags() {
		sf, ok := f.(*cli.StringFlag)
		if !ok || sf.Name != "solver" {
			continue
		}
		if !strings.Contains(sf.Usage, solver.NameBnB) {
			t.Fatalf("usage = %q", sf.Usage)
		}
		return
	}
	t.Fatal("no solver flag")
}

func TestCacheFlushWithCacheDisabled(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	if err := app.Run([]string{"planner", "cache", "flush"}); err != nil {
		t.Fatalf("cache flush: %v", err)
	}
	if !strings.Contains(out.String(), "nothing to flush") {
		t.Fatalf("output = %q", out.String())
	}
}
