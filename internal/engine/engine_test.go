package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/netplan/internal/builder"
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/solver"
)

func nearlyEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func newTestEngine() *Engine {
	cfg := DefaultConfig()
	cfg.Solver.TimeLimit = 30 * time.Second
	return New(solver.NewDispatcher(nil, nil), cfg, nil)
}

func exact() *solver.Options {
	return &solver.Options{SolverName: solver.NameBnB, TimeLimit: 30 * time.Second, MIPGap: 0}
}

// One plant, one customer, one truck lane.
func minimalNetwork() *domain.Input {
	return &domain.Input{
		Plants: []domain.Record{
			{"plant_id": "P1", "period": "1", "max_capacity": 100.0, "variable_cost": 10.0},
		},
		Routes: []domain.Record{
			{"origin_plant_id": "P1", "destination_node_id": "C1", "mode": "truck",
				"variable_cost": 1.0, "vehicle_capacity": 50.0, "fixed_trip_cost": 5.0, "min_batch_quantity": 0.0},
		},
		Demand: []domain.Record{
			{"node_id": "C1", "period": "1", "quantity": 80.0},
		},
	}
}

func regionalNetwork() *domain.Input {
	return &domain.Input{
		Plants: []domain.Record{
			{"plant_id": "P1", "period": "2024-01", "max_capacity": 100.0, "variable_cost": 10.0, "holding_cost": 0.2},
			{"plant_id": "P1", "period": "2024-02", "max_capacity": 100.0, "variable_cost": 10.0, "holding_cost": 0.2},
			{"plant_id": "P2", "period": "2024-01", "max_capacity": 60.0, "variable_cost": 12.0, "holding_cost": 0.2, "safety_stock": 5.0},
			{"plant_id": "P2", "period": "2024-02", "max_capacity": 60.0, "variable_cost": 12.0, "holding_cost": 0.2, "safety_stock": 5.0},
		},
		Routes: []domain.Record{
			{"origin_plant_id": "P1", "destination_node_id": "C1", "mode": "truck", "variable_cost": 1.0, "vehicle_capacity": 40.0, "fixed_trip_cost": 20.0},
			{"origin_plant_id": "P1", "destination_node_id": "C2", "mode": "rail", "variable_cost": 0.5, "vehicle_capacity": 100.0, "fixed_trip_cost": 50.0, "min_batch_quantity": 50.0},
			{"origin_plant_id": "P2", "destination_node_id": "C2", "mode": "truck", "variable_cost": 1.0, "vehicle_capacity": 30.0, "fixed_trip_cost": 10.0},
			{"origin_plant_id": "P2", "destination_node_id": "C1", "mode": "truck", "variable_cost": 2.0, "vehicle_capacity": 30.0, "fixed_trip_cost": 10.0},
		},
		Demand: []domain.Record{
			{"node_id": "C1", "period": "2024-01", "quantity": 70.0},
			{"node_id": "C1", "period": "2024-02", "quantity": 50.0},
			{"node_id": "C2", "period": "2024-01", "quantity": 40.0},
			{"node_id": "C2", "period": "2024-02", "quantity": 90.0},
		},
		InitialInventory: []domain.Record{
			{"plant_id": "P2", "quantity": 5.0},
		},
	}
}

func TestRunMinimalNetwork(t *testing.T) {
	res, err := newTestEngine().Run(context.Background(), Request{RunID: "minimal", Input: minimalNetwork(), Options: exact()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != domain.StatusOptimal {
		t.Fatalf("status = %s", res.Status)
	}
	if res.ObjectiveValue == nil || !nearlyEqual(*res.ObjectiveValue, 890, 1e-6) {
		t.Fatalf("objective = %v, want 890", res.ObjectiveValue)
	}
	if got := res.ProductionPlan[0].Quantity; got != 80 {
		t.Fatalf("production = %g, want 80", got)
	}
	if got := res.ShipmentPlan[0].Quantity; got != 80 {
		t.Fatalf("shipment = %g, want 80", got)
	}
	if got := res.TripPlan[0].Trips; got != 2 {
		t.Fatalf("trips = %d, want 2", got)
	}
	want := map[string]float64{"production": 800, "transport": 80, "fixed_trip": 10, "total": 890}
	got := map[string]float64{
		"production": res.CostBreakdown.Production,
		"transport":  res.CostBreakdown.Transport,
		"fixed_trip": res.CostBreakdown.FixedTrip,
		"total":      res.CostBreakdown.Total,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("%s cost = %g, want %g", k, got[k], w)
		}
	}
	if res.KPI == nil || res.KPI.ServiceLevel != 1 || res.KPI.Utilization["P1"] != 0.8 {
		t.Fatalf("kpi = %+v", res.KPI)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("violations = %v", res.Violations)
	}
	if res.RunID != "minimal" || res.Solver != solver.NameBnB {
		t.Fatalf("run id %s solver %s", res.RunID, res.Solver)
	}
}

func TestRunInfeasibleBySafetyStock(t *testing.T) {
	in := minimalNetwork()
	in.Plants[0]["max_capacity"] = 50.0
	in.Plants[0]["safety_stock"] = 60.0
	in.Demand[0]["quantity"] = 10.0

	res, err := newTestEngine().Run(context.Background(), Request{Input: in, Options: exact()})
	var infeasible *domain.ModelInfeasibleError
	if !errors.As(err, &infeasible) {
		t.Fatalf("err = %v, want ModelInfeasibleError", err)
	}
	if res == nil || res.Status != domain.StatusInfeasible {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(strings.Join(infeasible.Families, ","), builder.FamilySafetyStock) {
		t.Fatalf("families = %v", infeasible.Families)
	}
	if res.ObjectiveValue != nil || res.KPI != nil || len(res.ProductionPlan) != 0 {
		t.Fatal("infeasible run must not carry a plan")
	}
	if res.Error == "" || res.RunID == "" {
		t.Fatalf("error %q run id %q", res.Error, res.RunID)
	}
}

func TestRunMinBatchBlocksSmallShipment(t *testing.T) {
	in := minimalNetwork()
	in.Routes[0]["min_batch_quantity"] = 100.0
	in.Demand[0]["quantity"] = 30.0

	res, err := newTestEngine().Run(context.Background(), Request{Input: in, Options: exact()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := res.ShipmentPlan[0].Quantity; got != 0 {
		t.Fatalf("shipment = %g, want 0", got)
	}
	if got := res.DemandFulfillment[0].Unmet; got != 30 {
		t.Fatalf("unmet = %g, want 30", got)
	}
	if res.CostBreakdown.Penalty <= 0 {
		t.Fatalf("penalty cost = %g, want > 0", res.CostBreakdown.Penalty)
	}
	if !res.KPI.SBQCompliance["P1|C1|truck"] {
		t.Fatal("idle route must be compliant")
	}
}

func TestRunRegionalNetworkInvariants(t *testing.T) {
	res, err := newTestEngine().Run(context.Background(), Request{Input: regionalNetwork()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Status.HasSolution() {
		t.Fatalf("status = %s", res.Status)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("violations = %v", res.Violations)
	}
	if res.KPI.ServiceLevel != 1 {
		t.Fatalf("service level = %g", res.KPI.ServiceLevel)
	}

	for _, l := range res.InventoryProfile {
		if !nearlyEqual(l.Opening+l.Production-l.Outbound, l.Closing, 1e-5) {
			t.Errorf("conservation broken: %+v", l)
		}
		if l.Closing < l.SafetyStock-1e-6 {
			t.Errorf("safety stock broken: %+v", l)
		}
	}
	for _, l := range res.ShipmentPlan {
		if l.Quantity > 1e-6 && l.Quantity < l.MinBatch-1e-6 {
			t.Errorf("min batch broken: %+v", l)
		}
	}
	for _, l := range res.TripPlan {
		if l.Shipment > float64(l.Trips)*l.VehicleCapacity+1e-6 {
			t.Errorf("trip capacity broken: %+v", l)
		}
	}
	for route, ok := range res.KPI.SBQCompliance {
		if !ok {
			t.Errorf("route %s not compliant", route)
		}
	}
	if got := res.KPI.SafetyStockCompliance["P2"]; !got {
		t.Error("P2 safety stock not compliant")
	}
	if res.Status == domain.StatusOptimal && (res.MIPGap == nil || *res.MIPGap > solver.DefaultMIPGap+1e-9) {
		t.Fatalf("optimal run with gap %v", res.MIPGap)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	e := newTestEngine()
	var first []byte
	for i := 0; i < 3; i++ {
		res, err := e.Run(context.Background(), Request{RunID: "same", Input: regionalNetwork(), Options: exact()})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		res.SolveTimeSeconds = 0
		raw, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if first == nil {
			first = raw
			continue
		}
		if !bytes.Equal(first, raw) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, raw)
		}
	}
}

func TestRunFallsBackForUnknownSolver(t *testing.T) {
	opts := exact()
	opts.SolverName = solver.NameGurobi

	res, err := newTestEngine().Run(context.Background(), Request{Input: minimalNetwork(), Options: opts})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Solver != solver.NameBnB || res.RequestedSolver != solver.NameGurobi {
		t.Fatalf("solver %s requested %s", res.Solver, res.RequestedSolver)
	}
	var fallback bool
	for _, w := range res.Warnings {
		if strings.Contains(w, "falling back") {
			fallback = true
		}
	}
	if !fallback {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestRunDataEmpty(t *testing.T) {
	in := minimalNetwork()
	in.Demand = nil

	res, err := newTestEngine().Run(context.Background(), Request{Input: in})
	var empty *domain.DataEmptyError
	if !errors.As(err, &empty) || res != nil {
		t.Fatalf("res = %v err = %v, want DataEmptyError", res, err)
	}
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	opts := exact()
	opts.MIPGap = 1.5
	_, err := newTestEngine().Run(context.Background(), Request{Input: minimalNetwork(), Options: opts})
	var oe *solver.OptionsError
	if !errors.As(err, &oe) {
		t.Fatalf("err = %v, want OptionsError", err)
	}
}

func TestRunGeneratesRunID(t *testing.T) {
	e := newTestEngine()
	a, err := e.Run(context.Background(), Request{Input: minimalNetwork()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := e.Run(context.Background(), Request{Input: minimalNetwork()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.RunID == "" || a.RunID == b.RunID {
		t.Fatalf("run ids %q %q", a.RunID, b.RunID)
	}
}

func TestRunScenarios(t *testing.T) {
	infeasible := minimalNetwork()
	infeasible.Plants[0]["safety_stock"] = 500.0

	reqs := []Request{
		{RunID: "a", Input: minimalNetwork(), Options: exact()},
		{RunID: "b", Input: infeasible, Options: exact()},
		{RunID: "c", Input: regionalNetwork()},
		{RunID: "d", Input: &domain.Input{}},
	}
	results := newTestEngine().RunScenarios(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.RunID != reqs[i].RunID {
			t.Fatalf("result %d run id %s, want %s", i, r.RunID, reqs[i].RunID)
		}
	}
	if results[0].Err != nil || results[0].Result.Status != domain.StatusOptimal {
		t.Fatalf("scenario a: %+v", results[0])
	}
	if results[1].Err == nil || results[1].Result.Status != domain.StatusInfeasible {
		t.Fatalf("scenario b: %+v", results[1])
	}
	if results[2].Err != nil {
		t.Fatalf("scenario c: %v", results[2].Err)
	}
	var empty *domain.DataEmptyError
	if !errors.As(results[3].Err, &empty) {
		t.Fatalf("scenario d: %v", results[3].Err)
	}
}

func TestRunScenariosCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := newTestEngine().RunScenarios(ctx, []Request{{RunID: "x", Input: minimalNetwork()}})
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("err = %v", results[0].Err)
	}
}

func TestFingerprint(t *testing.T) {
	e := newTestEngine()
	a, err := e.Fingerprint(Request{Input: minimalNetwork()})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	b, _ := e.Fingerprint(Request{RunID: "other", Input: minimalNetwork()})
	if a != b {
		t.Fatal("run id must not change the fingerprint")
	}

	changed := minimalNetwork()
	changed.Demand[0]["quantity"] = 81.0
	c, _ := e.Fingerprint(Request{Input: changed})
	d, _ := e.Fingerprint(Request{Input: minimalNetwork(), Options: exact()})
	if a == c || a == d {
		t.Fatal("input and options must change the fingerprint")
	}
	if len(a) != 40 {
		t.Fatalf("fingerprint %q is not a sha1 hex digest", a)
	}
}

func TestResultPlanRoundTrip(t *testing.T) {
	res, err := newTestEngine().Run(context.Background(), Request{Input: minimalNetwork(), Options: exact()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	plan := res.Plan()
	if plan == nil || len(plan.Audit()) != 0 {
		t.Fatalf("plan = %+v", plan)
	}
	cp := res.WithRunID("copy")
	if cp.RunID != "copy" || res.RunID == "copy" || *cp.ObjectiveValue != *res.ObjectiveValue {
		t.Fatal("WithRunID must copy without touching the original")
	}
}
