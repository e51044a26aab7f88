package extract

import (
	"math"
	"strings"
	"testing"

	"github.com/andresuchdata/netplan/internal/builder"
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/milp"
	"github.com/andresuchdata/netplan/internal/solver"
)

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func minimalModel(t *testing.T) *builder.PlanningModel {
	t.Helper()
	in := &domain.Input{
		Plants: []domain.Record{
			{"plant_id": "P1", "period": "1", "max_capacity": 100.0, "variable_cost": 10.0, "holding_cost": 0.5},
			{"plant_id": "P1", "period": "2", "max_capacity": 100.0, "variable_cost": 10.0, "holding_cost": 0.5},
		},
		Routes: []domain.Record{
			{"origin_plant_id": "P1", "destination_node_id": "C1", "mode": "truck",
				"variable_cost": 1.0, "vehicle_capacity": 50.0, "fixed_trip_cost": 5.0},
		},
		Demand: []domain.Record{
			{"node_id": "C1", "period": "1", "quantity": 80.0},
			{"node_id": "C1", "period": "2", "quantity": 20.0},
		},
		InitialInventory: []domain.Record{{"plant_id": "P1", "quantity": 10.0}},
	}
	pm, err := builder.Build(in, builder.Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return pm
}

// solved returns an outcome for a plan that produces 95 in period 1, keeps
// 25 in stock and ships 80 and 20, leaving 5 units of closing stock.
func solved(pm *builder.PlanningModel) *solver.Outcome {
	values := make([]float64, pm.Model.NumVariables())
	set := func(v milp.Var, x float64) { values[v] = x }

	p1 := builder.PlantPeriod{Plant: "P1", Period: "1"}
	p2 := builder.PlantPeriod{Plant: "P1", Period: "2"}
	r1 := builder.RoutePeriod{Route: 0, Period: "1"}
	r2 := builder.RoutePeriod{Route: 0, Period: "2"}

	set(pm.Production[p1], 94.99999999)
	set(pm.Inventory[p1], 25.0000001)
	set(pm.Production[p2], 0)
	set(pm.Inventory[p2], 5)
	set(pm.Shipment[r1], 80)
	set(pm.Trips[r1], 1.9999999)
	set(pm.ModeActive[r1], 1)
	set(pm.Shipment[r2], 20)
	set(pm.Trips[r2], 1)
	set(pm.ModeActive[r2], 0.9999999)

	obj := 0.0
	return &solver.Outcome{
		Status:    domain.StatusOptimal,
		Solver:    solver.NameBnB,
		Values:    values,
		Objective: &obj,
	}
}

func TestExtractPlan(t *testing.T) {
	pm := minimalModel(t)
	plan, err := Extract(pm, solved(pm))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(plan.Production) != 2 || plan.Production[0].Quantity != 95 || plan.Production[0].Capacity != 100 {
		t.Fatalf("production = %+v", plan.Production)
	}
	if len(plan.Shipments) != 2 || !plan.Shipments[0].Active || plan.Shipments[0].RouteKey != "P1|C1|truck" {
		t.Fatalf("shipments = %+v", plan.Shipments)
	}
	if plan.Trips[0].Trips != 2 || !nearlyEqual(plan.Trips[0].Utilization, 0.8) {
		t.Fatalf("trip line = %+v", plan.Trips[0])
	}
	if !nearlyEqual(plan.Trips[1].Utilization, 0.4) {
		t.Fatalf("trip line = %+v", plan.Trips[1])
	}

	inv := plan.Inventory
	if inv[0].Opening != 10 || inv[0].Closing != 25 || inv[0].Outbound != 80 {
		t.Fatalf("inventory period 1 = %+v", inv[0])
	}
	if inv[1].Opening != 25 || inv[1].Closing != 5 || inv[1].Breach {
		t.Fatalf("inventory period 2 = %+v", inv[1])
	}

	if f := plan.Fulfillment[0]; f.Delivered != 80 || f.Unmet != 0 || f.Demand != 80 {
		t.Fatalf("fulfillment = %+v", f)
	}

	want := CostBreakdown{
		Production: 950,
		Transport:  100,
		FixedTrip:  15,
		Holding:    15,
		Penalty:    0,
		Total:      1080,
	}
	if plan.Costs != want {
		t.Fatalf("costs = %+v, want %+v", plan.Costs, want)
	}

	if v := plan.Audit(); len(v) != 0 {
		t.Fatalf("audit = %v", v)
	}
}

func TestExtractIdleRoute(t *testing.T) {
	pm := minimalModel(t)
	out := solved(pm)
	r2 := builder.RoutePeriod{Route: 0, Period: "2"}
	out.Values[pm.Shipment[r2]] = 0
	out.Values[pm.Trips[r2]] = 0
	out.Values[pm.Unmet[builder.NodePeriod{Node: "C1", Period: "2"}]] = 20
	out.Values[pm.Inventory[builder.PlantPeriod{Plant: "P1", Period: "2"}]] = 25

	plan, err := Extract(pm, out)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if plan.Shipments[1].Active {
		t.Fatal("route without shipment reported active")
	}
	if plan.Trips[1].Utilization != 0 || plan.Trips[1].Trips != 0 {
		t.Fatalf("idle trip line = %+v", plan.Trips[1])
	}
	if plan.Costs.Penalty != 20*pm.Penalty[builder.NodePeriod{Node: "C1", Period: "2"}] {
		t.Fatalf("penalty = %g", plan.Costs.Penalty)
	}
	if v := plan.Audit(); len(v) != 0 {
		t.Fatalf("audit = %v", v)
	}
}

func TestExtractRequiresSolution(t *testing.T) {
	pm := minimalModel(t)
	for _, status := range []domain.SolveStatus{
		domain.StatusInfeasible,
		domain.StatusUnbounded,
		domain.StatusTimeoutNoSolution,
		domain.StatusSolverUnavailable,
	} {
		if _, err := Extract(pm, &solver.Outcome{Status: status}); err == nil {
			t.Errorf("status %s: expected error", status)
		}
	}

	out := solved(pm)
	out.Values = out.Values[:3]
	if _, err := Extract(pm, out); err == nil {
		t.Fatal("expected error for short value vector")
	}
}

func TestAuditReportsViolations(t *testing.T) {
	plan := &Plan{
		Production: []ProductionLine{{Plant: "P1", Period: "1", Quantity: 120, Capacity: 100}},
		Inventory: []InventoryLine{
			{Plant: "P1", Period: "1", Opening: 0, Production: 120, Outbound: 100, Closing: 30, SafetyStock: 40, Breach: true},
		},
		Shipments: []ShipmentLine{{RouteKey: "P1|C1|truck", Period: "1", Quantity: 30, MinBatch: 100}},
		Trips:     []TripLine{{RouteKey: "P1|C1|truck", Period: "1", Trips: 1, Shipment: 60, VehicleCapacity: 50}},
		Fulfillment: []FulfillmentLine{
			{Node: "C1", Period: "1", Demand: 100, Delivered: 60, Unmet: 30},
		},
	}

	got := plan.Audit()
	wants := []string{"exceeds capacity", "not conserved", "below safety stock", "below minimum batch", "exceeds 1 trips", "delivered 60"}
	if len(got) != len(wants) {
		t.Fatalf("audit = %v", got)
	}
	for i, want := range wants {
		if !strings.Contains(got[i], want) {
			t.Errorf("violation %d = %q, want %q", i, got[i], want)
		}
	}
}
