package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/solver"
)

// threePlantNetwork has 3 plants, 5 customers and 3 periods with a truck and
// a rail lane (minimum batch 60) on every plant/customer pair: 303 variables
// and 267 rows once built.
func threePlantNetwork() *domain.Input {
	plants := []string{"P1", "P2", "P3"}
	nodes := []string{"C1", "C2", "C3", "C4", "C5"}
	periods := []string{"2024-01", "2024-02", "2024-03"}
	prodCost := []float64{10, 11, 12}
	distance := [][]float64{
		{1, 2.5, 3.4, 1.5, 4},
		{3, 1, 2.2, 4, 2.8},
		{4, 3, 1, 2, 1.5},
	}
	demand := [][]float64{
		{40, 80, 120},
		{80, 45, 120},
		{120, 80, 40},
		{70, 120, 80},
		{40, 40, 160},
	}

	in := &domain.Input{}
	for p, plant := range plants {
		for _, period := range periods {
			in.Plants = append(in.Plants, domain.Record{
				"plant_id": plant, "period": period, "max_capacity": 600.0,
				"variable_cost": prodCost[p], "holding_cost": 0.5, "safety_stock": 20.0,
			})
		}
		in.InitialInventory = append(in.InitialInventory, domain.Record{"plant_id": plant, "quantity": 20.0})
		for n, node := range nodes {
			in.Routes = append(in.Routes,
				domain.Record{"origin_plant_id": plant, "destination_node_id": node, "mode": "truck",
					"variable_cost": distance[p][n], "vehicle_capacity": 40.0, "fixed_trip_cost": 30.0},
				domain.Record{"origin_plant_id": plant, "destination_node_id": node, "mode": "rail",
					"variable_cost": distance[p][n] / 2, "vehicle_capacity": 120.0, "fixed_trip_cost": 80.0,
					"min_batch_quantity": 60.0},
			)
		}
	}
	for n, node := range nodes {
		for t, period := range periods {
			in.Demand = append(in.Demand, domain.Record{"node_id": node, "period": period, "quantity": demand[n][t]})
		}
	}
	return in
}

func TestRunThreePlantNetworkReachesOptimal(t *testing.T) {
	opts := &solver.Options{SolverName: solver.NameBnB, TimeLimit: 60 * time.Second, MIPGap: solver.DefaultMIPGap}

	start := time.Now()
	res, err := newTestEngine().Run(context.Background(), Request{RunID: "three-plant", Input: threePlantNetwork(), Options: opts})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != domain.StatusOptimal {
		t.Fatalf("status = %s after %d nodes in %s", res.Status, res.Nodes, elapsed)
	}
	if elapsed > 30*time.Second {
		t.Fatalf("solve took %s (%d nodes)", elapsed, res.Nodes)
	}
	if res.MIPGap == nil || *res.MIPGap > solver.DefaultMIPGap+1e-9 {
		t.Fatalf("gap = %v", res.MIPGap)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("violations = %v", res.Violations)
	}
	if res.KPI.ServiceLevel != 1 {
		t.Fatalf("service level = %g", res.KPI.ServiceLevel)
	}
	for _, l := range res.ShipmentPlan {
		if l.Mode == "rail" && l.Quantity > 1e-6 && l.Quantity < 60-1e-6 {
			t.Errorf("rail shipment below minimum batch: %+v", l)
		}
	}
}

func TestResultJSONPlanKeys(t *testing.T) {
	res, err := newTestEngine().Run(context.Background(), Request{Input: minimalNetwork(), Options: exact()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string][]string{
		"production_plan":   {"plant_id", "period", "quantity"},
		"shipment_plan":     {"origin", "destination", "mode", "period", "quantity"},
		"trip_plan":         {"route", "period", "trips", "utilization"},
		"inventory_profile": {"plant_id", "period", "opening", "closing", "safety_stock", "breach"},
	}
	for section, keys := range want {
		var items []map[string]any
		if err := json.Unmarshal(doc[section], &items); err != nil {
			t.Fatalf("%s: %v", section, err)
		}
		if len(items) == 0 {
			t.Fatalf("%s is empty", section)
		}
		for _, k := range keys {
			if _, ok := items[0][k]; !ok {
				t.Errorf("%s item has no %q key: %v", section, k, items[0])
			}
		}
	}

	var trips []map[string]any
	_ = json.Unmarshal(doc["trip_plan"], &trips)
	if got := fmt.Sprintf("%v %v", trips[0]["route"], trips[0]["trips"]); got != "P1|C1|truck 2" {
		t.Fatalf("trip line = %v", trips[0])
	}
	for _, k := range []string{"status", "objective_value", "solve_time_seconds", "cost_breakdown", "kpi"} {
		if _, ok := doc[k]; !ok {
			t.Errorf("document has no %q key", k)
		}
	}
}
