package adapter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/xuri/excelize/v2"
)

// Table is a named header plus rows, ready for CSV or a workbook sheet.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optNum(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}

// SummaryTable lists the run-level fields as key/value rows.
func SummaryTable(res *engine.Result) Table {
	t := Table{Name: "summary", Header: []string{"field", "value"}}
	add := func(k, v string) { t.Rows = append(t.Rows, []string{k, v}) }
	add("run_id", res.RunID)
	add("status", string(res.Status))
	add("solver", res.Solver)
	add("requested_solver", res.RequestedSolver)
	add("objective_value", optNum(res.ObjectiveValue))
	add("best_bound", optNum(res.BestBound))
	add("mip_gap", optNum(res.MIPGap))
	add("nodes", strconv.Itoa(res.Nodes))
	add("solve_time_seconds", num(res.SolveTimeSeconds))
	if c := res.CostBreakdown; c != nil {
		add("cost_production", num(c.Production))
		add("cost_transport", num(c.Transport))
		add("cost_fixed_trip", num(c.FixedTrip))
		add("cost_holding", num(c.Holding))
		add("cost_penalty", num(c.Penalty))
		add("cost_total", num(c.Total))
	}
	if k := res.KPI; k != nil {
		add("service_level", num(k.ServiceLevel))
		add("inventory_turns", num(k.InventoryTurns))
		add("average_trip_utilization", num(k.AverageTripUtilization))
	}
	for _, w := range res.Warnings {
		add("warning", w)
	}
	for _, v := range res.Violations {
		add("violation", v)
	}
	return t
}

// PlanTables returns the plan artifacts of res in output order.
func PlanTables(res *engine.Result) []Table {
	production := Table{Name: "production_plan", Header: []string{"plant_id", "period", "quantity", "capacity"}}
	for _, l := range res.ProductionPlan {
		production.Rows = append(production.Rows, []string{l.Plant, l.Period, num(l.Quantity), num(l.Capacity)})
	}

	shipments := Table{Name: "shipment_plan", Header: []string{"route", "origin", "destination", "mode", "period", "quantity", "min_batch_quantity", "active"}}
	for _, l := range res.ShipmentPlan {
		shipments.Rows = append(shipments.Rows, []string{l.RouteKey, l.Origin, l.Destination, l.Mode, l.Period, num(l.Quantity), num(l.MinBatch), strconv.FormatBool(l.Active)})
	}

	trips := Table{Name: "trip_plan", Header: []string{"route", "period", "trips", "shipment", "vehicle_capacity", "utilization"}}
	for _, l := range res.TripPlan {
		trips.Rows = append(trips.Rows, []string{l.RouteKey, l.Period, strconv.FormatInt(l.Trips, 10), num(l.Shipment), num(l.VehicleCapacity), num(l.Utilization)})
	}

	inventory := Table{Name: "inventory_profile", Header: []string{"plant_id", "period", "opening", "production", "outbound", "closing", "safety_stock", "breach"}}
	for _, l := range res.InventoryProfile {
		inventory.Rows = append(inventory.Rows, []string{l.Plant, l.Period, num(l.Opening), num(l.Production), num(l.Outbound), num(l.Closing), num(l.SafetyStock), strconv.FormatBool(l.Breach)})
	}

	fulfillment := Table{Name: "demand_fulfillment", Header: []string{"node_id", "period", "demand", "delivered", "unmet"}}
	for _, l := range res.DemandFulfillment {
		fulfillment.Rows = append(fulfillment.Rows, []string{l.Node, l.Period, num(l.Demand), num(l.Delivered), num(l.Unmet)})
	}

	return []Table{production, shipments, trips, inventory, fulfillment}
}

// WriteCSV writes t with its header.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", t.Name, err)
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", t.Name, err)
	}
	return nil
}

// WriteWorkbook writes the summary and every plan table as sheets of one
// XLSX workbook.
func WriteWorkbook(w io.Writer, res *engine.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	tables := append([]Table{SummaryTable(res)}, PlanTables(res)...)
	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", t.Name, err)
		}
		if err := writeSheet(f, t); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, t Table) error {
	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(t.Name, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of sheet %s: %w", i+1, t.Name, err)
		}
	}
	return nil
}
