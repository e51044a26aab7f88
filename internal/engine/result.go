package engine

import (
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/extract"
	"github.com/andresuchdata/netplan/internal/kpi"
)

// Result is the JSON document of one run. Plan fields are empty when the
// solve produced no accepted solution.
type Result struct {
	RunID            string             `json:"run_id"`
	Status           domain.SolveStatus `json:"status"`
	Solver           string             `json:"solver"`
	RequestedSolver  string             `json:"requested_solver"`
	ObjectiveValue   *float64           `json:"objective_value"`
	BestBound        *float64           `json:"best_bound"`
	MIPGap           *float64           `json:"mip_gap"`
	Nodes            int                `json:"nodes"`
	SolveTimeSeconds float64            `json:"solve_time_seconds"`

	CostBreakdown     *extract.CostBreakdown    `json:"cost_breakdown"`
	ProductionPlan    []extract.ProductionLine  `json:"production_plan"`
	ShipmentPlan      []extract.ShipmentLine    `json:"shipment_plan"`
	TripPlan          []extract.TripLine        `json:"trip_plan"`
	InventoryProfile  []extract.InventoryLine   `json:"inventory_profile"`
	DemandFulfillment []extract.FulfillmentLine `json:"demand_fulfillment"`
	KPI               *kpi.Report               `json:"kpi"`

	Warnings           []string `json:"warnings"`
	ConstraintFamilies []string `json:"constraint_families"`
	Violations         []string `json:"violations"`
	// Error is the message of the typed error for terminal statuses.
	Error string `json:"error,omitempty"`
}

func newResult(runID string) *Result {
	return &Result{
		RunID:              runID,
		ProductionPlan:     []extract.ProductionLine{},
		ShipmentPlan:       []extract.ShipmentLine{},
		TripPlan:           []extract.TripLine{},
		InventoryProfile:   []extract.InventoryLine{},
		DemandFulfillment:  []extract.FulfillmentLine{},
		Warnings:           []string{},
		ConstraintFamilies: []string{},
		Violations:         []string{},
	}
}

// Plan reassembles the extracted artifacts, or nil without a solution.
func (r *Result) Plan() *extract.Plan {
	if r.CostBreakdown == nil {
		return nil
	}
	return &extract.Plan{
		Production:  r.ProductionPlan,
		Shipments:   r.ShipmentPlan,
		Trips:       r.TripPlan,
		Inventory:   r.InventoryProfile,
		Fulfillment: r.DemandFulfillment,
		Costs:       *r.CostBreakdown,
	}
}

// WithRunID returns a shallow copy carrying another run id. Cached results
// are served this way.
func (r *Result) WithRunID(runID string) *Result {
	cp := *r
	cp.RunID = runID
	return &cp
}
