// Package kpi derives business metrics from an extracted plan. Every figure
// is a pure function of the plan, so the same plan always serialises to the
// same bytes.
package kpi

import (
	"encoding/json"

	"github.com/andresuchdata/netplan/internal/extract"
	"github.com/shopspring/decimal"
)

const precision = 6

// compliance tolerance on quantities
const tol = 1e-6

// Report is the KPI record of one plan. Maps are keyed by plant id or route
// key; encoding/json writes them in sorted key order.
type Report struct {
	// Utilization is production over capacity per plant, 0 without capacity.
	Utilization map[string]float64 `json:"utilization"`
	// SBQCompliance is true when every period the route shipped, it shipped
	// at least its minimum batch.
	SBQCompliance map[string]bool `json:"sbq_compliance"`
	// SafetyStockCompliance is true when closing stock met the floor in
	// every period.
	SafetyStockCompliance map[string]bool `json:"safety_stock_compliance"`

	ServiceLevel   float64 `json:"service_level"`
	InventoryTurns float64 `json:"inventory_turns"`

	TotalDemand            float64 `json:"total_demand"`
	TotalDelivered         float64 `json:"total_delivered"`
	TotalUnmet             float64 `json:"total_unmet"`
	TotalOutbound          float64 `json:"total_outbound"`
	AverageInventory       float64 `json:"average_inventory"`
	AverageTripUtilization float64 `json:"average_trip_utilization"`
	TotalCost              float64 `json:"total_cost"`
}

// Calculate computes the report.
func Calculate(plan *extract.Plan) Report {
	r := Report{
		Utilization:           make(map[string]float64),
		SBQCompliance:         make(map[string]bool),
		SafetyStockCompliance: make(map[string]bool),
	}
	if plan == nil {
		r.ServiceLevel = 1
		return r
	}

	utilization(plan, &r)
	sbqCompliance(plan, &r)
	stockCompliance(plan, &r)
	service(plan, &r)
	turns(plan, &r)
	tripUtilization(plan, &r)
	r.TotalCost = plan.Costs.Total
	return r
}

// JSON serialises the report.
func (r Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.DivRound(den, precision).InexactFloat64()
}

func utilization(plan *extract.Plan, r *Report) {
	produced := make(map[string]decimal.Decimal)
	capacity := make(map[string]decimal.Decimal)
	for _, l := range plan.Production {
		produced[l.Plant] = produced[l.Plant].Add(d(l.Quantity))
		capacity[l.Plant] = capacity[l.Plant].Add(d(l.Capacity))
	}
	for plant, p := range produced {
		r.Utilization[plant] = ratio(p, capacity[plant])
	}
}

func sbqCompliance(plan *extract.Plan, r *Report) {
	for _, l := range plan.Shipments {
		ok, seen := r.SBQCompliance[l.RouteKey]
		if !seen {
			ok = true
		}
		if l.Quantity > tol && l.Quantity < l.MinBatch-tol {
			ok = false
		}
		r.SBQCompliance[l.RouteKey] = ok
	}
}

func stockCompliance(plan *extract.Plan, r *Report) {
	for _, l := range plan.Inventory {
		ok, seen := r.SafetyStockCompliance[l.Plant]
		if !seen {
			ok = true
		}
		if l.Closing < l.SafetyStock-tol {
			ok = false
		}
		r.SafetyStockCompliance[l.Plant] = ok
	}
}

func service(plan *extract.Plan, r *Report) {
	var demand, delivered, unmet decimal.Decimal
	for _, l := range plan.Fulfillment {
		demand = demand.Add(d(l.Demand))
		delivered = delivered.Add(d(l.Delivered))
		unmet = unmet.Add(d(l.Unmet))
	}
	r.TotalDemand = demand.Round(precision).InexactFloat64()
	r.TotalDelivered = delivered.Round(precision).InexactFloat64()
	r.TotalUnmet = unmet.Round(precision).InexactFloat64()
	if demand.IsZero() {
		r.ServiceLevel = 1
		return
	}
	r.ServiceLevel = ratio(delivered, demand)
}

// turns divides total outbound by the network's average closing inventory
// per period.
func turns(plan *extract.Plan, r *Report) {
	var outbound, closing decimal.Decimal
	periods := make(map[string]struct{})
	for _, l := range plan.Inventory {
		outbound = outbound.Add(d(l.Outbound))
		closing = closing.Add(d(l.Closing))
		periods[l.Period] = struct{}{}
	}
	r.TotalOutbound = outbound.Round(precision).InexactFloat64()
	if len(periods) == 0 {
		return
	}
	avg := closing.DivRound(decimal.NewFromInt(int64(len(periods))), precision)
	r.AverageInventory = avg.InexactFloat64()
	r.InventoryTurns = ratio(outbound, avg)
}

func tripUtilization(plan *extract.Plan, r *Report) {
	var sum decimal.Decimal
	var n int64
	for _, l := range plan.Trips {
		if l.Trips > 0 {
			sum = sum.Add(d(l.Utilization))
			n++
		}
	}
	r.AverageTripUtilization = ratio(sum, decimal.NewFromInt(n))
}
