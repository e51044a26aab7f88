package extract

import (
	"fmt"
	"math"

	"github.com/andresuchdata/netplan/internal/builder"
	"github.com/andresuchdata/netplan/internal/milp"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimals kept on solved quantities.
const Precision = 6

// Extract builds the plan from a solved outcome. Only optimal and
// feasible_suboptimal outcomes carry a plan.
func Extract(pm *builder.PlanningModel, out *solver.Outcome) (*Plan, error) {
	if pm == nil || out == nil {
		return nil, fmt.Errorf("extract: nil model or outcome")
	}
	if !out.HasSolution() {
		return nil, fmt.Errorf("extract: outcome status %s carries no solution", out.Status)
	}
	if len(out.Values) != pm.Model.NumVariables() {
		return nil, fmt.Errorf("extract: %d values for %d variables", len(out.Values), pm.Model.NumVariables())
	}

	x := &extractor{pm: pm, out: out}
	plan := &Plan{}
	x.production(plan)
	x.shipments(plan)
	x.inventory(plan)
	x.fulfillment(plan)
	x.costs(plan)
	return plan, nil
}

type extractor struct {
	pm  *builder.PlanningModel
	out *solver.Outcome
}

// value returns the cleaned solved value of v.
func (x *extractor) value(v milp.Var) float64 {
	raw := x.out.Value(v)
	if x.pm.Model.Variable(v).IsIntegral() {
		return math.Round(raw)
	}
	return clean(raw)
}

func clean(v float64) float64 {
	return decimal.NewFromFloat(v).Round(Precision).InexactFloat64()
}

func (x *extractor) production(plan *Plan) {
	pm := x.pm
	for _, plant := range pm.Plants {
		for _, period := range pm.Periods {
			key := builder.PlantPeriod{Plant: plant, Period: period}
			plan.Production = append(plan.Production, ProductionLine{
				Plant:    plant,
				Period:   period,
				Quantity: x.value(pm.Production[key]),
				Capacity: pm.Capacity[key],
			})
		}
	}
}

func (x *extractor) shipments(plan *Plan) {
	pm := x.pm
	for ri, route := range pm.Routes {
		for _, period := range pm.Periods {
			key := builder.RoutePeriod{Route: ri, Period: period}
			qty := x.value(pm.Shipment[key])
			trips := x.value(pm.Trips[key])

			plan.Shipments = append(plan.Shipments, ShipmentLine{
				RouteKey:    route.Key(),
				Origin:      route.Origin,
				Destination: route.Destination,
				Mode:        route.Mode,
				Period:      period,
				Quantity:    qty,
				MinBatch:    route.MinBatch,
				Active:      x.value(pm.ModeActive[key]) > 0.5 && qty > 0,
			})

			var util float64
			if trips > 0 && route.VehicleCapacity > 0 {
				util = clean(qty / (trips * route.VehicleCapacity))
			}
			plan.Trips = append(plan.Trips, TripLine{
				RouteKey:        route.Key(),
				Period:          period,
				Trips:           int64(trips),
				Shipment:        qty,
				VehicleCapacity: route.VehicleCapacity,
				Utilization:     util,
			})
		}
	}
}

func (x *extractor) inventory(plan *Plan) {
	pm := x.pm
	for _, plant := range pm.Plants {
		opening := decimal.NewFromFloat(pm.InitialInventory[plant])
		for _, period := range pm.Periods {
			key := builder.PlantPeriod{Plant: plant, Period: period}

			outbound := decimal.Zero
			for _, ri := range pm.Outbound(plant) {
				outbound = outbound.Add(decimal.NewFromFloat(x.value(pm.Shipment[builder.RoutePeriod{Route: ri, Period: period}])))
			}
			closing := x.value(pm.Inventory[key])
			ss := pm.SafetyStock[key]

			plan.Inventory = append(plan.Inventory, InventoryLine{
				Plant:       plant,
				Period:      period,
				Opening:     opening.Round(Precision).InexactFloat64(),
				Production:  x.value(pm.Production[key]),
				Outbound:    outbound.Round(Precision).InexactFloat64(),
				Closing:     closing,
				SafetyStock: ss,
				Breach:      closing < ss-auditTol(ss),
			})
			opening = decimal.NewFromFloat(closing)
		}
	}
}

func (x *extractor) fulfillment(plan *Plan) {
	pm := x.pm
	for _, node := range pm.Nodes {
		for _, period := range pm.Periods {
			delivered := decimal.Zero
			for _, ri := range pm.Inbound(node) {
				delivered = delivered.Add(decimal.NewFromFloat(x.value(pm.Shipment[builder.RoutePeriod{Route: ri, Period: period}])))
			}
			key := builder.NodePeriod{Node: node, Period: period}
			plan.Fulfillment = append(plan.Fulfillment, FulfillmentLine{
				Node:      node,
				Period:    period,
				Demand:    pm.Demand[key],
				Delivered: delivered.Round(Precision).InexactFloat64(),
				Unmet:     x.value(pm.Unmet[key]),
			})
		}
	}
}

func (x *extractor) costs(plan *Plan) {
	pm := x.pm
	term := func(cost float64, v milp.Var) decimal.Decimal {
		return decimal.NewFromFloat(cost).Mul(decimal.NewFromFloat(x.value(v)))
	}

	var production, transport, fixedTrip, holding, penalty decimal.Decimal
	for _, plant := range pm.Plants {
		for _, period := range pm.Periods {
			key := builder.PlantPeriod{Plant: plant, Period: period}
			production = production.Add(term(pm.ProductionCost[key], pm.Production[key]))
			holding = holding.Add(term(pm.HoldingCost[key], pm.Inventory[key]))
		}
	}
	for ri, route := range pm.Routes {
		for _, period := range pm.Periods {
			key := builder.RoutePeriod{Route: ri, Period: period}
			transport = transport.Add(term(route.UnitCost, pm.Shipment[key]))
			fixedTrip = fixedTrip.Add(term(route.FixedTripCost, pm.Trips[key]))
		}
	}
	for _, node := range pm.Nodes {
		for _, period := range pm.Periods {
			key := builder.NodePeriod{Node: node, Period: period}
			penalty = penalty.Add(term(pm.Penalty[key], pm.Unmet[key]))
		}
	}

	total := decimal.Sum(production, transport, fixedTrip, holding, penalty)
	plan.Costs = CostBreakdown{
		Production: production.Round(Precision).InexactFloat64(),
		Transport:  transport.Round(Precision).InexactFloat64(),
		FixedTrip:  fixedTrip.Round(Precision).InexactFloat64(),
		Holding:    holding.Round(Precision).InexactFloat64(),
		Penalty:    penalty.Round(Precision).InexactFloat64(),
		Total:      total.Round(Precision).InexactFloat64(),
	}
}
