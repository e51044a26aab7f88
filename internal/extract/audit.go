package extract

import (
	"fmt"
	"math"
)

const auditEps = 1e-5

func auditTol(magnitude float64) float64 {
	return auditEps * math.Max(1, math.Abs(magnitude))
}

// Audit re-checks the plan against the planning invariants: non-negative
// quantities, inventory conservation, safety stock, minimum batch size,
// trip capacity and demand balance. It returns one message per violation.
func (p *Plan) Audit() []string {
	var out []string

	for _, l := range p.Production {
		if l.Quantity < -auditTol(0) {
			out = append(out, fmt.Sprintf("production %s/%s is negative: %g", l.Plant, l.Period, l.Quantity))
		}
		if l.Quantity > l.Capacity+auditTol(l.Capacity) {
			out = append(out, fmt.Sprintf("production %s/%s %g exceeds capacity %g", l.Plant, l.Period, l.Quantity, l.Capacity))
		}
	}

	for _, l := range p.Inventory {
		flow := l.Opening + l.Production - l.Outbound
		if math.Abs(flow-l.Closing) > auditTol(flow) {
			out = append(out, fmt.Sprintf("inventory %s/%s not conserved: opening %g + production %g - outbound %g != closing %g",
				l.Plant, l.Period, l.Opening, l.Production, l.Outbound, l.Closing))
		}
		if l.Closing < -auditTol(0) {
			out = append(out, fmt.Sprintf("inventory %s/%s is negative: %g", l.Plant, l.Period, l.Closing))
		}
		if l.Breach {
			out = append(out, fmt.Sprintf("inventory %s/%s %g below safety stock %g", l.Plant, l.Period, l.Closing, l.SafetyStock))
		}
	}

	for _, l := range p.Shipments {
		if l.Quantity < -auditTol(0) {
			out = append(out, fmt.Sprintf("shipment %s/%s is negative: %g", l.RouteKey, l.Period, l.Quantity))
		}
		if l.MinBatch > 0 && l.Quantity > auditTol(0) && l.Quantity < l.MinBatch-auditTol(l.MinBatch) {
			out = append(out, fmt.Sprintf("shipment %s/%s %g below minimum batch %g", l.RouteKey, l.Period, l.Quantity, l.MinBatch))
		}
	}

	for _, l := range p.Trips {
		limit := float64(l.Trips) * l.VehicleCapacity
		if l.Shipment > limit+auditTol(limit) {
			out = append(out, fmt.Sprintf("shipment %s/%s %g exceeds %d trips of %g", l.RouteKey, l.Period, l.Shipment, l.Trips, l.VehicleCapacity))
		}
	}

	for _, l := range p.Fulfillment {
		if math.Abs(l.Delivered+l.Unmet-l.Demand) > auditTol(l.Demand) {
			out = append(out, fmt.Sprintf("demand %s/%s: delivered %g + unmet %g != demand %g", l.Node, l.Period, l.Delivered, l.Unmet, l.Demand))
		}
	}

	return out
}
