package builder

import (
	"sort"

	"github.com/andresuchdata/netplan/internal/milp"
)

// Constraint family names.
const (
	FamilyCapacity         = "capacity"
	FamilyInventoryBalance = "inventory_balance"
	FamilySafetyStock      = "safety_stock"
	FamilyDemandBalance    = "demand_balance"
	FamilyTripCapacity     = "trip_capacity"
	FamilyMinBatchLower    = "min_batch_lower"
	FamilyMinBatchUpper    = "min_batch_upper"
)

type PlantPeriod struct {
	Plant  string
	Period string
}

type NodePeriod struct {
	Node   string
	Period string
}

// RoutePeriod indexes PlanningModel.Routes.
type RoutePeriod struct {
	Route  int
	Period string
}

// Route is a (plant, node, mode) lane.
type Route struct {
	Origin          string
	Destination     string
	Mode            string
	UnitCost        float64
	VehicleCapacity float64
	FixedTripCost   float64
	MinBatch        float64
}

// Key is the route identifier used in outputs.
func (r Route) Key() string {
	return r.Origin + "|" + r.Destination + "|" + r.Mode
}

// PlanningModel is the MILP together with the planning data it was built
// from and the variable handles of every decision.
type PlanningModel struct {
	Model *milp.Model

	Plants  []string
	Nodes   []string
	Periods []string
	Routes  []Route

	Capacity         map[PlantPeriod]float64
	ProductionCost   map[PlantPeriod]float64
	HoldingCost      map[PlantPeriod]float64
	SafetyStock      map[PlantPeriod]float64
	InitialInventory map[string]float64
	Demand           map[NodePeriod]float64
	Penalty          map[NodePeriod]float64
	BigM             map[RoutePeriod]float64

	Production map[PlantPeriod]milp.Var
	Inventory  map[PlantPeriod]milp.Var
	Shipment   map[RoutePeriod]milp.Var
	Trips      map[RoutePeriod]milp.Var
	ModeActive map[RoutePeriod]milp.Var
	Unmet      map[NodePeriod]milp.Var

	Warnings []string

	outbound map[string][]int
	inbound  map[string][]int
}

// Outbound returns the indexes of routes leaving plant, in route order.
func (pm *PlanningModel) Outbound(plant string) []int { return pm.outbound[plant] }

// Inbound returns the indexes of routes serving node, in route order.
func (pm *PlanningModel) Inbound(node string) []int { return pm.inbound[node] }

// PreviousPeriod returns the period before period, or "" for the first one.
func (pm *PlanningModel) PreviousPeriod(period string) string {
	i := sort.SearchStrings(pm.Periods, period)
	if i <= 0 || i >= len(pm.Periods) || pm.Periods[i] != period {
		return ""
	}
	return pm.Periods[i-1]
}

// Families returns the constraint families present in the model.
func (pm *PlanningModel) Families() []string { return pm.Model.Families() }
