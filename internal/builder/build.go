// Package builder turns canonical planning tables into a PlanningModel: the
// production, transport and inventory MILP plus the data behind it.
package builder

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/milp"
	"github.com/andresuchdata/netplan/pkg/logger"
)

// Options tune model construction.
type Options struct {
	// UnmetPenalty is the per-unit penalty for unmet demand when the demand
	// record carries none. Zero derives it from the cost data.
	UnmetPenalty float64
}

// MinDerivedPenalty is the floor of the data-driven unmet demand penalty.
const MinDerivedPenalty = 1000.0

type builder struct {
	in   *domain.Input
	opts Options
	pm   *PlanningModel

	periodSet map[string]bool
	plantSet  map[string]bool
	nodeSet   map[string]bool
}

// Build validates the input and constructs the model. It returns a
// DataEmptyError before any construction when no demand record is usable.
func Build(in *domain.Input, opts Options) (*PlanningModel, error) {
	if in == nil {
		return nil, domain.NewDataEmptyError(0, 0)
	}

	b := &builder{
		in:   in,
		opts: opts,
		pm: &PlanningModel{
			Capacity:         make(map[PlantPeriod]float64),
			ProductionCost:   make(map[PlantPeriod]float64),
			HoldingCost:      make(map[PlantPeriod]float64),
			SafetyStock:      make(map[PlantPeriod]float64),
			InitialInventory: make(map[string]float64),
			Demand:           make(map[NodePeriod]float64),
			Penalty:          make(map[NodePeriod]float64),
			BigM:             make(map[RoutePeriod]float64),
			Production:       make(map[PlantPeriod]milp.Var),
			Inventory:        make(map[PlantPeriod]milp.Var),
			Shipment:         make(map[RoutePeriod]milp.Var),
			Trips:            make(map[RoutePeriod]milp.Var),
			ModeActive:       make(map[RoutePeriod]milp.Var),
			Unmet:            make(map[NodePeriod]milp.Var),
			outbound:         make(map[string][]int),
			inbound:          make(map[string][]int),
		},
		periodSet: make(map[string]bool),
		plantSet:  make(map[string]bool),
		nodeSet:   make(map[string]bool),
	}

	if err := b.loadDemand(); err != nil {
		return nil, err
	}
	b.loadPlants()
	b.loadInitialInventory()
	b.loadSafetyStockPolicy()
	b.loadRoutes()
	b.assemble()

	log := logger.Component("builder")
	for _, w := range b.pm.Warnings {
		log.Warn().Msg(w)
	}
	counts := b.pm.Model.CountByKind()
	log.Info().
		Int("plants", len(b.pm.Plants)).
		Int("nodes", len(b.pm.Nodes)).
		Int("periods", len(b.pm.Periods)).
		Int("routes", len(b.pm.Routes)).
		Int("continuous", counts[milp.Continuous]).
		Int("integer", counts[milp.Integer]).
		Int("binary", counts[milp.Binary]).
		Int("constraints", b.pm.Model.NumConstraints()).
		Int("warnings", len(b.pm.Warnings)).
		Msg("planning model built")

	return b.pm, nil
}

func (b *builder) warn(format string, args ...any) {
	b.pm.Warnings = append(b.pm.Warnings, fmt.Sprintf(format, args...))
}

func (b *builder) parse(table string) []row {
	records := b.in.Table(table)
	out := make([]row, 0, len(records))
	for i, rec := range records {
		r, warnings, ok := parseRecord(table, i, rec)
		b.pm.Warnings = append(b.pm.Warnings, warnings...)
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (b *builder) loadDemand() error {
	received := len(b.in.Demand)
	rows := b.parse(domain.TableDemand)
	dropped := received - len(rows)

	if len(b.in.Periods) > 0 {
		for _, p := range b.in.Periods {
			if p = strings.TrimSpace(p); p != "" {
				b.periodSet[p] = true
			}
		}
		kept := rows[:0]
		for _, r := range rows {
			if !b.periodSet[r.str(ColPeriod)] {
				b.warn("demand for %s in period %s is outside the planning horizon, record dropped", r.str(ColNodeID), r.str(ColPeriod))
				dropped++
				continue
			}
			kept = append(kept, r)
		}
		rows = kept
	}

	if len(rows) == 0 {
		return domain.NewDataEmptyError(received, dropped)
	}

	for _, r := range rows {
		key := NodePeriod{Node: r.str(ColNodeID), Period: r.str(ColPeriod)}
		if _, dup := b.pm.Demand[key]; dup {
			b.warn("duplicate demand for %s in period %s, quantities summed", key.Node, key.Period)
		}
		b.pm.Demand[key] += r.float(ColQuantity)
		if r.has(ColPenalty) && r.float(ColPenalty) > 0 {
			b.pm.Penalty[key] = math.Max(b.pm.Penalty[key], r.float(ColPenalty))
		}
		b.nodeSet[key.Node] = true
		if len(b.in.Periods) == 0 {
			b.periodSet[key.Period] = true
		}
	}

	b.pm.Periods = sortedKeys(b.periodSet)
	b.pm.Nodes = sortedKeys(b.nodeSet)
	return nil
}

func (b *builder) loadPlants() {
	seen := make(map[PlantPeriod]bool)
	for _, r := range b.parse(domain.TablePlants) {
		plant := r.str(ColPlantID)
		b.plantSet[plant] = true

		key := PlantPeriod{Plant: plant, Period: r.str(ColPeriod)}
		if !b.periodSet[key.Period] {
			b.warn("plant %s capacity for period %s is outside the planning horizon, ignored", plant, key.Period)
			continue
		}
		if seen[key] {
			b.warn("duplicate capacity record for plant %s in period %s, later record wins", plant, key.Period)
		}
		seen[key] = true

		b.pm.Capacity[key] = r.float(ColMaxCapacity)
		b.pm.ProductionCost[key] = r.float(ColVariableCost)
		b.pm.HoldingCost[key] = r.float(ColHoldingCost)
		if r.has(ColSafetyStock) {
			b.pm.SafetyStock[key] = r.float(ColSafetyStock)
		} else {
			delete(b.pm.SafetyStock, key)
		}
	}
	b.pm.Plants = sortedKeys(b.plantSet)
}

func (b *builder) loadInitialInventory() {
	for _, r := range b.parse(domain.TableInitialInventory) {
		plant := r.str(ColPlantID)
		if !b.plantSet[plant] {
			b.warn("initial inventory for unknown plant %s ignored", plant)
			continue
		}
		b.pm.InitialInventory[plant] += r.float(ColQuantity)
	}
}

// loadSafetyStockPolicy applies the policy table on top of the plant rows:
// a (plant, period) entry beats a plant-wide entry, which beats the plant row.
func (b *builder) loadSafetyStockPolicy() {
	plantWide := make(map[string]float64)
	specific := make(map[PlantPeriod]float64)

	for _, r := range b.parse(domain.TableSafetyStock) {
		plant := r.str(ColPlantID)
		if !b.plantSet[plant] {
			b.warn("safety stock policy for unknown plant %s ignored", plant)
			continue
		}
		period := r.str(ColPeriod)
		if period == "" {
			plantWide[plant] = r.float(ColQuantity)
			continue
		}
		if !b.periodSet[period] {
			b.warn("safety stock policy for plant %s in period %s is outside the planning horizon, ignored", plant, period)
			continue
		}
		specific[PlantPeriod{Plant: plant, Period: period}] = r.float(ColQuantity)
	}

	for _, plant := range b.pm.Plants {
		for _, period := range b.pm.Periods {
			key := PlantPeriod{Plant: plant, Period: period}
			if v, ok := specific[key]; ok {
				b.pm.SafetyStock[key] = v
			} else if v, ok := plantWide[plant]; ok {
				b.pm.SafetyStock[key] = v
			}
		}
	}
}

func (b *builder) loadRoutes() {
	seen := make(map[string]bool)
	for _, r := range b.parse(domain.TableRoutes) {
		route := Route{
			Origin:          r.str(ColOriginPlantID),
			Destination:     r.str(ColDestinationNodeID),
			Mode:            r.str(ColMode),
			UnitCost:        r.float(ColVariableCost),
			VehicleCapacity: r.float(ColVehicleCapacity),
			FixedTripCost:   r.float(ColFixedTripCost),
			MinBatch:        r.float(ColMinBatchQuantity),
		}
		if !b.plantSet[route.Origin] {
			b.warn("route %s references unknown plant %s, excluded", route.Key(), route.Origin)
			continue
		}
		if !b.nodeSet[route.Destination] {
			b.warn("route %s references unknown node %s, excluded", route.Key(), route.Destination)
			continue
		}
		if seen[route.Key()] {
			b.warn("duplicate route %s, first record kept", route.Key())
			continue
		}
		seen[route.Key()] = true

		idx := len(b.pm.Routes)
		b.pm.Routes = append(b.pm.Routes, route)
		b.pm.outbound[route.Origin] = append(b.pm.outbound[route.Origin], idx)
		b.pm.inbound[route.Destination] = append(b.pm.inbound[route.Destination], idx)
	}
}

// derivedPenalty dominates the most expensive way of serving one unit.
func (b *builder) derivedPenalty() float64 {
	var maxProd, maxHold, maxUnit, maxFixed float64
	for _, v := range b.pm.ProductionCost {
		maxProd = math.Max(maxProd, v)
	}
	for _, v := range b.pm.HoldingCost {
		maxHold = math.Max(maxHold, v)
	}
	for _, r := range b.pm.Routes {
		maxUnit = math.Max(maxUnit, r.UnitCost)
		maxFixed = math.Max(maxFixed, r.FixedTripCost)
	}
	horizon := float64(len(b.pm.Periods))
	return math.Max(MinDerivedPenalty, 10*(maxProd+maxUnit+maxFixed+maxHold*horizon))
}

func (b *builder) assemble() {
	pm := b.pm
	m := milp.NewModel("production_transport_inventory")
	pm.Model = m
	inf := math.Inf(1)

	defaultPenalty := b.opts.UnmetPenalty
	if defaultPenalty <= 0 {
		defaultPenalty = b.derivedPenalty()
	}

	for _, plant := range pm.Plants {
		for _, period := range pm.Periods {
			key := PlantPeriod{Plant: plant, Period: period}
			pm.Production[key] = m.AddVariable(fmt.Sprintf("production[%s,%s]", plant, period), milp.Continuous, 0, inf, pm.ProductionCost[key])
			pm.Inventory[key] = m.AddVariable(fmt.Sprintf("inventory[%s,%s]", plant, period), milp.Continuous, 0, inf, pm.HoldingCost[key])
		}
	}

	for ri, route := range pm.Routes {
		for _, period := range pm.Periods {
			key := RoutePeriod{Route: ri, Period: period}
			label := route.Key() + "," + period
			pm.Shipment[key] = m.AddVariable("shipment["+label+"]", milp.Continuous, 0, inf, route.UnitCost)
			pm.Trips[key] = m.AddVariable("trips["+label+"]", milp.Integer, 0, inf, route.FixedTripCost)
			pm.ModeActive[key] = m.AddVariable("mode_active["+label+"]", milp.Binary, 0, 1, 0)
			pm.BigM[key] = pm.Demand[NodePeriod{Node: route.Destination, Period: period}]
		}
	}

	for _, node := range pm.Nodes {
		for _, period := range pm.Periods {
			key := NodePeriod{Node: node, Period: period}
			penalty, ok := pm.Penalty[key]
			if !ok {
				penalty = defaultPenalty
				pm.Penalty[key] = penalty
			}
			pm.Unmet[key] = m.AddVariable(fmt.Sprintf("unmet[%s,%s]", node, period), milp.Continuous, 0, inf, penalty)
		}
	}

	for _, plant := range pm.Plants {
		for _, period := range pm.Periods {
			key := PlantPeriod{Plant: plant, Period: period}
			suffix := fmt.Sprintf("[%s,%s]", plant, period)

			m.AddConstraint(FamilyCapacity, FamilyCapacity+suffix, milp.LessEq, pm.Capacity[key],
				milp.Term{Var: pm.Production[key], Coef: 1})

			// opening + production = shipments out + closing
			terms := []milp.Term{
				{Var: pm.Production[key], Coef: 1},
				{Var: pm.Inventory[key], Coef: -1},
			}
			rhs := -pm.InitialInventory[plant]
			if prev := pm.PreviousPeriod(period); prev != "" {
				terms = append(terms, milp.Term{Var: pm.Inventory[PlantPeriod{Plant: plant, Period: prev}], Coef: 1})
				rhs = 0
			}
			for _, ri := range pm.Outbound(plant) {
				terms = append(terms, milp.Term{Var: pm.Shipment[RoutePeriod{Route: ri, Period: period}], Coef: -1})
			}
			m.AddConstraint(FamilyInventoryBalance, FamilyInventoryBalance+suffix, milp.Equal, rhs, terms...)

			if ss := pm.SafetyStock[key]; ss > 0 {
				m.AddConstraint(FamilySafetyStock, FamilySafetyStock+suffix, milp.GreaterEq, ss,
					milp.Term{Var: pm.Inventory[key], Coef: 1})
			}
		}
	}

	for _, node := range pm.Nodes {
		for _, period := range pm.Periods {
			key := NodePeriod{Node: node, Period: period}
			terms := []milp.Term{{Var: pm.Unmet[key], Coef: 1}}
			for _, ri := range pm.Inbound(node) {
				terms = append(terms, milp.Term{Var: pm.Shipment[RoutePeriod{Route: ri, Period: period}], Coef: 1})
			}
			m.AddConstraint(FamilyDemandBalance, fmt.Sprintf("%s[%s,%s]", FamilyDemandBalance, node, period), milp.Equal, pm.Demand[key], terms...)
		}
	}

	for ri, route := range pm.Routes {
		for _, period := range pm.Periods {
			key := RoutePeriod{Route: ri, Period: period}
			suffix := "[" + route.Key() + "," + period + "]"
			ship, trips, active := pm.Shipment[key], pm.Trips[key], pm.ModeActive[key]

			m.AddConstraint(FamilyTripCapacity, FamilyTripCapacity+suffix, milp.LessEq, 0,
				milp.Term{Var: ship, Coef: 1}, milp.Term{Var: trips, Coef: -route.VehicleCapacity})
			if route.MinBatch > 0 {
				m.AddConstraint(FamilyMinBatchLower, FamilyMinBatchLower+suffix, milp.GreaterEq, 0,
					milp.Term{Var: ship, Coef: 1}, milp.Term{Var: active, Coef: -route.MinBatch})
			}
			m.AddConstraint(FamilyMinBatchUpper, FamilyMinBatchUpper+suffix, milp.LessEq, 0,
				milp.Term{Var: ship, Coef: 1}, milp.Term{Var: active, Coef: -pm.BigM[key]})
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
