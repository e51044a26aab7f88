// Package extract reads a solved outcome back into planning artifacts.
package extract

type ProductionLine struct {
	Plant    string  `json:"plant_id"`
	Period   string  `json:"period"`
	Quantity float64 `json:"quantity"`
	Capacity float64 `json:"capacity"`
}

type ShipmentLine struct {
	RouteKey    string  `json:"route"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Mode        string  `json:"mode"`
	Period      string  `json:"period"`
	Quantity    float64 `json:"quantity"`
	MinBatch    float64 `json:"min_batch_quantity"`
	// Active is set when the mode is switched on and carries goods.
	Active bool `json:"active"`
}

type TripLine struct {
	RouteKey        string  `json:"route"`
	Period          string  `json:"period"`
	Trips           int64   `json:"trips"`
	Shipment        float64 `json:"shipment"`
	VehicleCapacity float64 `json:"vehicle_capacity"`
	// Utilization is shipment / (trips × capacity), 0 without trips.
	Utilization float64 `json:"utilization"`
}

type InventoryLine struct {
	Plant       string  `json:"plant_id"`
	Period      string  `json:"period"`
	Opening     float64 `json:"opening"`
	Production  float64 `json:"production"`
	Outbound    float64 `json:"outbound"`
	Closing     float64 `json:"closing"`
	SafetyStock float64 `json:"safety_stock"`
	Breach      bool    `json:"breach"`
}

type FulfillmentLine struct {
	Node      string  `json:"node_id"`
	Period    string  `json:"period"`
	Demand    float64 `json:"demand"`
	Delivered float64 `json:"delivered"`
	Unmet     float64 `json:"unmet"`
}

// CostBreakdown is re-summed from the solved quantities.
type CostBreakdown struct {
	Production float64 `json:"production"`
	Transport  float64 `json:"transport"`
	FixedTrip  float64 `json:"fixed_trip"`
	Holding    float64 `json:"holding"`
	Penalty    float64 `json:"penalty"`
	Total      float64 `json:"total"`
}

// Plan holds the artifacts of one solved run. It is not modified after
// Extract returns.
type Plan struct {
	Production  []ProductionLine  `json:"production_plan"`
	Shipments   []ShipmentLine    `json:"shipment_plan"`
	Trips       []TripLine        `json:"trip_plan"`
	Inventory   []InventoryLine   `json:"inventory_profile"`
	Fulfillment []FulfillmentLine `json:"demand_fulfillment"`
	Costs       CostBreakdown     `json:"cost_breakdown"`
}
