package domain

// Table names of the canonical input.
const (
	TablePlants           = "plants"
	TableRoutes           = "routes"
	TableDemand           = "demand"
	TableInitialInventory = "initial_inventory"
	TableSafetyStock      = "safety_stock"
)

// Record is one row of a canonical table keyed by column name. Values come
// straight from the adapter that produced them: strings for CSV and XLSX,
// float64 or json.Number for JSON, nil for blanks.
type Record map[string]any

// Input is a read-only snapshot of the canonical tables for one run.
type Input struct {
	Plants           []Record `json:"plants"`
	Routes           []Record `json:"routes"`
	Demand           []Record `json:"demand"`
	InitialInventory []Record `json:"initial_inventory"`
	SafetyStock      []Record `json:"safety_stock"`

	// Periods optionally pins the planning horizon. Empty means the sorted
	// distinct periods observed in Demand.
	Periods []string `json:"periods,omitempty"`
}

// Table returns the records of the named table.
func (in *Input) Table(name string) []Record {
	switch name {
	case TablePlants:
		return in.Plants
	case TableRoutes:
		return in.Routes
	case TableDemand:
		return in.Demand
	case TableInitialInventory:
		return in.InitialInventory
	case TableSafetyStock:
		return in.SafetyStock
	}
	return nil
}

// SetTable replaces the records of the named table. Unknown names are ignored.
func (in *Input) SetTable(name string, records []Record) {
	switch name {
	case TablePlants:
		in.Plants = records
	case TableRoutes:
		in.Routes = records
	case TableDemand:
		in.Demand = records
	case TableInitialInventory:
		in.InitialInventory = records
	case TableSafetyStock:
		in.SafetyStock = records
	}
}

// TableNames lists the canonical tables in load order.
func TableNames() []string {
	return []string{TablePlants, TableRoutes, TableDemand, TableInitialInventory, TableSafetyStock}
}
