package builder

import (
	"fmt"
	"math"
	"strings"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/spf13/cast"
)

// FieldKind is how a column value is coerced.
type FieldKind int

const (
	Text FieldKind = iota
	Number
)

// Field describes one canonical column.
type Field struct {
	Table    string
	Column   string
	Kind     FieldKind
	Required bool
}

// Column names shared by several tables.
const (
	ColPlantID           = "plant_id"
	ColPeriod            = "period"
	ColMaxCapacity       = "max_capacity"
	ColVariableCost      = "variable_cost"
	ColHoldingCost       = "holding_cost"
	ColSafetyStock       = "safety_stock"
	ColOriginPlantID     = "origin_plant_id"
	ColDestinationNodeID = "destination_node_id"
	ColMode              = "mode"
	ColVehicleCapacity   = "vehicle_capacity"
	ColFixedTripCost     = "fixed_trip_cost"
	ColMinBatchQuantity  = "min_batch_quantity"
	ColNodeID            = "node_id"
	ColQuantity          = "quantity"
	ColPenalty           = "penalty"
)

// FieldTable lists every column the builder reads. Required columns that are
// missing, non-numeric or negative exclude the record with a warning.
// Optional numeric columns fall back to 0 with a warning when malformed and
// silently when absent.
var FieldTable = []Field{
	{domain.TablePlants, ColPlantID, Text, true},
	{domain.TablePlants, ColPeriod, Text, true},
	{domain.TablePlants, ColMaxCapacity, Number, true},
	{domain.TablePlants, ColVariableCost, Number, false},
	{domain.TablePlants, ColHoldingCost, Number, false},
	{domain.TablePlants, ColSafetyStock, Number, false},

	{domain.TableRoutes, ColOriginPlantID, Text, true},
	{domain.TableRoutes, ColDestinationNodeID, Text, true},
	{domain.TableRoutes, ColMode, Text, true},
	{domain.TableRoutes, ColVehicleCapacity, Number, true},
	{domain.TableRoutes, ColVariableCost, Number, false},
	{domain.TableRoutes, ColFixedTripCost, Number, false},
	{domain.TableRoutes, ColMinBatchQuantity, Number, false},

	{domain.TableDemand, ColNodeID, Text, true},
	{domain.TableDemand, ColPeriod, Text, true},
	{domain.TableDemand, ColQuantity, Number, true},
	{domain.TableDemand, ColPenalty, Number, false},

	{domain.TableInitialInventory, ColPlantID, Text, true},
	{domain.TableInitialInventory, ColQuantity, Number, true},

	{domain.TableSafetyStock, ColPlantID, Text, true},
	{domain.TableSafetyStock, ColQuantity, Number, true},
	{domain.TableSafetyStock, ColPeriod, Text, false},
}

// Fields returns the FieldTable entries of one table.
func Fields(table string) []Field {
	var out []Field
	for _, f := range FieldTable {
		if f.Table == table {
			out = append(out, f)
		}
	}
	return out
}

// row is a parsed record. Absent optional values are not in the maps.
type row struct {
	text map[string]string
	num  map[string]float64
}

func (r row) str(col string) string { return r.text[col] }

// float returns the column value or 0 when absent.
func (r row) float(col string) float64 { return r.num[col] }

func (r row) has(col string) bool {
	_, ok := r.num[col]
	return ok
}

// parseRecord coerces rec against the table's fields. ok is false when a
// required column is unusable; warnings explain every decision.
func parseRecord(table string, idx int, rec domain.Record) (r row, warnings []string, ok bool) {
	r = row{text: make(map[string]string), num: make(map[string]float64)}
	ok = true

	for _, f := range Fields(table) {
		raw, present := lookup(rec, f.Column)
		where := fmt.Sprintf("%s[%d].%s", table, idx, f.Column)

		if !present {
			if f.Required {
				warnings = append(warnings, fmt.Sprintf("%s: required value missing, record excluded", where))
				ok = false
			}
			continue
		}

		switch f.Kind {
		case Text:
			s, err := cast.ToStringE(raw)
			s = strings.TrimSpace(s)
			if err != nil || s == "" {
				if f.Required {
					warnings = append(warnings, fmt.Sprintf("%s: unusable value %v, record excluded", where, raw))
					ok = false
				}
				continue
			}
			r.text[f.Column] = s

		case Number:
			v, err := toNumber(raw)
			if err == nil && v < 0 {
				err = fmt.Errorf("negative value %g", v)
			}
			if err != nil {
				if f.Required {
					warnings = append(warnings, fmt.Sprintf("%s: %v, record excluded", where, err))
					ok = false
				} else {
					warnings = append(warnings, fmt.Sprintf("%s: %v, using 0", where, err))
					r.num[f.Column] = 0
				}
				continue
			}
			r.num[f.Column] = v
		}
	}
	return r, warnings, ok
}

// lookup returns the value of col, treating nil and blank strings as absent.
// Column names match case-insensitively.
func lookup(rec domain.Record, col string) (any, bool) {
	v, ok := rec[col]
	if !ok {
		for k, val := range rec {
			if strings.EqualFold(strings.TrimSpace(k), col) {
				v, ok = val, true
				break
			}
		}
	}
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func toNumber(raw any) (float64, error) {
	if s, isString := raw.(string); isString {
		raw = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("non-numeric value %v", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %v", raw)
	}
	return v, nil
}
