// Package weights turns arbitrary named weights into percentage distributions
// that sum to exactly 100.
package weights

import "math"

const (
	// Total is the value every non-empty normalized distribution sums to.
	Total = 100.0

	// DriftEpsilon is the largest rounding drift left uncorrected.
	DriftEpsilon = 0.0001

	// DefaultTolerance is used by every validator and total check.
	DefaultTolerance = 0.5

	// MinTrackedWeight is the smallest percentage tracked as its own record
	// by the report-driven recalculation.
	MinTrackedWeight = 5.0

	// MaxWeight bounds a single percentage.
	MaxWeight = 100.0
)

// Weight is a single named raw or normalized value.
type Weight struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// EmployeeType selects which channel of a KPIWeight applies to an employee.
type EmployeeType string

const (
	EmployeeTypeField EmployeeType = "Field"
	EmployeeTypeHQ    EmployeeType = "HQ"
)

func (t EmployeeType) Valid() bool {
	return t == EmployeeTypeField || t == EmployeeTypeHQ
}

// KPIWeight pairs the field and headquarters weights of one KPI.
type KPIWeight struct {
	Name        string  `json:"name" yaml:"name"`
	FieldWeight float64 `json:"fieldWeight" yaml:"fieldWeight"`
	HQWeight    float64 `json:"hqWeight" yaml:"hqWeight"`
}

// For returns the channel weight used for employees of type t.
func (w KPIWeight) For(t EmployeeType) float64 {
	if t == EmployeeTypeHQ {
		return w.HQWeight
	}
	return w.FieldWeight
}

// Channel extracts one channel of pairs as plain weights, keeping order.
func Channel(pairs []KPIWeight, t EmployeeType) []Weight {
	out := make([]Weight, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Weight{Name: p.Name, Value: p.For(t)})
	}
	return out
}

// Sum adds every value, including non-positive ones.
func Sum(ws []Weight) float64 {
	var total float64
	for _, w := range ws {
		total += w.Value
	}
	return total
}

// ToMap indexes ws by name. Later duplicates overwrite earlier ones.
func ToMap(ws []Weight) map[string]float64 {
	out := make(map[string]float64, len(ws))
	for _, w := range ws {
		out[w.Name] = w.Value
	}
	return out
}

// Round rounds v half away from zero to two decimals.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
