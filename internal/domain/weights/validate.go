package weights

import (
	"fmt"
	"math"
)

type TotalResult struct {
	Valid bool    `json:"valid"`
	Total float64 `json:"total"`
	Error string  `json:"error,omitempty"`
}

type RangeViolation struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

type RangeResult struct {
	Valid      bool             `json:"valid"`
	Violations []RangeViolation `json:"violations,omitempty"`
}

// ValidateWeightTotal reports whether ws sums to 100 within tolerance. A
// non-positive tolerance selects DefaultTolerance.
func ValidateWeightTotal(ws []Weight, tolerance float64) TotalResult {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	total := Round(Sum(ws))
	switch {
	case len(ws) == 0:
		return TotalResult{Total: 0, Error: "no weights provided"}
	case math.IsNaN(total) || math.IsInf(total, 0):
		return TotalResult{Total: 0, Error: "weights contain non-finite values"}
	case math.Abs(total-Total) > tolerance:
		return TotalResult{Total: total, Error: fmt.Sprintf("weights sum to %.2f, expected %.0f (±%.2f)", total, Total, tolerance)}
	}
	return TotalResult{Valid: true, Total: total}
}

// ValidateWeightRange checks every positive weight lies in [min, max]. Zero
// weights mean "not tracked" and are not violations; negative or non-finite
// ones are.
func ValidateWeightRange(ws []Weight, min, max float64) RangeResult {
	if min <= 0 {
		min = MinTrackedWeight
	}
	if max <= 0 {
		max = MaxWeight
	}
	result := RangeResult{Valid: true}
	for _, w := range ws {
		var reason string
		switch {
		case math.IsNaN(w.Value) || math.IsInf(w.Value, 0):
			reason = "not a finite number"
		case w.Value < 0:
			reason = "negative weight"
		case w.Value == 0:
			continue
		case w.Value < min:
			reason = fmt.Sprintf("below minimum %.2f", min)
		case w.Value > max:
			reason = fmt.Sprintf("above maximum %.2f", max)
		default:
			continue
		}
		result.Valid = false
		result.Violations = append(result.Violations, RangeViolation{Name: w.Name, Value: w.Value, Reason: reason})
	}
	return result
}
