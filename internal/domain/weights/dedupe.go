package weights

import "math"

// Dedupe collapses repeated names (exact, case-sensitive) keeping the highest
// value. Ties keep the first entry. Output follows first-occurrence order.
func Dedupe(entries []Weight) []Weight {
	out := make([]Weight, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		i, seen := index[e.Name]
		if !seen {
			index[e.Name] = len(out)
			out = append(out, e)
			continue
		}
		if greater(e.Value, out[i].Value) {
			out[i] = e
		}
	}
	return out
}

// DedupePairs merges repeated KPI names by taking the maximum of each channel
// independently.
func DedupePairs(entries []KPIWeight) []KPIWeight {
	out := make([]KPIWeight, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		i, seen := index[e.Name]
		if !seen {
			index[e.Name] = len(out)
			out = append(out, e)
			continue
		}
		if greater(e.FieldWeight, out[i].FieldWeight) {
			out[i].FieldWeight = e.FieldWeight
		}
		if greater(e.HQWeight, out[i].HQWeight) {
			out[i].HQWeight = e.HQWeight
		}
	}
	return out
}

// greater treats NaN as smaller than any number so a malformed duplicate never
// displaces a usable one.
func greater(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}
