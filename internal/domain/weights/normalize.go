package weights

import (
	"math"
	"sort"
)

// Diagnostics describes what Normalize did to its input. It is informational
// only; the returned distribution never depends on how it is consumed.
type Diagnostics struct {
	Dropped       []string `json:"dropped,omitempty"`
	EqualSplit    bool     `json:"equalSplit,omitempty"`
	Correction    float64  `json:"correction,omitempty"`
	CorrectedName string   `json:"correctedName,omitempty"`
}

// Normalize converts raw weights into percentages summing to 100.
//
// Non-finite and non-positive values are dropped. When nothing usable remains,
// every original name gets an equal share. Rounding drift is assigned to the
// entry with the largest value, the first such entry on ties. Output keeps the
// input order. An empty input yields an empty, non-nil slice.
func Normalize(raw []Weight) []Weight {
	out, _ := NormalizeWithDiagnostics(raw)
	return out
}

func NormalizeWithDiagnostics(raw []Weight) ([]Weight, Diagnostics) {
	var diag Diagnostics
	if len(raw) == 0 {
		return []Weight{}, diag
	}

	kept := make([]Weight, 0, len(raw))
	var peak float64
	for _, w := range raw {
		if !usable(w.Value) {
			diag.Dropped = append(diag.Dropped, w.Name)
			continue
		}
		kept = append(kept, w)
		peak = math.Max(peak, w.Value)
	}

	// Values are scaled by the peak first so very large inputs cannot
	// overflow the total.
	var total float64
	for _, w := range kept {
		total += w.Value / peak
	}

	out := make([]Weight, 0, len(raw))
	if len(kept) == 0 || total <= 0 {
		diag.EqualSplit = true
		share := Round(Total / float64(len(raw)))
		for _, w := range raw {
			out = append(out, Weight{Name: w.Name, Value: share})
		}
	} else {
		for _, w := range kept {
			out = append(out, Weight{Name: w.Name, Value: Round(w.Value / peak / total * Total)})
		}
	}

	diag.Correction, diag.CorrectedName = correctDrift(out)
	return out, diag
}

// correctDrift adds the rounding remainder to the largest entry in place.
func correctDrift(ws []Weight) (float64, string) {
	if len(ws) == 0 {
		return 0, ""
	}
	diff := Total - Sum(ws)
	if math.Abs(diff) <= DriftEpsilon {
		return 0, ""
	}
	idx := largest(ws)
	ws[idx].Value = Round(ws[idx].Value + diff)
	return Round(diff), ws[idx].Name
}

func largest(ws []Weight) int {
	idx := 0
	for i := 1; i < len(ws); i++ {
		if ws[i].Value > ws[idx].Value {
			idx = i
		}
	}
	return idx
}

// NormalizeMap normalizes an unordered mapping. Keys are visited in sorted
// order so the drift tie-break is reproducible.
func NormalizeMap(raw map[string]float64) map[string]float64 {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]Weight, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, Weight{Name: name, Value: raw[name]})
	}
	return ToMap(Normalize(ordered))
}

// NormalizeDual normalizes the field and HQ channels independently. Every
// input name is present in the result; a name dropped from one channel gets 0
// there. Callers are expected to dedupe first.
func NormalizeDual(pairs []KPIWeight) []KPIWeight {
	out := make([]KPIWeight, 0, len(pairs))
	if len(pairs) == 0 {
		return out
	}

	field := ToMap(Normalize(Channel(pairs, EmployeeTypeField)))
	hq := ToMap(Normalize(Channel(pairs, EmployeeTypeHQ)))
	for _, p := range pairs {
		out = append(out, KPIWeight{
			Name:        p.Name,
			FieldWeight: field[p.Name],
			HQWeight:    hq[p.Name],
		})
	}
	return out
}
