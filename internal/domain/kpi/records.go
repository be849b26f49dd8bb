package kpi

import (
	"math"
	"time"

	"apar/internal/domain/weights"
)

// DedupeRecords keeps one record per KPI name, the one with the higher
// weightage. Ties keep the first. Order follows first occurrence.
func DedupeRecords(records []Record) []Record {
	out := make([]Record, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		i, seen := index[rec.KPIName]
		if !seen {
			index[rec.KPIName] = len(out)
			out = append(out, rec)
			continue
		}
		if rec.Weightage > out[i].Weightage {
			out[i] = rec
		}
	}
	return out
}

// ProjectChannelWeights maps each template KPI to its normalized weight in
// the project for the employee's type. Repeated profile names merge by
// channel maximum. KPIs absent from the profile or mapped to zero stay at zero
// and are kept out of the normalization pool.
func ProjectChannelWeights(project Project, employeeType weights.EmployeeType, template []Record) map[string]float64 {
	merged := weights.DedupePairs(project.Weights)
	profile := make(map[string]weights.KPIWeight, len(merged))
	for _, w := range merged {
		profile[w.Name] = w
	}
	pool := make([]weights.Weight, 0, len(template))
	for _, rec := range template {
		v := profile[rec.KPIName].For(employeeType)
		if v > 0 && !math.IsInf(v, 0) {
			pool = append(pool, weights.Weight{Name: rec.KPIName, Value: v})
		}
	}
	return weights.ToMap(weights.Normalize(pool))
}

// BuildProjectRecords clones the default template into a project-specific set
// weighted for the project.
func BuildProjectRecords(project Project, employee Employee, template []Record, now time.Time) []Record {
	template = DedupeRecords(template)
	applied := ProjectChannelWeights(project, employee.Type, template)

	out := make([]Record, 0, len(template))
	for _, def := range template {
		out = append(out, Record{
			EmployeeID:        employee.ID,
			KPIName:           def.KPIName,
			Description:       def.Description,
			Unit:              def.Unit,
			Target:            def.Target,
			Weightage:         applied[def.KPIName],
			OriginalWeightage: def.Weightage,
			Status:            RecordStatusNotStarted,
			IsProjectSpecific: true,
			ProjectID:         project.ID,
			ProjectName:       project.Name,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return out
}

// BuildDefaultRecords creates the equal-share template for an employee type
// from catalog definitions.
func BuildDefaultRecords(defs []weights.Definition, employee Employee, now time.Time) []Record {
	pool := make([]weights.Weight, 0, len(defs))
	for _, def := range defs {
		pool = append(pool, weights.Weight{Name: def.Name, Value: 1})
	}
	shares := weights.ToMap(weights.Normalize(pool))

	out := make([]Record, 0, len(defs))
	for _, def := range defs {
		out = append(out, Record{
			EmployeeID:        employee.ID,
			KPIName:           def.Name,
			Description:       def.Description,
			Unit:              def.Unit,
			Target:            def.Target,
			Weightage:         shares[def.Name],
			OriginalWeightage: shares[def.Name],
			Status:            RecordStatusNotStarted,
			IsDefault:         true,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return DedupeRecords(out)
}

func activeWeightages(records []Record) []weights.Weight {
	out := make([]weights.Weight, 0, len(records))
	for _, rec := range records {
		out = append(out, weights.Weight{Name: rec.KPIName, Value: rec.Weightage})
	}
	return out
}
