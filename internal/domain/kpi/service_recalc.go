package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"apar/internal/domain/weights"
)

// SubmitDailyReport stores a progress report and recalculates the employee's
// KPI records for the report's project.
func (s *Service) SubmitDailyReport(ctx context.Context, tenantID, employeeID string, in DailyReportInput) (RecalcResult, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.ProjectID == "" {
		return RecalcResult{}, fmt.Errorf("%w: projectId is required", ErrInvalidInput)
	}
	if in.ReportDate.IsZero() {
		in.ReportDate = s.now()
	}
	for name, v := range in.Progress {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return RecalcResult{}, fmt.Errorf("%w: progress for %q must be a non-negative number", ErrInvalidInput, name)
		}
	}
	return s.RecalculateFromReport(ctx, tenantID, employeeID, in)
}

// RecalculateFromReport updates the employee's project-specific records from
// the project's profile without replacing the set. KPIs whose normalized
// weight falls below weights.MinTrackedWeight are neither created nor
// updated. Existing records are matched by name; missing ones are created
// from the default template or the catalog.
func (s *Service) RecalculateFromReport(ctx context.Context, tenantID, employeeID string, in DailyReportInput) (RecalcResult, error) {
	result, err := s.recalculate(ctx, tenantID, employeeID, in)
	if s.Metrics != nil {
		s.Metrics.ObserveRecalc(outcome(err), len(result.Skipped))
	}
	if err != nil {
		return RecalcResult{}, err
	}
	s.publish(EventReportRecalculated, map[string]any{
		"tenantId":   tenantID,
		"employeeId": employeeID,
		"projectId":  result.ProjectID,
		"reportId":   result.ReportID,
		"updated":    result.Updated,
		"created":    result.Created,
		"skipped":    result.Skipped,
	})
	return result, nil
}

func (s *Service) recalculate(ctx context.Context, tenantID, employeeID string, in DailyReportInput) (RecalcResult, error) {
	project, err := s.Store.GetProject(ctx, tenantID, in.ProjectID)
	if err != nil {
		return RecalcResult{}, err
	}
	if len(project.Weights) == 0 {
		return RecalcResult{}, ErrNoWeightProfile
	}
	employee, err := s.Store.GetEmployee(ctx, tenantID, employeeID)
	if err != nil {
		return RecalcResult{}, err
	}
	if employee.ActiveProjectID != "" && employee.ActiveProjectID != project.ID {
		return RecalcResult{}, ErrScopeMismatch
	}

	tracked, skipped := trackedWeights(project, employee.Type)
	result := RecalcResult{
		EmployeeID: employeeID,
		ProjectID:  project.ID,
		Skipped:    skipped,
		Weights:    map[string]float64{},
	}

	err = s.Store.WithEmployeeLock(ctx, tenantID, employeeID, func(ctx context.Context, tx TxStore, locked Employee) error {
		if locked.ActiveProjectID != "" && locked.ActiveProjectID != project.ID {
			return ErrScopeMismatch
		}
		existing, err := tx.ProjectKPIs(ctx)
		if err != nil {
			return err
		}
		template, err := tx.DefaultKPIs(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]Record, len(existing))
		for _, rec := range DedupeRecords(existing) {
			byName[rec.KPIName] = rec
		}
		templateByName := make(map[string]Record, len(template))
		for _, rec := range DedupeRecords(template) {
			templateByName[rec.KPIName] = rec
		}

		var created []Record
		for _, w := range tracked {
			progress := in.Progress[w.Name]
			result.Weights[w.Name] = w.Value
			if rec, ok := byName[w.Name]; ok {
				rec.Weightage = w.Value
				rec.AchievedValue += progress
				rec.Score = KPIScore(rec.AchievedValue, rec.Target)
				rec.Status = RecordStatus(rec.Score)
				if err := tx.UpdateRecord(ctx, rec); err != nil {
					return err
				}
				result.Updated++
				continue
			}
			rec := s.newTrackedRecord(w, templateByName, project, locked)
			rec.AchievedValue = progress
			rec.Score = KPIScore(rec.AchievedValue, rec.Target)
			rec.Status = RecordStatus(rec.Score)
			created = append(created, rec)
		}
		if len(created) > 0 {
			n, err := tx.InsertRecords(ctx, created)
			if err != nil {
				return err
			}
			result.Created = n
		}
		if locked.ActiveProjectID == "" {
			if err := tx.SetActiveProject(ctx, project.ID); err != nil {
				return err
			}
		}

		reportID, err := tx.CreateDailyReport(ctx, DailyReport{
			EmployeeID: locked.ID,
			ProjectID:  project.ID,
			ReportDate: in.ReportDate,
			Summary:    in.Summary,
			Progress:   in.Progress,
		})
		if err != nil {
			return err
		}
		result.ReportID = reportID
		return nil
	})
	if err != nil {
		return RecalcResult{}, err
	}
	if len(skipped) > 0 {
		slog.Debug("kpis below tracking threshold", "employeeId", employeeID, "projectId", project.ID, "skipped", skipped)
	}
	return result, nil
}

// trackedWeights normalizes the project's channel for the employee type and
// splits it into tracked entries and names below the threshold.
func trackedWeights(project Project, employeeType weights.EmployeeType) ([]weights.Weight, []string) {
	pool := make([]weights.Weight, 0, len(project.Weights))
	for _, w := range weights.DedupePairs(project.Weights) {
		if v := w.For(employeeType); v > 0 {
			pool = append(pool, weights.Weight{Name: w.Name, Value: v})
		}
	}
	var tracked []weights.Weight
	var skipped []string
	for _, w := range weights.Normalize(pool) {
		if w.Value < weights.MinTrackedWeight {
			skipped = append(skipped, w.Name)
			continue
		}
		tracked = append(tracked, w)
	}
	return tracked, skipped
}

func (s *Service) newTrackedRecord(w weights.Weight, template map[string]Record, project Project, employee Employee) Record {
	rec := Record{
		EmployeeID:        employee.ID,
		KPIName:           w.Name,
		Weightage:         w.Value,
		IsProjectSpecific: true,
		ProjectID:         project.ID,
		ProjectName:       project.Name,
	}
	if def, ok := template[w.Name]; ok {
		rec.Description = def.Description
		rec.Unit = def.Unit
		rec.Target = def.Target
		rec.OriginalWeightage = def.Weightage
		return rec
	}
	if def, ok := s.Catalog.Lookup(w.Name); ok {
		rec.Description = def.Description
		rec.Unit = def.Unit
		rec.Target = def.Target
	}
	return rec
}
