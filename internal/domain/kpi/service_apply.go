package kpi

import (
	"context"
	"errors"
	"log/slog"

	"apar/internal/domain/weights"
)

// ApplyProjectWeights replaces the employee's project-specific KPI set with a
// fresh clone of the default template weighted by the project's profile.
// Preconditions are checked before anything is written; the delete, insert
// and scope update then run in one transaction under the employee lock.
func (s *Service) ApplyProjectWeights(ctx context.Context, tenantID, projectID, employeeID string) (ApplyResult, error) {
	result, err := s.applyProjectWeights(ctx, tenantID, projectID, employeeID)
	if s.Metrics != nil {
		s.Metrics.ObserveApply(outcome(err), result.UpdatedCount)
	}
	if err != nil {
		return ApplyResult{}, err
	}
	slog.Info("kpi weights applied", "projectId", projectID, "employeeId", employeeID,
		"updated", result.UpdatedCount, "deleted", result.DeletedCount)
	s.publish(EventWeightsApplied, map[string]any{
		"tenantId":     tenantID,
		"projectId":    result.ProjectID,
		"employeeId":   result.EmployeeID,
		"updatedCount": result.UpdatedCount,
		"deletedCount": result.DeletedCount,
	})
	return result, nil
}

func (s *Service) applyProjectWeights(ctx context.Context, tenantID, projectID, employeeID string) (ApplyResult, error) {
	project, err := s.Store.GetProject(ctx, tenantID, projectID)
	if err != nil {
		return ApplyResult{}, err
	}
	if len(project.Weights) == 0 {
		return ApplyResult{}, ErrNoWeightProfile
	}
	if _, err := s.Store.GetEmployee(ctx, tenantID, employeeID); err != nil {
		return ApplyResult{}, err
	}
	count, err := s.Store.CountDefaultKPIs(ctx, tenantID, employeeID)
	if err != nil {
		return ApplyResult{}, err
	}
	if count == 0 {
		return ApplyResult{}, ErrNoDefaultKPIs
	}

	var result ApplyResult
	err = s.Store.WithEmployeeLock(ctx, tenantID, employeeID, func(ctx context.Context, tx TxStore, locked Employee) error {
		template, err := tx.DefaultKPIs(ctx)
		if err != nil {
			return err
		}
		if len(template) == 0 {
			return ErrNoDefaultKPIs
		}
		records := BuildProjectRecords(project, locked, template, s.now())
		if weights.Sum(activeWeightages(records)) == 0 {
			return ErrNoApplicableWeights
		}

		deleted, err := tx.DeleteProjectKPIs(ctx)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertRecords(ctx, records)
		if err != nil {
			return err
		}
		if inserted != len(records) {
			return errors.New("kpi bulk insert incomplete")
		}
		if err := tx.SetActiveProject(ctx, project.ID); err != nil {
			return err
		}

		result = ApplyResult{
			ProjectID:    project.ID,
			ProjectName:  project.Name,
			EmployeeID:   locked.ID,
			EmployeeName: locked.Name,
			UpdatedCount: inserted,
			DeletedCount: deleted,
			Records:      records,
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}
