package kpi

import (
	"context"
	"fmt"
	"strings"

	"apar/internal/domain/weights"
)

func (s *Service) CreateEmployee(ctx context.Context, tenantID string, in EmployeeInput) (Employee, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Employee{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return Employee{}, fmt.Errorf("%w: type must be %q or %q", ErrInvalidInput, weights.EmployeeTypeField, weights.EmployeeTypeHQ)
	}
	return s.Store.CreateEmployee(ctx, tenantID, Employee{
		Name:        in.Name,
		Designation: strings.TrimSpace(in.Designation),
		Type:        in.Type,
	})
}

func (s *Service) GetEmployee(ctx context.Context, tenantID, employeeID string) (Employee, error) {
	return s.Store.GetEmployee(ctx, tenantID, employeeID)
}

// CreateDefaultKPIs creates the employee's equal-share template from the
// catalog entries of their type. It runs once per employee.
func (s *Service) CreateDefaultKPIs(ctx context.Context, tenantID, employeeID string) ([]Record, error) {
	var out []Record
	err := s.Store.WithEmployeeLock(ctx, tenantID, employeeID, func(ctx context.Context, tx TxStore, employee Employee) error {
		existing, err := tx.DefaultKPIs(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrDefaultKPIsExist
		}
		records := BuildDefaultRecords(s.Catalog.ForType(employee.Type), employee, s.now())
		if len(records) == 0 {
			return fmt.Errorf("%w: no catalog kpis for type %q", ErrInvalidInput, employee.Type)
		}
		if _, err := tx.InsertRecords(ctx, records); err != nil {
			return err
		}
		out = records
		return nil
	})
	return out, err
}

func (s *Service) ListKPIs(ctx context.Context, tenantID, employeeID string) ([]Record, error) {
	return s.Store.ListRecords(ctx, tenantID, employeeID)
}

// ActiveRecords returns the project set when the employee is scoped to a
// project, the default template otherwise.
func ActiveRecords(employee Employee, records []Record) (string, []Record) {
	var out []Record
	if employee.ActiveProjectID != "" {
		for _, rec := range records {
			if rec.IsProjectSpecific && rec.ProjectID == employee.ActiveProjectID {
				out = append(out, rec)
			}
		}
		return ScopeProject, out
	}
	for _, rec := range records {
		if rec.IsDefault {
			out = append(out, rec)
		}
	}
	return ScopeDefault, out
}

func (s *Service) EmployeeScore(ctx context.Context, tenantID, employeeID string) (ScoreCard, error) {
	employee, err := s.Store.GetEmployee(ctx, tenantID, employeeID)
	if err != nil {
		return ScoreCard{}, err
	}
	records, err := s.Store.ListRecords(ctx, tenantID, employeeID)
	if err != nil {
		return ScoreCard{}, err
	}
	scope, active := ActiveRecords(employee, records)
	card := Aggregate(active)
	card.EmployeeID = employee.ID
	card.Scope = scope
	card.ProjectID = employee.ActiveProjectID
	return card, nil
}

// VerifyScope checks the one-active-project-set invariant against the stored
// scope key.
func (s *Service) VerifyScope(ctx context.Context, tenantID, employeeID string) (ScopeReport, error) {
	employee, err := s.Store.GetEmployee(ctx, tenantID, employeeID)
	if err != nil {
		return ScopeReport{}, err
	}
	records, err := s.Store.ListRecords(ctx, tenantID, employeeID)
	if err != nil {
		return ScopeReport{}, err
	}

	report := ScopeReport{EmployeeID: employee.ID, ActiveProjectID: employee.ActiveProjectID}
	seen := map[string]bool{}
	var active []Record
	for _, rec := range records {
		if !rec.IsProjectSpecific {
			continue
		}
		if rec.ProjectID != employee.ActiveProjectID {
			report.StrayRecords = append(report.StrayRecords, rec)
			continue
		}
		if seen[rec.KPIName] {
			report.DuplicateNames = append(report.DuplicateNames, rec.KPIName)
			continue
		}
		seen[rec.KPIName] = true
		active = append(active, rec)
	}
	report.Total = weights.Round(weights.Sum(activeWeightages(active)))
	report.Consistent = len(report.StrayRecords) == 0 && len(report.DuplicateNames) == 0
	return report, nil
}
