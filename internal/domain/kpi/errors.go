package kpi

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProjectNotFound     = errors.New("project not found")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrNoWeightProfile     = errors.New("project has no kpi weight profile")
	ErrNoApplicableWeights = errors.New("project weights do not cover any of the employee's kpis")
	ErrNoDefaultKPIs       = errors.New("employee has no default kpis, add default KPIs first")
	ErrDefaultKPIsExist    = errors.New("employee already has default kpis")
	ErrScopeMismatch       = errors.New("employee kpis are scoped to another project")
	ErrAlreadyMember       = errors.New("employee already assigned to project")
)
