package kpi

import (
	"context"

	"apar/internal/domain/weights"
)

type StoreAPI interface {
	CreateProject(ctx context.Context, tenantID string, project Project) (Project, error)
	GetProject(ctx context.Context, tenantID, projectID string) (Project, error)
	ListProjects(ctx context.Context, tenantID string) ([]Project, error)
	ReplaceProjectWeights(ctx context.Context, tenantID, projectID string, ws []weights.KPIWeight, origin string) error
	AddProjectMember(ctx context.Context, tenantID, projectID, employeeID string) error
	ProjectMembers(ctx context.Context, tenantID, projectID string) ([]Employee, error)
	CreateEmployee(ctx context.Context, tenantID string, employee Employee) (Employee, error)
	GetEmployee(ctx context.Context, tenantID, employeeID string) (Employee, error)
	ListRecords(ctx context.Context, tenantID, employeeID string) ([]Record, error)
	CountDefaultKPIs(ctx context.Context, tenantID, employeeID string) (int, error)
	// WithEmployeeLock runs fn in a single transaction holding an exclusive
	// lock on the employee. fn's writes commit only if it returns nil.
	WithEmployeeLock(ctx context.Context, tenantID, employeeID string, fn func(ctx context.Context, tx TxStore, employee Employee) error) error
}

// TxStore is bound to the locked employee; none of its methods can reach
// another employee's records.
type TxStore interface {
	DefaultKPIs(ctx context.Context) ([]Record, error)
	ProjectKPIs(ctx context.Context) ([]Record, error)
	DeleteProjectKPIs(ctx context.Context) (int, error)
	InsertRecords(ctx context.Context, records []Record) (int, error)
	UpdateRecord(ctx context.Context, record Record) error
	SetActiveProject(ctx context.Context, projectID string) error
	CreateDailyReport(ctx context.Context, report DailyReport) (string, error)
}
