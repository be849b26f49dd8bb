package kpi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"apar/internal/domain/weights"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const projectColumns = `id, name, description, department, location, category, weights_json, weight_origin, created_at, updated_at`

const employeeColumns = `id, name, designation, employee_type, COALESCE(active_project_id::text, ''), created_at`

const recordColumns = `id, employee_id, kpi_name, description, unit, target, achieved_value, score,
  weightage, original_weightage, status, is_default, is_project_specific,
  COALESCE(project_id::text, ''), project_name, created_at, updated_at`

var copyColumns = []string{
	"id", "tenant_id", "employee_id", "kpi_name", "description", "unit", "target", "achieved_value", "score",
	"weightage", "original_weightage", "status", "is_default", "is_project_specific", "project_id", "project_name",
	"created_at", "updated_at",
}

func (s *Store) CreateProject(ctx context.Context, tenantID string, project Project) (Project, error) {
	weightsJSON, err := json.Marshal(project.Weights)
	if err != nil {
		return Project{}, err
	}
	row := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_projects (tenant_id, name, description, department, location, category, weights_json, weight_origin)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING `+projectColumns,
		tenantID, project.Name, project.Description, project.Department, project.Location, project.Category, weightsJSON, project.WeightOrigin)
	return scanProject(row)
}

func (s *Store) GetProject(ctx context.Context, tenantID, projectID string) (Project, error) {
	if !validID(projectID) {
		return Project{}, ErrProjectNotFound
	}
	row := s.DB.QueryRow(ctx, `SELECT `+projectColumns+` FROM kpi_projects WHERE tenant_id = $1 AND id = $2`, tenantID, projectID)
	project, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrProjectNotFound
	}
	return project, err
}

func (s *Store) ListProjects(ctx context.Context, tenantID string) ([]Project, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+projectColumns+` FROM kpi_projects WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, project)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceProjectWeights(ctx context.Context, tenantID, projectID string, ws []weights.KPIWeight, origin string) error {
	if !validID(projectID) {
		return ErrProjectNotFound
	}
	weightsJSON, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE kpi_projects
    SET weights_json = $1, weight_origin = $2, updated_at = now()
    WHERE tenant_id = $3 AND id = $4
  `, weightsJSON, origin, tenantID, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// AddProjectMember inserts the membership only when both the project and the
// employee belong to tenantID.
func (s *Store) AddProjectMember(ctx context.Context, tenantID, projectID, employeeID string) error {
	if !validID(projectID) {
		return ErrProjectNotFound
	}
	if !validID(employeeID) {
		return ErrEmployeeNotFound
	}
	var projectOK, employeeOK, inserted bool
	if err := s.DB.QueryRow(ctx, `
    WITH p AS (SELECT id FROM kpi_projects WHERE tenant_id = $1 AND id = $2),
         e AS (SELECT id FROM employees WHERE tenant_id = $1 AND id = $3),
         ins AS (
           INSERT INTO project_members (tenant_id, project_id, employee_id)
           SELECT $1, p.id, e.id FROM p, e
           ON CONFLICT (project_id, employee_id) DO NOTHING
           RETURNING 1
         )
    SELECT EXISTS (SELECT 1 FROM p), EXISTS (SELECT 1 FROM e), EXISTS (SELECT 1 FROM ins)
  `, tenantID, projectID, employeeID).Scan(&projectOK, &employeeOK, &inserted); err != nil {
		return err
	}
	switch {
	case !projectOK:
		return ErrProjectNotFound
	case !employeeOK:
		return ErrEmployeeNotFound
	case !inserted:
		return ErrAlreadyMember
	}
	return nil
}

func (s *Store) ProjectMembers(ctx context.Context, tenantID, projectID string) ([]Employee, error) {
	if !validID(projectID) {
		return nil, ErrProjectNotFound
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kpi_projects WHERE tenant_id = $1 AND id = $2)`, tenantID, projectID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProjectNotFound
	}
	rows, err := s.DB.Query(ctx, `
    SELECT e.id, e.name, e.designation, e.employee_type, COALESCE(e.active_project_id::text, ''), e.created_at
    FROM project_members m
    JOIN employees e ON e.id = m.employee_id AND e.tenant_id = m.tenant_id
    WHERE m.tenant_id = $1 AND m.project_id = $2
    ORDER BY m.created_at
  `, tenantID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Employee, 0)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, employee)
	}
	return out, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, tenantID string, employee Employee) (Employee, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO employees (tenant_id, name, designation, employee_type)
    VALUES ($1,$2,$3,$4)
    RETURNING `+employeeColumns,
		tenantID, employee.Name, employee.Designation, string(employee.Type))
	return scanEmployee(row)
}

func (s *Store) GetEmployee(ctx context.Context, tenantID, employeeID string) (Employee, error) {
	if !validID(employeeID) {
		return Employee{}, ErrEmployeeNotFound
	}
	row := s.DB.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE tenant_id = $1 AND id = $2`, tenantID, employeeID)
	employee, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return employee, err
}

func (s *Store) ListRecords(ctx context.Context, tenantID, employeeID string) ([]Record, error) {
	if !validID(employeeID) {
		return nil, ErrEmployeeNotFound
	}
	return queryRecords(ctx, s.DB, `
    SELECT `+recordColumns+`
    FROM employee_kpis
    WHERE tenant_id = $1 AND employee_id = $2
    ORDER BY is_project_specific, created_at, kpi_name
  `, tenantID, employeeID)
}

func (s *Store) CountDefaultKPIs(ctx context.Context, tenantID, employeeID string) (int, error) {
	if !validID(employeeID) {
		return 0, ErrEmployeeNotFound
	}
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM employee_kpis
    WHERE tenant_id = $1 AND employee_id = $2 AND is_default
  `, tenantID, employeeID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) WithEmployeeLock(ctx context.Context, tenantID, employeeID string, fn func(ctx context.Context, tx TxStore, employee Employee) error) error {
	if !validID(employeeID) {
		return ErrEmployeeNotFound
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("kpi tx rollback failed", "employeeId", employeeID, "err", rbErr)
		}
	}()

	row := tx.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, employeeID)
	employee, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEmployeeNotFound
	}
	if err != nil {
		return err
	}

	if err := fn(ctx, &pgTx{tx: tx, tenantID: tenantID, employeeID: employeeID}, employee); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx         pgx.Tx
	tenantID   string
	employeeID string
}

func (t *pgTx) DefaultKPIs(ctx context.Context) ([]Record, error) {
	return queryRecords(ctx, t.tx, `
    SELECT `+recordColumns+`
    FROM employee_kpis
    WHERE tenant_id = $1 AND employee_id = $2 AND is_default
    ORDER BY created_at, kpi_name
  `, t.tenantID, t.employeeID)
}

func (t *pgTx) ProjectKPIs(ctx context.Context) ([]Record, error) {
	return queryRecords(ctx, t.tx, `
    SELECT `+recordColumns+`
    FROM employee_kpis
    WHERE tenant_id = $1 AND employee_id = $2 AND is_project_specific
    ORDER BY created_at, kpi_name
  `, t.tenantID, t.employeeID)
}

func (t *pgTx) DeleteProjectKPIs(ctx context.Context) (int, error) {
	tag, err := t.tx.Exec(ctx, `
    DELETE FROM employee_kpis
    WHERE tenant_id = $1 AND employee_id = $2 AND is_project_specific
  `, t.tenantID, t.employeeID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// InsertRecords bulk loads records with COPY. Record IDs are assigned here.
func (t *pgTx) InsertRecords(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tenantUUID, err := uuid.Parse(t.tenantID)
	if err != nil {
		return 0, fmt.Errorf("%w: tenant id", ErrInvalidInput)
	}
	employeeUUID := uuid.MustParse(t.employeeID)
	now := time.Now().UTC()

	rows := make([][]any, 0, len(records))
	for i := range records {
		rec := &records[i]
		id := uuid.New()
		rec.ID = id.String()
		rec.EmployeeID = t.employeeID
		rec.CreatedAt, rec.UpdatedAt = now, now

		var projectID any
		if rec.ProjectID != "" {
			parsed, err := uuid.Parse(rec.ProjectID)
			if err != nil {
				return 0, fmt.Errorf("%w: project id", ErrInvalidInput)
			}
			projectID = parsed
		}
		rows = append(rows, []any{
			id, tenantUUID, employeeUUID, rec.KPIName, rec.Description, rec.Unit, rec.Target, rec.AchievedValue, rec.Score,
			rec.Weightage, rec.OriginalWeightage, rec.Status, rec.IsDefault, rec.IsProjectSpecific, projectID, rec.ProjectName,
			rec.CreatedAt, rec.UpdatedAt,
		})
	}

	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{"employee_kpis"}, copyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (t *pgTx) UpdateRecord(ctx context.Context, record Record) error {
	if !validID(record.ID) {
		return fmt.Errorf("%w: record id", ErrInvalidInput)
	}
	tag, err := t.tx.Exec(ctx, `
    UPDATE employee_kpis
    SET weightage = $1, achieved_value = $2, score = $3, status = $4, updated_at = now()
    WHERE tenant_id = $5 AND employee_id = $6 AND id = $7
  `, record.Weightage, record.AchievedValue, record.Score, record.Status, t.tenantID, t.employeeID, record.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: record %s not found", ErrInvalidInput, record.ID)
	}
	return nil
}

func (t *pgTx) SetActiveProject(ctx context.Context, projectID string) error {
	var value any
	if projectID != "" {
		value = projectID
	}
	_, err := t.tx.Exec(ctx, `
    UPDATE employees SET active_project_id = $1
    WHERE tenant_id = $2 AND id = $3
  `, value, t.tenantID, t.employeeID)
	return err
}

func (t *pgTx) CreateDailyReport(ctx context.Context, report DailyReport) (string, error) {
	progressJSON, err := json.Marshal(report.Progress)
	if err != nil {
		return "", err
	}
	var id string
	if err := t.tx.QueryRow(ctx, `
    INSERT INTO daily_reports (tenant_id, employee_id, project_id, report_date, summary, progress_json)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, t.tenantID, t.employeeID, report.ProjectID, report.ReportDate, report.Summary, progressJSON).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryRecords(ctx context.Context, q querier, sql string, args ...any) ([]Record, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.KPIName, &rec.Description, &rec.Unit, &rec.Target, &rec.AchievedValue, &rec.Score,
			&rec.Weightage, &rec.OriginalWeightage, &rec.Status, &rec.IsDefault, &rec.IsProjectSpecific,
			&rec.ProjectID, &rec.ProjectName, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanProject(row pgx.Row) (Project, error) {
	var project Project
	var weightsJSON []byte
	if err := row.Scan(&project.ID, &project.Name, &project.Description, &project.Department, &project.Location, &project.Category,
		&weightsJSON, &project.WeightOrigin, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return Project{}, err
	}
	if len(weightsJSON) > 0 {
		if err := json.Unmarshal(weightsJSON, &project.Weights); err != nil {
			return Project{}, fmt.Errorf("decode project weights: %w", err)
		}
	}
	return project, nil
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var employee Employee
	var employeeType string
	if err := row.Scan(&employee.ID, &employee.Name, &employee.Designation, &employeeType, &employee.ActiveProjectID, &employee.CreatedAt); err != nil {
		return Employee{}, err
	}
	employee.Type = weights.EmployeeType(employeeType)
	return employee, nil
}

// validID rejects malformed ids before they reach a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
