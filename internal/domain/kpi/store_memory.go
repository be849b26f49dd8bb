package kpi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"apar/internal/domain/weights"
)

// MemoryStore is an in-process StoreAPI. Transactions work on a private copy
// of the employee's rows which is swapped in only when fn succeeds.
type MemoryStore struct {
	mu        sync.RWMutex
	projects  map[string]Project
	order     []string
	members   map[string][]string
	employees map[string]Employee
	tenants   map[string]string
	records   map[string][]Record
	reports   map[string][]DailyReport

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	// BeforeInsert, when set, runs before every InsertRecords and can fail
	// the transaction.
	BeforeInsert func(records []Record) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:  map[string]Project{},
		members:   map[string][]string{},
		employees: map[string]Employee{},
		tenants:   map[string]string{},
		records:   map[string][]Record{},
		reports:   map[string][]DailyReport{},
		locks:     map[string]*sync.Mutex{},
	}
}

func (m *MemoryStore) CreateProject(_ context.Context, tenantID string, project Project) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	project.ID = uuid.NewString()
	project.Weights = cloneWeights(project.Weights)
	project.CreatedAt, project.UpdatedAt = now, now
	m.projects[project.ID] = project
	m.tenants[project.ID] = tenantID
	m.order = append(m.order, project.ID)
	return project, nil
}

func (m *MemoryStore) GetProject(_ context.Context, tenantID, projectID string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	project, ok := m.projects[projectID]
	if !ok || m.tenants[projectID] != tenantID {
		return Project{}, ErrProjectNotFound
	}
	project.Weights = cloneWeights(project.Weights)
	return project, nil
}

func (m *MemoryStore) ListProjects(_ context.Context, tenantID string) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Project
	for i := len(m.order) - 1; i >= 0; i-- {
		id := m.order[i]
		if m.tenants[id] != tenantID {
			continue
		}
		project := m.projects[id]
		project.Weights = cloneWeights(project.Weights)
		out = append(out, project)
	}
	return out, nil
}

func (m *MemoryStore) ReplaceProjectWeights(_ context.Context, tenantID, projectID string, ws []weights.KPIWeight, origin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[projectID]
	if !ok || m.tenants[projectID] != tenantID {
		return ErrProjectNotFound
	}
	project.Weights = cloneWeights(ws)
	project.WeightOrigin = origin
	project.UpdatedAt = time.Now().UTC()
	m.projects[projectID] = project
	return nil
}

func (m *MemoryStore) AddProjectMember(_ context.Context, tenantID, projectID, employeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok || m.tenants[projectID] != tenantID {
		return ErrProjectNotFound
	}
	if _, ok := m.employees[employeeID]; !ok || m.tenants[employeeID] != tenantID {
		return ErrEmployeeNotFound
	}
	for _, id := range m.members[projectID] {
		if id == employeeID {
			return ErrAlreadyMember
		}
	}
	m.members[projectID] = append(m.members[projectID], employeeID)
	return nil
}

func (m *MemoryStore) ProjectMembers(_ context.Context, tenantID, projectID string) ([]Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.projects[projectID]; !ok || m.tenants[projectID] != tenantID {
		return nil, ErrProjectNotFound
	}
	out := make([]Employee, 0, len(m.members[projectID]))
	for _, id := range m.members[projectID] {
		out = append(out, m.employees[id])
	}
	return out, nil
}

func (m *MemoryStore) CreateEmployee(_ context.Context, tenantID string, employee Employee) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	employee.ID = uuid.NewString()
	employee.ActiveProjectID = ""
	employee.CreatedAt = time.Now().UTC()
	m.employees[employee.ID] = employee
	m.tenants[employee.ID] = tenantID
	return employee, nil
}

func (m *MemoryStore) GetEmployee(_ context.Context, tenantID, employeeID string) (Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	employee, ok := m.employees[employeeID]
	if !ok || m.tenants[employeeID] != tenantID {
		return Employee{}, ErrEmployeeNotFound
	}
	return employee, nil
}

func (m *MemoryStore) ListRecords(_ context.Context, tenantID, employeeID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.employees[employeeID]; !ok || m.tenants[employeeID] != tenantID {
		return nil, ErrEmployeeNotFound
	}
	out := append([]Record(nil), m.records[employeeID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].IsProjectSpecific && out[j].IsProjectSpecific
	})
	return out, nil
}

func (m *MemoryStore) CountDefaultKPIs(_ context.Context, tenantID, employeeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.employees[employeeID]; !ok || m.tenants[employeeID] != tenantID {
		return 0, ErrEmployeeNotFound
	}
	count := 0
	for _, rec := range m.records[employeeID] {
		if rec.IsDefault {
			count++
		}
	}
	return count, nil
}

// Reports returns the daily reports stored for an employee.
func (m *MemoryStore) Reports(employeeID string) []DailyReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]DailyReport(nil), m.reports[employeeID]...)
}

func (m *MemoryStore) employeeLock(employeeID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[employeeID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[employeeID] = l
	}
	return l
}

func (m *MemoryStore) WithEmployeeLock(ctx context.Context, tenantID, employeeID string, fn func(ctx context.Context, tx TxStore, employee Employee) error) error {
	lock := m.employeeLock(employeeID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	employee, ok := m.employees[employeeID]
	if !ok || m.tenants[employeeID] != tenantID {
		m.mu.RUnlock()
		return ErrEmployeeNotFound
	}
	tx := &memoryTx{
		store:    m,
		employee: employee,
		records:  append([]Record(nil), m.records[employeeID]...),
	}
	m.mu.RUnlock()

	if err := fn(ctx, tx, employee); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[employeeID] = tx.employee
	m.records[employeeID] = tx.records
	m.reports[employeeID] = append(m.reports[employeeID], tx.reports...)
	return nil
}

type memoryTx struct {
	store    *MemoryStore
	employee Employee
	records  []Record
	reports  []DailyReport
}

func (t *memoryTx) filter(keep func(Record) bool) []Record {
	var out []Record
	for _, rec := range t.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (t *memoryTx) DefaultKPIs(context.Context) ([]Record, error) {
	return t.filter(func(r Record) bool { return r.IsDefault }), nil
}

func (t *memoryTx) ProjectKPIs(context.Context) ([]Record, error) {
	return t.filter(func(r Record) bool { return r.IsProjectSpecific }), nil
}

func (t *memoryTx) DeleteProjectKPIs(context.Context) (int, error) {
	before := len(t.records)
	t.records = t.filter(func(r Record) bool { return !r.IsProjectSpecific })
	return before - len(t.records), nil
}

func (t *memoryTx) InsertRecords(_ context.Context, records []Record) (int, error) {
	if hook := t.store.BeforeInsert; hook != nil {
		if err := hook(records); err != nil {
			return 0, err
		}
	}
	now := time.Now().UTC()
	for i := range records {
		records[i].ID = uuid.NewString()
		records[i].EmployeeID = t.employee.ID
		records[i].CreatedAt, records[i].UpdatedAt = now, now
	}
	t.records = append(t.records, records...)
	return len(records), nil
}

func (t *memoryTx) UpdateRecord(_ context.Context, record Record) error {
	for i := range t.records {
		if t.records[i].ID != record.ID {
			continue
		}
		t.records[i].Weightage = record.Weightage
		t.records[i].AchievedValue = record.AchievedValue
		t.records[i].Score = record.Score
		t.records[i].Status = record.Status
		t.records[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return fmt.Errorf("%w: record %s not found", ErrInvalidInput, record.ID)
}

func (t *memoryTx) SetActiveProject(_ context.Context, projectID string) error {
	t.employee.ActiveProjectID = projectID
	return nil
}

func (t *memoryTx) CreateDailyReport(_ context.Context, report DailyReport) (string, error) {
	report.ID = uuid.NewString()
	report.EmployeeID = t.employee.ID
	report.CreatedAt = time.Now().UTC()
	t.reports = append(t.reports, report)
	return report.ID, nil
}

func cloneWeights(ws []weights.KPIWeight) []weights.KPIWeight {
	if ws == nil {
		return nil
	}
	return append([]weights.KPIWeight(nil), ws...)
}
