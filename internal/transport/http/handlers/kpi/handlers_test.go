package kpihandler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apar/internal/domain/audit"
	"apar/internal/domain/auth"
	"apar/internal/domain/kpi"
	"apar/internal/domain/weights"
	"apar/internal/domain/weightsource"
	"apar/internal/platform/jobs"
	"apar/internal/transport/http/middleware"
)

const testSecret = "kpi-handler-test-secret-0123456789ab"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type harness struct {
	t      *testing.T
	router http.Handler
	audit  *audit.Service
	runs   *jobs.MemoryRunStore
	tokens map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := kpi.NewMemoryStore()
	svc := kpi.NewService(store, weightsource.NewResolver(weightsource.DefaultSource{}, nil, time.Second))
	auditSvc := audit.New(audit.NewMemoryStore())
	runs := jobs.NewMemoryRunStore()

	h := NewHandler(svc, auth.StaticPermissions{}, auditSvc, jobs.New(runs), middleware.NewMemoryIdempotencyStore())
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret, nil))
	h.RegisterRoutes(r)

	hs := &harness{t: t, router: r, audit: auditSvc, runs: runs, tokens: map[string]string{}}
	for _, role := range []string{auth.RoleAdmin, auth.RoleEmployee} {
		token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: "user-" + role, TenantID: "tenant-1", RoleName: role}, time.Hour)
		require.NoError(t, err)
		hs.tokens[role] = token
	}
	return hs
}

func (hs *harness) do(role, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	hs.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(hs.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+hs.tokens[role])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(hs.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (hs *harness) createProject(name string) kpi.Project {
	hs.t.Helper()
	rec, env := hs.do(auth.RoleAdmin, http.MethodPost, "/projects", map[string]string{"name": name, "department": "Public Works"})
	require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	var project kpi.Project
	require.NoError(hs.t, json.Unmarshal(env.Data, &project))
	return project
}

func (hs *harness) createEmployee(typ string, withDefaults bool) kpi.Employee {
	hs.t.Helper()
	rec, env := hs.do(auth.RoleAdmin, http.MethodPost, "/employees", map[string]string{"name": "Meera", "designation": "Engineer", "type": typ})
	require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	var employee kpi.Employee
	require.NoError(hs.t, json.Unmarshal(env.Data, &employee))
	if withDefaults {
		rec, _ = hs.do(auth.RoleAdmin, http.MethodPost, "/employees/"+employee.ID+"/default-kpis", nil)
		require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	return employee
}

func TestCreateProjectResolvesWeights(t *testing.T) {
	hs := newHarness(t)
	project := hs.createProject("Rural Roads")

	assert.Equal(t, weightsource.OriginDefault, project.WeightOrigin)
	require.NotEmpty(t, project.Weights)
	var field, hq float64
	for _, w := range project.Weights {
		field += w.FieldWeight
		hq += w.HQWeight
	}
	assert.InDelta(t, 100, field, 0.01)
	assert.InDelta(t, 100, hq, 0.01)

	rec, _ := hs.do(auth.RoleAdmin, http.MethodGet, "/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	total, err := hs.audit.Count(context.Background(), "tenant-1", audit.Filter{Action: audit.ActionProjectCreate})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestCreateProjectValidation(t *testing.T) {
	hs := newHarness(t)
	rec, env := hs.do(auth.RoleAdmin, http.MethodPost, "/projects", map[string]string{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, _ = hs.do(auth.RoleAdmin, http.MethodPost, "/projects", map[string]any{"name": "x", "unexpected": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProjectIsIdempotent(t *testing.T) {
	hs := newHarness(t)
	payload := map[string]string{"name": "Canal Lining"}

	first, firstEnv := hs.do(auth.RoleAdmin, http.MethodPost, "/projects", payload, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second, secondEnv := hs.do(auth.RoleAdmin, http.MethodPost, "/projects", payload, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(firstEnv.Data), string(secondEnv.Data))

	conflict, _ := hs.do(auth.RoleAdmin, http.MethodPost, "/projects", map[string]string{"name": "Other"}, "Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

func TestEmployeeRoleCannotCreateProject(t *testing.T) {
	hs := newHarness(t)
	rec, _ := hs.do(auth.RoleEmployee, http.MethodPost, "/projects", map[string]string{"name": "Denied"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = hs.do("", http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownProjectIsNotFound(t *testing.T) {
	hs := newHarness(t)
	rec, env := hs.do(auth.RoleAdmin, http.MethodGet, "/projects/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "project_not_found", env.Error.Code)
}

func TestDefaultKPIsConflict(t *testing.T) {
	hs := newHarness(t)
	employee := hs.createEmployee("Field", true)
	rec, env := hs.do(auth.RoleAdmin, http.MethodPost, "/employees/"+employee.ID+"/default-kpis", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "default_kpis_exist", env.Error.Code)
}

func TestApplyWithoutDefaultsIsPreconditionFailed(t *testing.T) {
	hs := newHarness(t)
	project := hs.createProject("Drainage")
	employee := hs.createEmployee("HQ", false)

	rec, env := hs.do(auth.RoleAdmin, http.MethodPost, "/projects/"+project.ID+"/employees/"+employee.ID+"/apply", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "no_default_kpis", env.Error.Code)
}

func TestApplyProjectWeightsFlow(t *testing.T) {
	hs := newHarness(t)
	project := hs.createProject("Bridge Repair")
	employee := hs.createEmployee("Field", true)

	rec, _ := hs.do(auth.RoleAdmin, http.MethodPost, "/projects/"+project.ID+"/members", map[string]string{"employeeId": employee.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, _ = hs.do(auth.RoleAdmin, http.MethodPost, "/projects/"+project.ID+"/members", map[string]string{"employeeId": employee.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env := hs.do(auth.RoleAdmin, http.MethodPost, "/projects/"+project.ID+"/employees/"+employee.ID+"/apply", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result kpi.ApplyResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Positive(t, result.UpdatedCount)
	assert.Zero(t, result.DeletedCount)
	var total float64
	for _, r := range result.Records {
		assert.True(t, r.IsProjectSpecific)
		total += r.Weightage
	}
	assert.InDelta(t, 100, total, 0.01)

	// Reapplying replaces the previous project set.
	rec, env = hs.do(auth.RoleAdmin, http.MethodPost, "/projects/"+project.ID+"/employees/"+employee.ID+"/apply", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, result.UpdatedCount, result.DeletedCount)

	rec, env = hs.do(auth.RoleEmployee, http.MethodGet, "/employees/"+employee.ID+"/scope", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scope kpi.ScopeReport
	require.NoError(t, json.Unmarshal(env.Data, &scope))
	assert.True(t, scope.Consistent)
	assert.Equal(t, project.ID, scope.ActiveProjectID)

	rec, env = hs.do(auth.RoleEmployee, http.MethodGet, "/employees/"+employee.ID+"/score", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var card kpi.ScoreCard
	require.NoError(t, json.Unmarshal(env.Data, &card))
	assert.Equal(t, kpi.ScopeProject, card.Scope)

	rec, _ = hs.do(auth.RoleEmployee, http.MethodGet, "/employees/"+employee.ID+"/score/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestRolloutRecordsJobRun(t *testing.T) {
	hs := newHarness(t)
	project := hs.createProject("Water Supply")
	for _, typ := range []string{"Field", "HQ"} {
		employee := hs.createEmployee(typ, true)
		rec, _ := hs.do(auth.RoleAdmin, http.MethodPost, "/projects/"+project.ID+"/members", map[string]string{"employeeId": employee.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := hs.do(auth.RoleAdmin, http.MethodPost, "/projects/"+project.ID+"/rollout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result kpi.RolloutResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Members)
	assert.Equal(t, 2, result.Applied)
	assert.Empty(t, result.Failed)

	rec, env = hs.do(auth.RoleAdmin, http.MethodGet, "/rollouts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []jobs.Run
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, jobs.StatusCompleted, runs[0].Status)
}

func TestSubmitReportValidation(t *testing.T) {
	hs := newHarness(t)
	employee := hs.createEmployee("Field", true)

	rec, env := hs.do(auth.RoleEmployee, http.MethodPost, "/employees/"+employee.ID+"/reports", map[string]any{
		"reportDate": "18-10-2026",
		"progress":   map[string]float64{"Site Inspections": -3},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestSubmitReportRecalculates(t *testing.T) {
	hs := newHarness(t)
	project := hs.createProject("Flood Relief")
	employee := hs.createEmployee("Field", true)

	rec, env := hs.do(auth.RoleEmployee, http.MethodPost, "/employees/"+employee.ID+"/reports", map[string]any{
		"projectId":  project.ID,
		"reportDate": "2026-10-18",
		"summary":    "inspected two sites",
		"progress":   map[string]float64{"Site Inspections": 2},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result kpi.RecalcResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.NotEmpty(t, result.ReportID)
	assert.Equal(t, project.ID, result.ProjectID)
}

func TestNormalizeEndpoint(t *testing.T) {
	hs := newHarness(t)
	rec, env := hs.do(auth.RoleEmployee, http.MethodPost, "/weights/normalize", map[string]any{
		"weights": []weights.Weight{{Name: "a", Value: 1}, {Name: "b", Value: 3}, {Name: "c", Value: 0}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out normalizeResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, map[string]float64{"a": 25, "b": 75}, weights.ToMap(out.Weights))
	assert.Equal(t, 100.0, out.Total)
	require.NotNil(t, out.Diagnostics)
	assert.Equal(t, []string{"c"}, out.Diagnostics.Dropped)

	rec, _ = hs.do(auth.RoleEmployee, http.MethodPost, "/weights/normalize", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNormalizePairsAgainstCatalog(t *testing.T) {
	hs := newHarness(t)
	rec, env := hs.do(auth.RoleEmployee, http.MethodPost, "/weights/normalize", map[string]any{
		"catalog": true,
		"pairs": []weights.KPIWeight{
			{Name: "Site Inspections", FieldWeight: 30, HQWeight: 10},
			{Name: "Made Up KPI", FieldWeight: 50, HQWeight: 50},
			{Name: "File Disposal", FieldWeight: 10, HQWeight: 30},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out normalizeResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, []string{"Made Up KPI"}, out.Rejected)
	require.Len(t, out.Pairs, 2)
	assert.Equal(t, 75.0, out.Pairs[0].FieldWeight)
	assert.Equal(t, 75.0, out.Pairs[1].HQWeight)
}

func TestValidateEndpoint(t *testing.T) {
	hs := newHarness(t)
	rec, env := hs.do(auth.RoleEmployee, http.MethodPost, "/weights/validate", map[string]any{
		"weights":   []weights.Weight{{Name: "a", Value: 60}, {Name: "b", Value: 39.8}},
		"tolerance": 0.5,
		"min":       0,
		"max":       100,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out validateResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.True(t, out.Valid)

	rec, env = hs.do(auth.RoleEmployee, http.MethodPost, "/weights/validate", map[string]any{
		"weights":   []weights.Weight{{Name: "a", Value: 60}, {Name: "b", Value: 30}},
		"tolerance": 0.5,
		"max":       100,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.False(t, out.Valid)
	assert.False(t, out.Total.Valid)
}
