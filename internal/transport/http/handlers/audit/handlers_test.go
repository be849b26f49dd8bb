package audithandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apar/internal/domain/audit"
	"apar/internal/domain/auth"
	"apar/internal/transport/http/middleware"
)

const testSecret = "audit-handler-test-secret-0123456789"

func newRouter(t *testing.T) (http.Handler, *audit.Service) {
	t.Helper()
	svc := audit.New(audit.NewMemoryStore())
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret, nil))
	NewHandler(svc, auth.StaticPermissions{}).RegisterRoutes(r)
	return r, svc
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: "u-1", TenantID: "t-1", RoleName: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestListEventsFiltersByAction(t *testing.T) {
	router, svc := newRouter(t)
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, "t-1", "u-1", audit.ActionProjectCreate, "kpi_project", "p-1", "req-1", "10.0.0.1", nil, map[string]string{"name": "Roads"}))
	require.NoError(t, svc.Record(ctx, "t-1", "u-1", audit.ActionWeightsApply, "employee", "e-1", "req-2", "10.0.0.1", nil, nil))
	require.NoError(t, svc.Record(ctx, "t-2", "u-9", audit.ActionProjectCreate, "kpi_project", "p-9", "req-3", "10.0.0.2", nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/audit/events?action="+audit.ActionProjectCreate, nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	var body struct {
		Success bool          `json:"success"`
		Data    []audit.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "p-1", body.Data[0].EntityID)
}

func TestExportEventsWritesCSV(t *testing.T) {
	router, svc := newRouter(t)
	require.NoError(t, svc.Record(context.Background(), "t-1", "u-1", audit.ActionEmployeeCreate, "employee", "e-7", "req-1", "10.0.0.1", nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/audit/events/export", nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,actor_id,action"))
	assert.Contains(t, lines[1], "e-7")
}

func TestAuditRequiresPermission(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
