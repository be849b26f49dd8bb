package kpihandler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"apar/internal/domain/audit"
	"apar/internal/domain/kpi"
	"apar/internal/domain/weights"
	"apar/internal/transport/http/api"
	"apar/internal/transport/http/middleware"
	"apar/internal/transport/http/shared"
)

type createEmployeeRequest struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Type        string `json:"type"`
}

type dailyReportRequest struct {
	ProjectID  string             `json:"projectId"`
	ReportDate string             `json:"reportDate"`
	Summary    string             `json:"summary"`
	Progress   map[string]float64 `json:"progress"`
}

func parseEmployeeType(raw string) weights.EmployeeType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "field":
		return weights.EmployeeTypeField
	case "hq":
		return weights.EmployeeTypeHQ
	}
	return weights.EmployeeType(raw)
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload createEmployeeRequest
	if !decode(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.Required("type", payload.Type, "is required")
	v.Enum("type", payload.Type, []string{string(weights.EmployeeTypeField), string(weights.EmployeeTypeHQ)}, "must be Field or HQ")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	employee, err := h.Service.CreateEmployee(r.Context(), user.TenantID, kpi.EmployeeInput{
		Name:        payload.Name,
		Designation: payload.Designation,
		Type:        parseEmployeeType(payload.Type),
	})
	if err != nil {
		writeError(w, r, err, "employee_create_failed", "failed to create employee")
		return
	}
	h.record(r, user, audit.ActionEmployeeCreate, "employee", employee.ID, map[string]any{"name": employee.Name, "type": employee.Type})
	api.Created(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	employee, err := h.Service.GetEmployee(r.Context(), user.TenantID, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "employee_get_failed", "failed to load employee")
		return
	}
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDefaultKPIs(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	records, err := h.Service.CreateDefaultKPIs(r.Context(), user.TenantID, employeeID)
	if err != nil {
		writeError(w, r, err, "default_kpis_failed", "failed to create default kpis")
		return
	}
	h.record(r, user, audit.ActionDefaultKPIsCreate, "employee", employeeID, map[string]int{"count": len(records)})
	api.Created(w, records, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListKPIs(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	records, err := h.Service.ListKPIs(r.Context(), user.TenantID, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "kpi_list_failed", "failed to list kpis")
		return
	}
	if records == nil {
		records = []kpi.Record{}
	}
	api.Success(w, records, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeScore(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	card, err := h.Service.EmployeeScore(r.Context(), user.TenantID, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "score_failed", "failed to compute score")
		return
	}
	api.Success(w, card, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeScorePDF(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	employee, err := h.Service.GetEmployee(r.Context(), user.TenantID, employeeID)
	if err != nil {
		writeError(w, r, err, "score_failed", "failed to compute score")
		return
	}
	card, err := h.Service.EmployeeScore(r.Context(), user.TenantID, employeeID)
	if err != nil {
		writeError(w, r, err, "score_failed", "failed to compute score")
		return
	}

	var buf bytes.Buffer
	if err := kpi.RenderScoreCardPDF(&buf, employee, card, time.Now()); err != nil {
		writeError(w, r, err, "score_pdf_failed", "failed to render score card")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=apar-scorecard-"+employeeID+".pdf")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("score card write failed", "err", err)
	}
}

func (h *Handler) handleVerifyScope(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	report, err := h.Service.VerifyScope(r.Context(), user.TenantID, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "scope_check_failed", "failed to verify kpi scope")
		return
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload dailyReportRequest
	if !decode(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	v.Required("projectId", payload.ProjectID, "is required")
	reportDate := v.OptionalDate("reportDate", payload.ReportDate)
	for name, value := range payload.Progress {
		v.NonNegative("progress."+name, value)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	result, err := h.Service.SubmitDailyReport(r.Context(), user.TenantID, employeeID, kpi.DailyReportInput{
		ProjectID:  payload.ProjectID,
		ReportDate: reportDate,
		Summary:    payload.Summary,
		Progress:   payload.Progress,
	})
	if err != nil {
		writeError(w, r, err, "report_submit_failed", "failed to submit daily report")
		return
	}
	h.record(r, user, audit.ActionDailyReportSubmit, "employee", employeeID, map[string]any{
		"reportId":  result.ReportID,
		"projectId": result.ProjectID,
		"updated":   result.Updated,
		"created":   result.Created,
	})
	api.Created(w, result, middleware.GetRequestID(r.Context()))
}
