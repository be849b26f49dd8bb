package kpihandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"apar/internal/domain/audit"
	"apar/internal/domain/auth"
	"apar/internal/domain/kpi"
	"apar/internal/domain/weights"
	"apar/internal/platform/jobs"
	"apar/internal/transport/http/api"
	"apar/internal/transport/http/middleware"
	"apar/internal/transport/http/shared"
)

type Handler struct {
	Service     *kpi.Service
	Perms       middleware.PermissionStore
	Audit       *audit.Service
	Jobs        *jobs.Service
	Idempotency middleware.IdempotencyStore
}

func NewHandler(service *kpi.Service, perms middleware.PermissionStore, auditSvc *audit.Service, jobSvc *jobs.Service, idem middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Jobs: jobSvc, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermKPIRead, h.Perms)
	projectsWrite := middleware.RequirePermission(auth.PermKPIProjectsWrite, h.Perms)
	analyze := middleware.RequirePermission(auth.PermKPIAnalyze, h.Perms)
	apply := middleware.RequirePermission(auth.PermKPIApply, h.Perms)
	employeesWrite := middleware.RequirePermission(auth.PermKPIEmployeesWrite, h.Perms)
	reportsWrite := middleware.RequirePermission(auth.PermKPIReportsWrite, h.Perms)

	r.Route("/projects", func(r chi.Router) {
		r.With(read).Get("/", h.handleListProjects)
		r.With(projectsWrite, middleware.Idempotent("kpi.projects.create", h.Idempotency)).Post("/", h.handleCreateProject)
		r.Route("/{projectID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGetProject)
			r.With(projectsWrite).Post("/weights/regenerate", h.handleRegenerateWeights)
			r.With(read).Get("/weights/preview", h.handlePreviewWeights)
			r.With(analyze).Post("/analysis", h.handleAnalyzeProject)
			r.With(read).Get("/members", h.handleListMembers)
			r.With(projectsWrite).Post("/members", h.handleAddMember)
			r.With(apply).Post("/employees/{employeeID}/apply", h.handleApplyWeights)
			r.With(apply, middleware.Idempotent("kpi.projects.rollout", h.Idempotency)).Post("/rollout", h.handleRollout)
		})
	})
	r.With(read).Get("/rollouts", h.handleListRollouts)
	r.Route("/employees", func(r chi.Router) {
		r.With(employeesWrite).Post("/", h.handleCreateEmployee)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGetEmployee)
			r.With(employeesWrite).Post("/default-kpis", h.handleCreateDefaultKPIs)
			r.With(read).Get("/kpis", h.handleListKPIs)
			r.With(read).Get("/score", h.handleEmployeeScore)
			r.With(read).Get("/score/pdf", h.handleEmployeeScorePDF)
			r.With(read).Get("/scope", h.handleVerifyScope)
			r.With(reportsWrite).Post("/reports", h.handleSubmitReport)
		})
	})
	r.Route("/weights", func(r chi.Router) {
		r.With(read).Get("/catalog", h.handleCatalog)
		r.With(read).Post("/normalize", h.handleNormalize)
		r.With(read).Post("/validate", h.handleValidate)
	})
}

func (h *Handler) catalog() *weights.Catalog {
	if h.Service != nil && h.Service.Catalog != nil {
		return h.Service.Catalog
	}
	return weights.DefaultCatalog
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, false
	}
	return user, true
}

// decode reads a JSON body. An empty body is accepted when optional is set.
func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := shared.DecodeJSON(r, dst)
	if err == nil || (optional && errors.Is(err, shared.ErrEmptyBody)) {
		return true
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
	return false
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, kpi.ErrProjectNotFound):
		api.Fail(w, http.StatusNotFound, "project_not_found", err.Error(), requestID)
	case errors.Is(err, kpi.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "employee_not_found", err.Error(), requestID)
	case errors.Is(err, kpi.ErrNoDefaultKPIs):
		api.Fail(w, http.StatusPreconditionFailed, "no_default_kpis", err.Error(), requestID)
	case errors.Is(err, kpi.ErrNoWeightProfile):
		api.Fail(w, http.StatusPreconditionFailed, "no_weight_profile", err.Error(), requestID)
	case errors.Is(err, kpi.ErrNoApplicableWeights):
		api.Fail(w, http.StatusPreconditionFailed, "no_applicable_weights", err.Error(), requestID)
	case errors.Is(err, kpi.ErrScopeMismatch):
		api.Fail(w, http.StatusPreconditionFailed, "scope_mismatch", err.Error(), requestID)
	case errors.Is(err, kpi.ErrDefaultKPIsExist):
		api.Fail(w, http.StatusConflict, "default_kpis_exist", err.Error(), requestID)
	case errors.Is(err, kpi.ErrAlreadyMember):
		api.Fail(w, http.StatusConflict, "already_member", err.Error(), requestID)
	case errors.Is(err, kpi.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), requestID)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		api.Fail(w, http.StatusServiceUnavailable, "request_cancelled", "request cancelled before completion", requestID)
	default:
		slog.Error(message, "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
