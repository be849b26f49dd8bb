package kpihandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"apar/internal/domain/audit"
	"apar/internal/domain/kpi"
	"apar/internal/transport/http/api"
	"apar/internal/transport/http/middleware"
	"apar/internal/transport/http/shared"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Location    string `json:"location"`
	Category    string `json:"category"`
}

type addMemberRequest struct {
	EmployeeID string `json:"employeeId"`
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload createProjectRequest
	if !decode(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.MaxLength("name", payload.Name, 200)
	v.MaxLength("description", payload.Description, 4000)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	project, err := h.Service.CreateProject(r.Context(), user.TenantID, kpi.ProjectInput(payload))
	if err != nil {
		writeError(w, r, err, "project_create_failed", "failed to create project")
		return
	}
	h.record(r, user, audit.ActionProjectCreate, "kpi_project", project.ID, map[string]any{"name": project.Name, "weightOrigin": project.WeightOrigin})
	api.Created(w, project, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projects, err := h.Service.ListProjects(r.Context(), user.TenantID)
	if err != nil {
		writeError(w, r, err, "project_list_failed", "failed to list projects")
		return
	}
	api.Success(w, projects, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	project, err := h.Service.GetProject(r.Context(), user.TenantID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, err, "project_get_failed", "failed to load project")
		return
	}
	api.Success(w, project, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRegenerateWeights(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	project, err := h.Service.RegenerateProjectWeights(r.Context(), user.TenantID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, err, "project_regenerate_failed", "failed to regenerate project weights")
		return
	}
	h.record(r, user, audit.ActionProjectRegenerate, "kpi_project", project.ID, map[string]any{"weightOrigin": project.WeightOrigin, "weights": project.Weights})
	api.Success(w, project, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreviewWeights(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	preview, err := h.Service.PreviewProjectWeights(r.Context(), user.TenantID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, err, "project_preview_failed", "failed to preview project weights")
		return
	}
	api.Success(w, preview, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAnalyzeProject(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	analysis, err := h.Service.AnalyzeProject(r.Context(), user.TenantID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, err, "project_analysis_failed", "failed to analyze project")
		return
	}
	api.Success(w, analysis, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	members, err := h.Service.ProjectMembers(r.Context(), user.TenantID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, err, "project_members_failed", "failed to list project members")
		return
	}
	api.Success(w, members, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload addMemberRequest
	if !decode(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	projectID := chi.URLParam(r, "projectID")
	employeeID := strings.TrimSpace(payload.EmployeeID)
	if err := h.Service.AddProjectMember(r.Context(), user.TenantID, projectID, employeeID); err != nil {
		writeError(w, r, err, "project_member_add_failed", "failed to add project member")
		return
	}
	h.record(r, user, audit.ActionProjectMemberAdd, "kpi_project", projectID, map[string]string{"employeeId": employeeID})
	api.Created(w, map[string]string{"projectId": projectID, "employeeId": employeeID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApplyWeights(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "projectID")
	employeeID := chi.URLParam(r, "employeeID")
	result, err := h.Service.ApplyProjectWeights(r.Context(), user.TenantID, projectID, employeeID)
	if err != nil {
		writeError(w, r, err, "kpi_apply_failed", "failed to apply project weights")
		return
	}
	h.record(r, user, audit.ActionWeightsApply, "employee", employeeID, map[string]any{
		"projectId":    projectID,
		"updatedCount": result.UpdatedCount,
		"deletedCount": result.DeletedCount,
	})
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

// handleRollout applies the project to every member through the jobs service.
// With ?async=true the rollout is queued and 202 is returned.
func (h *Handler) handleRollout(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "projectID")
	requestID := middleware.GetRequestID(r.Context())

	project, err := h.Service.GetProject(r.Context(), user.TenantID, projectID)
	if err != nil {
		writeError(w, r, err, "kpi_rollout_failed", "failed to roll out project weights")
		return
	}
	if len(project.Weights) == 0 {
		writeError(w, r, kpi.ErrNoWeightProfile, "kpi_rollout_failed", "failed to roll out project weights")
		return
	}

	run := func(ctx context.Context) (any, error) {
		return h.Service.ApplyProjectToMembers(middleware.WithRequestID(ctx, requestID), user.TenantID, projectID)
	}

	if r.URL.Query().Get("async") == "true" && h.Jobs != nil {
		if !h.Jobs.Enqueue(kpi.JobProjectRollout, user.TenantID, run) {
			api.Fail(w, http.StatusServiceUnavailable, "job_queue_full", "rollout queue is full, retry later", requestID)
			return
		}
		h.record(r, user, audit.ActionProjectRollout, "kpi_project", projectID, map[string]bool{"queued": true})
		api.Accepted(w, map[string]any{"projectId": projectID, "queued": true}, requestID)
		return
	}

	var out any
	if h.Jobs != nil {
		out, err = h.Jobs.RunNow(r.Context(), kpi.JobProjectRollout, user.TenantID, run)
	} else {
		out, err = run(r.Context())
	}
	if err != nil {
		writeError(w, r, err, "kpi_rollout_failed", "failed to roll out project weights")
		return
	}
	h.record(r, user, audit.ActionProjectRollout, "kpi_project", projectID, out)
	api.Success(w, out, requestID)
}

func (h *Handler) handleListRollouts(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if h.Jobs == nil {
		api.Success(w, []any{}, middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 20, 100)
	runs, err := h.Jobs.Runs.ListRuns(r.Context(), user.TenantID, kpi.JobProjectRollout, page.Limit)
	if err != nil {
		writeError(w, r, err, "rollout_list_failed", "failed to list rollouts")
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}
