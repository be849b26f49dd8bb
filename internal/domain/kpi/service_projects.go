package kpi

import (
	"context"
	"fmt"
	"strings"

	"apar/internal/domain/weights"
	"apar/internal/domain/weightsource"
)

func (in ProjectInput) metadata() weightsource.ProjectMetadata {
	return weightsource.ProjectMetadata{
		Name:        in.Name,
		Description: in.Description,
		Department:  in.Department,
		Location:    in.Location,
		Category:    in.Category,
	}
}

func (p Project) metadata() weightsource.ProjectMetadata {
	return ProjectInput{Name: p.Name, Description: p.Description, Department: p.Department, Location: p.Location, Category: p.Category}.metadata()
}

// CreateProject stores a project with a weight profile resolved from the
// configured source. The profile always exists: source failures fall back to
// the catalog defaults.
func (s *Service) CreateProject(ctx context.Context, tenantID string, in ProjectInput) (Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Project{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	res := s.resolve(ctx, in.metadata())
	project, err := s.Store.CreateProject(ctx, tenantID, Project{
		Name:         in.Name,
		Description:  strings.TrimSpace(in.Description),
		Department:   strings.TrimSpace(in.Department),
		Location:     strings.TrimSpace(in.Location),
		Category:     strings.TrimSpace(in.Category),
		Weights:      res.Weights,
		WeightOrigin: res.Origin,
	})
	if err != nil {
		return Project{}, err
	}
	s.publish(EventProjectCreated, map[string]any{
		"tenantId":     tenantID,
		"projectId":    project.ID,
		"name":         project.Name,
		"weightOrigin": project.WeightOrigin,
	})
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, tenantID, projectID string) (Project, error) {
	return s.Store.GetProject(ctx, tenantID, projectID)
}

func (s *Service) ListProjects(ctx context.Context, tenantID string) ([]Project, error) {
	return s.Store.ListProjects(ctx, tenantID)
}

// RegenerateProjectWeights replaces the whole profile with a fresh
// resolution. Employees keep their applied sets until weights are applied
// again.
func (s *Service) RegenerateProjectWeights(ctx context.Context, tenantID, projectID string) (Project, error) {
	project, err := s.Store.GetProject(ctx, tenantID, projectID)
	if err != nil {
		return Project{}, err
	}
	res := s.resolve(ctx, project.metadata())
	if err := s.Store.ReplaceProjectWeights(ctx, tenantID, projectID, res.Weights, res.Origin); err != nil {
		return Project{}, err
	}
	project.Weights = res.Weights
	project.WeightOrigin = res.Origin
	s.publish(EventWeightsRegenerated, map[string]any{
		"tenantId":     tenantID,
		"projectId":    project.ID,
		"weightOrigin": project.WeightOrigin,
	})
	return project, nil
}

func (s *Service) AddProjectMember(ctx context.Context, tenantID, projectID, employeeID string) error {
	return s.Store.AddProjectMember(ctx, tenantID, projectID, employeeID)
}

func (s *Service) ProjectMembers(ctx context.Context, tenantID, projectID string) ([]Employee, error) {
	return s.Store.ProjectMembers(ctx, tenantID, projectID)
}

// PreviewProjectWeights reports the stored profile per channel together with
// total and range validation. It never writes.
func (s *Service) PreviewProjectWeights(ctx context.Context, tenantID, projectID string) (Preview, error) {
	project, err := s.Store.GetProject(ctx, tenantID, projectID)
	if err != nil {
		return Preview{}, err
	}
	field := weights.Channel(project.Weights, weights.EmployeeTypeField)
	hq := weights.Channel(project.Weights, weights.EmployeeTypeHQ)
	preview := Preview{
		ProjectID:    project.ID,
		ProjectName:  project.Name,
		WeightOrigin: project.WeightOrigin,
		FieldWeights: weights.ToMap(field),
		HQWeights:    weights.ToMap(hq),
		FieldTotal:   weights.ValidateWeightTotal(field, weights.DefaultTolerance),
		HQTotal:      weights.ValidateWeightTotal(hq, weights.DefaultTolerance),
		FieldRange:   weights.ValidateWeightRange(field, weights.MinTrackedWeight, weights.MaxWeight),
		HQRange:      weights.ValidateWeightRange(hq, weights.MinTrackedWeight, weights.MaxWeight),
	}
	preview.Valid = preview.FieldTotal.Valid && preview.HQTotal.Valid
	return preview, nil
}

// AnalyzeProject resolves a fresh proposal for a stored project without
// persisting it.
func (s *Service) AnalyzeProject(ctx context.Context, tenantID, projectID string) (Analysis, error) {
	project, err := s.Store.GetProject(ctx, tenantID, projectID)
	if err != nil {
		return Analysis{}, err
	}
	res := s.resolve(ctx, project.metadata())
	analysis := Analysis{
		ProjectID:      project.ID,
		Weights:        res.Weights,
		Origin:         res.Origin,
		FallbackReason: res.FallbackReason,
		Rejected:       res.Rejected,
		FieldTotal:     weights.ValidateWeightTotal(weights.Channel(res.Weights, weights.EmployeeTypeField), weights.DefaultTolerance),
		HQTotal:        weights.ValidateWeightTotal(weights.Channel(res.Weights, weights.EmployeeTypeHQ), weights.DefaultTolerance),
	}
	analysis.Valid = analysis.FieldTotal.Valid && analysis.HQTotal.Valid
	return analysis, nil
}
