package kpi

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ApplyProjectToMembers applies the project to every member. Failures are
// collected per employee and do not stop the others; only a failure to load
// the project or its members is returned as an error.
func (s *Service) ApplyProjectToMembers(ctx context.Context, tenantID, projectID string) (RolloutResult, error) {
	project, err := s.Store.GetProject(ctx, tenantID, projectID)
	if err != nil {
		return RolloutResult{}, err
	}
	if len(project.Weights) == 0 {
		return RolloutResult{}, ErrNoWeightProfile
	}
	members, err := s.Store.ProjectMembers(ctx, tenantID, projectID)
	if err != nil {
		return RolloutResult{}, err
	}

	result := RolloutResult{ProjectID: project.ID, Members: len(members)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	limit := s.RolloutConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, member := range members {
		employeeID := member.ID
		g.Go(func() error {
			_, err := s.ApplyProjectWeights(gctx, tenantID, projectID, employeeID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, RolloutFailure{EmployeeID: employeeID, Error: err.Error()})
				return nil
			}
			result.Applied++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}
