package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRunStore struct {
	DB *pgxpool.Pool
}

func NewPGRunStore(db *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{DB: db}
}

func (s *PGRunStore) StartRun(ctx context.Context, tenantID, jobType string) (string, error) {
	var runID string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, tenantID, jobType, StatusRunning).Scan(&runID)
	return runID, err
}

func (s *PGRunStore) FinishRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, runID)
	return err
}

func (s *PGRunStore) ListRuns(ctx context.Context, tenantID, jobType string, limit int) ([]Run, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, COALESCE(tenant_id::text, ''), job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE tenant_id = $1 AND ($2 = '' OR job_type = $2)
    ORDER BY started_at DESC
    LIMIT $3
  `, tenantID, jobType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var details []byte
		if err := rows.Scan(&run.ID, &run.TenantID, &run.JobType, &run.Status, &details, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		run.Details = details
		out = append(out, run)
	}
	return out, rows.Err()
}

type MemoryRunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: map[string]*Run{}}
}

func (s *MemoryRunStore) StartRun(_ context.Context, tenantID, jobType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.runs[id] = &Run{ID: id, TenantID: tenantID, JobType: jobType, Status: StatusRunning, StartedAt: time.Now().UTC()}
	return id, nil
}

func (s *MemoryRunStore) FinishRun(_ context.Context, runID, status string, details []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	run.Status = status
	run.Details = append([]byte(nil), details...)
	run.CompletedAt = &now
	return nil
}

func (s *MemoryRunStore) ListRuns(_ context.Context, tenantID, jobType string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Run
	for _, run := range s.runs {
		if run.TenantID != tenantID || (jobType != "" && run.JobType != jobType) {
			continue
		}
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
