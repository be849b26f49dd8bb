package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionProjectCreate     = "kpi.project.create"
	ActionProjectRegenerate = "kpi.project.regenerate"
	ActionProjectMemberAdd  = "kpi.project.member_add"
	ActionWeightsApply      = "kpi.weights.apply"
	ActionProjectRollout    = "kpi.project.rollout"
	ActionEmployeeCreate    = "kpi.employee.create"
	ActionDefaultKPIsCreate = "kpi.defaults.create"
	ActionDailyReportSubmit = "kpi.report.submit"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorUser  string
}

func (f Filter) matches(evt Event) bool {
	if f.Action != "" && evt.Action != f.Action {
		return false
	}
	if f.EntityType != "" && evt.EntityType != f.EntityType {
		return false
	}
	if f.ActorUser != "" && evt.ActorID != f.ActorUser {
		return false
	}
	return true
}

type Store interface {
	Insert(ctx context.Context, tenantID string, evt Event) error
	Count(ctx context.Context, tenantID string, filter Filter) (int, error)
	List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error)
}

type Service struct {
	Store Store
}

func New(store Store) *Service {
	return &Service{Store: store}
}

func (s *Service) Record(ctx context.Context, tenantID, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	evt := Event{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestID,
		IP:         ip,
	}
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return err
		}
		evt.Before = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return err
		}
		evt.After = payload
	}
	return s.Store.Insert(ctx, tenantID, evt)
}

func (s *Service) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	return s.Store.Count(ctx, tenantID, filter)
}

func (s *Service) List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	return s.Store.List(ctx, tenantID, filter, includeDetails, limit, offset)
}

type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) Insert(ctx context.Context, tenantID string, evt Event) error {
	var before, after []byte
	if len(evt.Before) > 0 {
		before = evt.Before
	}
	if len(evt.After) > 0 {
		after = evt.After
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, tenantID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, before, after, evt.RequestID, evt.IP)
	return err
}

func (s *PGStore) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", tenantID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *PGStore) List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	selectCols := "id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		selectCols += ", before_json, after_json"
	}
	query, args := buildBaseQuery("SELECT "+selectCols, tenantID, filter)
	limitPos := len(args) + 1
	offsetPos := len(args) + 2
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", limitPos, offsetPos)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		if includeDetails {
			var before, after []byte
			if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &before, &after); err != nil {
				return nil, err
			}
			evt.Before, evt.After = before, after
		} else {
			if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt); err != nil {
				return nil, err
			}
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix, tenantID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE tenant_id = $1"
	args := []any{tenantID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.ActorUser != "" {
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args)+1)
		args = append(args, filter.ActorUser)
	}
	return query, args
}

type MemoryStore struct {
	mu     sync.Mutex
	events map[string][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: map[string][]Event{}}
}

func (s *MemoryStore) Insert(_ context.Context, tenantID string, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt.ID = uuid.NewString()
	evt.CreatedAt = time.Now().UTC()
	s.events[tenantID] = append(s.events[tenantID], evt)
	return nil
}

func (s *MemoryStore) filtered(tenantID string, filter Filter) []Event {
	var out []Event
	for _, evt := range s.events[tenantID] {
		if filter.matches(evt) {
			out = append(out, evt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) Count(_ context.Context, tenantID string, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filtered(tenantID, filter)), nil
}

func (s *MemoryStore) List(_ context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.filtered(tenantID, filter)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]Event, len(all))
	copy(out, all)
	if !includeDetails {
		for i := range out {
			out[i].Before, out[i].After = nil, nil
		}
	}
	return out, nil
}
