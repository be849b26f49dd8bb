package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndListMemory(t *testing.T) {
	svc := New(NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "t1", "u1", ActionProjectCreate, "kpi_project", "p1", "req-1", "10.0.0.1", nil, map[string]string{"name": "Survey"}))
	require.NoError(t, svc.Record(ctx, "t1", "u2", ActionWeightsApply, "employee", "e1", "req-2", "10.0.0.2", nil, map[string]int{"updated": 6}))
	require.NoError(t, svc.Record(ctx, "t2", "u3", ActionWeightsApply, "employee", "e9", "req-3", "", nil, nil))

	total, err := svc.Count(ctx, "t1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	applied, err := svc.List(ctx, "t1", Filter{Action: ActionWeightsApply}, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "e1", applied[0].EntityID)
	assert.JSONEq(t, `{"updated":6}`, string(applied[0].After))

	brief, err := svc.List(ctx, "t1", Filter{ActorUser: "u1"}, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, brief, 1)
	assert.Nil(t, brief[0].After)
}

func TestMemoryListPaging(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, "t1", Event{Action: ActionEmployeeCreate}))
	}
	page, err := store.List(ctx, "t1", Filter{}, false, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := store.List(ctx, "t1", Filter{}, false, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBuildBaseQuery(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", "t1", Filter{Action: "a", ActorUser: "u"})
	assert.Equal(t, "SELECT COUNT(1) FROM audit_events WHERE tenant_id = $1 AND action = $2 AND actor_user_id = $3", query)
	assert.Equal(t, []any{"t1", "a", "u"}, args)
}
