package storage_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/agentfleet/maestro/pkg/storage"
	testdb "github.com/agentfleet/maestro/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agentRecord(id, role string, cost float64) storage.AgentRecord {
	return storage.AgentRecord{
		AgentID:      id,
		TaskID:       "task-1",
		Name:         "Agent " + id,
		Role:         role,
		Model:        "claude-sonnet-4-5-20250929",
		Status:       "running",
		TotalCostUSD: cost,
		TotalTokens:  1000,
		ToolCalls:    3,
		MessagesSent: 1,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestStore_AgentUpsertIsIdempotent(t *testing.T) {
	store := testdb.NewTestStore(t)
	ctx := context.Background()

	record := agentRecord("a1", "builder", 0.10)
	require.NoError(t, store.UpsertAgent(ctx, record))

	// A second upsert with updated metrics replaces, never duplicates.
	record.Status = "completed"
	record.TotalCostUSD = 0.42
	require.NoError(t, store.UpsertAgent(ctx, record))

	got, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.InDelta(t, 0.42, got.TotalCostUSD, 1e-9)

	all, err := store.ListAgents(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_ListAgentsFilters(t *testing.T) {
	store := testdb.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, agentRecord("a1", "builder", 0.1)))
	require.NoError(t, store.UpsertAgent(ctx, agentRecord("a2", "tester", 0.2)))
	completed := agentRecord("a3", "tester", 0.3)
	completed.Status = "completed"
	require.NoError(t, store.UpsertAgent(ctx, completed))

	testers, err := store.ListAgents(ctx, "", "tester")
	require.NoError(t, err)
	assert.Len(t, testers, 2)

	running, err := store.ListAgents(ctx, "running", "")
	require.NoError(t, err)
	assert.Len(t, running, 2)

	completedTesters, err := store.ListAgents(ctx, "completed", "tester")
	require.NoError(t, err)
	assert.Len(t, completedTesters, 1)
	assert.Equal(t, "a3", completedTesters[0].AgentID)
}

func TestStore_MarkAgentDeleted(t *testing.T) {
	store := testdb.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, agentRecord("a1", "builder", 0.1)))
	require.NoError(t, store.MarkAgentDeleted(ctx, "a1", time.Now().UTC()))

	got, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "deleted", got.Status)
	assert.NotNil(t, got.DeletedAt)
}

func TestStore_TaskRoundTrip(t *testing.T) {
	store := testdb.NewTestStore(t)
	ctx := context.Background()

	record := storage.TaskRecord{
		TaskID:         "t1",
		Description:    "fix the cache",
		TaskType:       "bug_fix",
		Status:         "in_progress",
		AssignedAgents: []string{"a1", "a2"},
		TotalCostUSD:   0.5,
		CurrentStep:    2,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.UpsertTask(ctx, record))

	// Progressive upsert with terminal state.
	now := time.Now().UTC().Truncate(time.Microsecond)
	record.Status = "completed"
	record.CompletedAt = &now
	record.Result = `{"success": true}`
	require.NoError(t, store.UpsertTask(ctx, record))

	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, []string{"a1", "a2"}, got.AssignedAgents)
	assert.Equal(t, 2, got.CurrentStep)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, `{"success": true}`, got.Result)

	_, err = store.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStore_CostAnalytics(t *testing.T) {
	store := testdb.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, agentRecord("a1", "builder", 0.30)))
	require.NoError(t, store.UpsertAgent(ctx, agentRecord("a2", "builder", 0.20)))
	require.NoError(t, store.UpsertAgent(ctx, agentRecord("a3", "tester", 0.10)))

	require.NoError(t, store.UpsertTask(ctx, storage.TaskRecord{
		TaskID: "t1", Description: "d", Status: "completed",
		TotalCostUSD: 0.60, CreatedAt: time.Now().UTC(),
	}))

	total, err := store.TotalCost(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, total, 1e-9)

	byRole, err := store.CostByRole(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.50, byRole["builder"], 1e-9)
	assert.InDelta(t, 0.10, byRole["tester"], 1e-9)
}
