package agent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/agentfleet/maestro/pkg/events"
	"github.com/agentfleet/maestro/pkg/llm"
	"github.com/agentfleet/maestro/pkg/llm/llmtest"
	"github.com/agentfleet/maestro/pkg/metrics"
	"github.com/agentfleet/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func llmUsage(input, output int) llm.Usage {
	return llm.Usage{InputTokens: input, OutputTokens: output}
}

func newRegistryFixture(t *testing.T, turns ...llmtest.Turn) (*Registry, *events.Bus) {
	t.Helper()
	bus := events.NewBus(slog.Default())
	t.Cleanup(bus.Close)
	registry := NewRegistry(llmtest.NewScriptedClient(turns...), bus, metrics.NewCollector(), RegistryOptions{
		WorkingDirectory: "/workspace",
	}, slog.Default())
	return registry, bus
}

func TestRegistry_CreateAndGet(t *testing.T) {
	registry, _ := newRegistryFixture(t)

	session := registry.Create(models.AgentConfig{Name: "My Agent", Role: models.RoleBuilder})
	require.NotEmpty(t, session.ID)
	assert.Equal(t, models.StatusCreated, session.Status())
	// Registry defaults flow into the config.
	assert.Equal(t, "/workspace", session.Config().WorkingDirectory)

	got, err := registry.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = registry.Get("nope")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRegistry_CreateSpecialized(t *testing.T) {
	registry, _ := newRegistryFixture(t)

	session := registry.CreateSpecialized(models.RoleTester, "focus on the cache", []string{"no network"}, "task-9")

	config := session.Config()
	assert.Equal(t, "Tester Agent", config.Name)
	assert.Equal(t, models.RoleTester, config.Role)
	assert.Equal(t, "task-9", config.TaskID)
	assert.Contains(t, config.SystemPrompt, "TESTER")
	assert.Contains(t, config.SystemPrompt, "focus on the cache")
	assert.Contains(t, config.SystemPrompt, "- no network")
}

func TestRegistry_ListFilters(t *testing.T) {
	registry, _ := newRegistryFixture(t)

	builder := registry.Create(models.AgentConfig{Role: models.RoleBuilder})
	registry.Create(models.AgentConfig{Role: models.RoleTester})
	registry.Create(models.AgentConfig{Role: models.RoleTester})

	assert.Len(t, registry.List(ListFilter{}), 3)
	assert.Len(t, registry.List(ListFilter{Role: models.RoleTester}), 2)
	assert.Len(t, registry.List(ListFilter{Status: models.StatusCreated}), 3)

	require.NoError(t, registry.UpdateStatus(builder.ID, models.StatusRunning))
	assert.Len(t, registry.List(ListFilter{Status: models.StatusRunning}), 1)
}

func TestRegistry_UpdateStatusEnforcesTransitions(t *testing.T) {
	registry, _ := newRegistryFixture(t)
	session := registry.Create(models.AgentConfig{Role: models.RoleBuilder})

	assert.Error(t, registry.UpdateStatus(session.ID, models.StatusCompleted))
	require.NoError(t, registry.UpdateStatus(session.ID, models.StatusRunning))
	require.NoError(t, registry.UpdateStatus(session.ID, models.StatusCompleted))
	assert.Error(t, registry.UpdateStatus("unknown", models.StatusRunning))
}

func TestRegistry_Delete(t *testing.T) {
	registry, bus := newRegistryFixture(t)
	sub := bus.Subscribe("observer")

	session := registry.Create(models.AgentConfig{Role: models.RoleBuilder})
	assert.True(t, registry.Delete(session.ID))
	assert.False(t, registry.Delete(session.ID), "second delete is a no-op")

	_, err := registry.Get(session.ID)
	assert.ErrorIs(t, err, ErrAgentNotFound)
	assert.Equal(t, models.StatusDeleted, session.Status())

	var kinds []events.Kind
	bus.Unsubscribe(sub)
	for event := range sub.C {
		kinds = append(kinds, event.Kind)
	}
	assert.Contains(t, kinds, events.AgentCreated)
	assert.Contains(t, kinds, events.AgentDeleted)
}

func TestRegistry_DeleteAllAndCleanupCompleted(t *testing.T) {
	registry, _ := newRegistryFixture(t,
		llmtest.TextTurn("done", llmUsage(10, 5), 0.01),
		llmtest.ErrTurn("", assert.AnError),
	)

	completed := registry.Create(models.AgentConfig{Role: models.RoleBuilder})
	failed := registry.Create(models.AgentConfig{Role: models.RoleTester})
	idle := registry.Create(models.AgentConfig{Role: models.RoleAnalyst})

	completed.ExecuteTask(context.Background(), "work")
	failed.ExecuteTask(context.Background(), "work")

	require.Equal(t, models.StatusCompleted, completed.Status())
	require.Equal(t, models.StatusFailed, failed.Status())

	assert.Equal(t, 2, registry.CleanupCompleted())
	assert.Len(t, registry.GetActive(), 1)

	_ = idle
	assert.Equal(t, 1, registry.DeleteAll())
	assert.Empty(t, registry.GetActive())
}

func TestRegistry_FleetSummary(t *testing.T) {
	registry, _ := newRegistryFixture(t, llmtest.TextTurn("done", llmUsage(100, 50), 0.25))

	worker := registry.Create(models.AgentConfig{Role: models.RoleBuilder})
	registry.Create(models.AgentConfig{Role: models.RoleTester})
	worker.ExecuteTask(context.Background(), "work")

	summary := registry.FleetSummary()
	assert.Equal(t, 2, summary.TotalAgents)
	assert.Equal(t, 2, summary.ActiveAgents)
	assert.Equal(t, 1, summary.ByStatus["completed"])
	assert.Equal(t, 1, summary.ByStatus["created"])
	assert.Equal(t, 1, summary.ByRole["builder"])
	assert.Equal(t, 1, summary.ByRole["tester"])
	assert.InDelta(t, 0.25, summary.TotalCostUSD, 1e-12)
	assert.Equal(t, 150, summary.TotalTokens)
}
