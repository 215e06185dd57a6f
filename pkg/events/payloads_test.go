package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalWire(t *testing.T) {
	tests := []struct {
		kind     Kind
		wantType string
	}{
		{AgentCreated, "agent_update"},
		{AgentStarted, "agent_update"},
		{AgentThinking, "agent_update"},
		{AgentToolCall, "agent_update"},
		{AgentCompleted, "agent_update"},
		{AgentFailed, "agent_update"},
		{AgentDeleted, "agent_deleted"},
		{TaskUpdate, "task_update"},
		{TaskDeleted, "task_deleted"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			event := Event{
				Kind:      tt.kind,
				Timestamp: time.Now().UTC(),
				Data:      map[string]any{"agent_id": "a1", "task_id": "t1"},
			}

			payload, err := MarshalWire(event)
			require.NoError(t, err)

			var wire WireMessage
			require.NoError(t, json.Unmarshal(payload, &wire))
			assert.Equal(t, tt.wantType, wire.Type)
			assert.Equal(t, "a1", wire.Data["agent_id"])
			assert.Equal(t, string(tt.kind), wire.Data["event"])
		})
	}
}

func TestEventAccessors(t *testing.T) {
	event := Event{Data: AgentCompletedData("a1", "t1", 0.5)}
	assert.Equal(t, "a1", event.AgentID())
	assert.Equal(t, "t1", event.TaskID())

	empty := Event{Data: map[string]any{}}
	assert.Empty(t, empty.AgentID())
	assert.Empty(t, empty.TaskID())
}
