package agent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/agentfleet/maestro/pkg/agentlog"
	"github.com/agentfleet/maestro/pkg/llm"
	"github.com/agentfleet/maestro/pkg/llm/llmtest"
	"github.com/agentfleet/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, turns ...llmtest.Turn) (*Session, *llmtest.ScriptedClient) {
	t.Helper()
	client := llmtest.NewScriptedClient(turns...)
	logger := agentlog.New("", "", "test-agent", "Test Agent", false, slog.Default())
	session := NewSession("test-agent", models.AgentConfig{
		Name: "Test Agent",
		Role: models.RoleBuilder,
	}, client, logger, slog.Default())
	return session, client
}

func toolUse(id, name string, input map[string]any) llm.Message {
	return llm.AssistantMessage{Content: []llm.ContentBlock{
		llm.ToolUseBlock{ID: id, Name: name, Input: input},
	}}
}

func toolResult(id string, content any, isError bool) llm.Message {
	return llm.AssistantMessage{Content: []llm.ContentBlock{
		llm.ToolResultBlock{ToolUseID: id, Content: content, IsError: isError},
	}}
}

func TestExecuteTask_Success(t *testing.T) {
	session, _ := newTestSession(t, llmtest.TextTurn("hello world",
		llm.Usage{InputTokens: 100, OutputTokens: 40, CacheCreationInputTokens: 10, CacheReadInputTokens: 5}, 0.03))

	result := session.ExecuteTask(context.Background(), "say hello")

	assert.True(t, result.Success)
	assert.Equal(t, "hello world", result.Output)
	assert.Equal(t, models.StatusCompleted, session.Status())

	m := session.Metrics()
	assert.Equal(t, 155, m.TotalTokens)
	assert.Equal(t, m.InputTokens+m.OutputTokens+m.CacheCreationTokens+m.CacheReadTokens, m.TotalTokens)
	assert.InDelta(t, 0.03, m.TotalCostUSD, 1e-12)
	assert.Equal(t, 1, m.MessagesSent)
	assert.Greater(t, m.ExecutionTimeSeconds, 0.0)

	// Session id stored for resumption.
	assert.Equal(t, "scripted-session", session.Config().SessionID)
}

func TestExecuteTask_StreamFailure(t *testing.T) {
	session, _ := newTestSession(t, llmtest.ErrTurn("partial text", assert.AnError))

	result := session.ExecuteTask(context.Background(), "do work")

	// Failures never propagate as errors: the result carries them.
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, models.StatusFailed, session.Status())
	// Partial metrics are preserved.
	assert.Equal(t, 1, session.Metrics().MessagesSent)
}

func TestExecuteTask_FileTracking(t *testing.T) {
	session, _ := newTestSession(t, llmtest.Turn{Messages: []llm.Message{
		toolUse("t1", "Read", map[string]any{"file_path": "/a"}),
		toolUse("t2", "Write", map[string]any{"file_path": "/b"}),
		toolUse("t3", "Read", map[string]any{"file_path": "/a"}), // duplicate
		toolUse("t4", "Edit", map[string]any{"file_path": "/b"}),
		llm.ResultMessage{Usage: llm.Usage{InputTokens: 1, OutputTokens: 1}},
	}})

	result := session.ExecuteTask(context.Background(), "touch files")
	require.True(t, result.Success)

	m := session.Metrics()
	assert.Equal(t, []string{"/a"}, m.FilesRead)
	assert.Equal(t, []string{"/b"}, m.FilesWritten)
	assert.Equal(t, 4, m.ToolCalls)
	assert.Equal(t, []string{"/b"}, result.Artifacts)
}

func TestToolResultPairing_LIFO(t *testing.T) {
	session, _ := newTestSession(t, llmtest.Turn{Messages: []llm.Message{
		toolUse("t1", "Read", map[string]any{"file_path": "/a"}),
		toolUse("t2", "Grep", map[string]any{"pattern": "x"}),
		// Results resolve the most recent unresolved call first.
		toolResult("t2", "match found", false),
		toolResult("t1", "file contents", true),
		llm.ResultMessage{},
	}})

	result := session.ExecuteTask(context.Background(), "scan")
	require.True(t, result.Success)

	calls := session.ToolCalls()
	require.Len(t, calls, 2)

	// LIFO: the first arriving result attached to the Grep call.
	assert.Equal(t, "Grep", calls[1].ToolName)
	assert.Equal(t, "match found", calls[1].Result)
	assert.True(t, calls[1].Success)

	assert.Equal(t, "Read", calls[0].ToolName)
	assert.Equal(t, "file contents", calls[0].Result)
	assert.False(t, calls[0].Success)
	assert.NotEmpty(t, calls[0].Error)
}

func TestToolResultPairing_EveryCallResolvedOnCleanStream(t *testing.T) {
	session, _ := newTestSession(t, llmtest.Turn{Messages: []llm.Message{
		toolUse("t1", "Read", map[string]any{"file_path": "/a"}),
		toolResult("t1", "ok", false),
		toolUse("t2", "Write", map[string]any{"file_path": "/b"}),
		toolResult("t2", "ok", false),
		llm.ResultMessage{},
	}})

	result := session.ExecuteTask(context.Background(), "work")
	require.True(t, result.Success)
	for _, call := range session.ToolCalls() {
		assert.NotNil(t, call.Result)
	}
}

func TestProgressCallbackSequence(t *testing.T) {
	session, _ := newTestSession(t, llmtest.Turn{Messages: []llm.Message{
		llm.AssistantMessage{Content: []llm.ContentBlock{llm.ThinkingBlock{Thinking: "pondering"}}},
		toolUse("t1", "Bash", map[string]any{"command": "ls"}),
		llm.AssistantMessage{Content: []llm.ContentBlock{llm.TextBlock{Text: "done"}}},
		llm.ResultMessage{},
	}})

	var got []string
	session.SetProgressFunc(func(event, data string) {
		got = append(got, event)
	})

	result := session.ExecuteTask(context.Background(), "work")
	require.True(t, result.Success)

	// Sequential delivery, terminal event last.
	assert.Equal(t, []string{ProgressStarted, ProgressThinking, ProgressToolCall, ProgressCompleted}, got)
}

func TestProgressCallback_FailedIsTerminal(t *testing.T) {
	session, _ := newTestSession(t, llmtest.ErrTurn("", assert.AnError))

	var got []string
	session.SetProgressFunc(func(event, data string) {
		got = append(got, event)
	})

	session.ExecuteTask(context.Background(), "work")
	require.NotEmpty(t, got)
	assert.Equal(t, ProgressFailed, got[len(got)-1])
}

func TestThinkingNotCapturedInOutput(t *testing.T) {
	session, _ := newTestSession(t, llmtest.Turn{Messages: []llm.Message{
		llm.AssistantMessage{Content: []llm.ContentBlock{llm.ThinkingBlock{Thinking: "secret reasoning"}}},
		llm.AssistantMessage{Content: []llm.ContentBlock{llm.TextBlock{Text: "visible answer"}}},
		llm.ResultMessage{},
	}})

	result := session.ExecuteTask(context.Background(), "answer")
	assert.Equal(t, "visible answer", result.Output)
	assert.NotContains(t, result.Output, "secret reasoning")
}

func TestSendMessage(t *testing.T) {
	session, client := newTestSession(t,
		llmtest.TextTurn("first answer", llm.Usage{InputTokens: 10, OutputTokens: 5}, 0.01),
		llmtest.TextTurn("second answer", llm.Usage{InputTokens: 8, OutputTokens: 4}, 0.01),
	)

	result := session.ExecuteTask(context.Background(), "initial task")
	require.True(t, result.Success)
	require.Equal(t, models.StatusCompleted, session.Status())

	response, err := session.SendMessage(context.Background(), "follow up")
	require.NoError(t, err)
	assert.Equal(t, "second answer", response)
	assert.Equal(t, models.StatusWaiting, session.Status())
	assert.Equal(t, 2, session.Metrics().MessagesSent)

	// The continuation turn resumes the stored session id.
	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Opts.Resume)
	assert.Equal(t, "scripted-session", calls[1].Opts.Resume)
}

func TestContextUsage(t *testing.T) {
	session, _ := newTestSession(t, llmtest.TextTurn("out",
		llm.Usage{InputTokens: 50_000, OutputTokens: 0}, 0))

	session.ExecuteTask(context.Background(), "work")

	usage := session.ContextUsage()
	assert.Equal(t, 50_000, usage.TotalTokensUsed)
	assert.Equal(t, 200_000, usage.MaxContextTokens)
	assert.InDelta(t, 25.0, usage.UsagePercentage, 1e-9)
	assert.Equal(t, 150_000, usage.EstimatedRemaining)
}

func TestCleanup(t *testing.T) {
	session, _ := newTestSession(t, llmtest.TextTurn("out", llm.Usage{}, 0))
	session.ExecuteTask(context.Background(), "work")

	session.Cleanup()
	assert.Equal(t, models.StatusDeleted, session.Status())
	assert.Empty(t, session.Config().SessionID)
	assert.Empty(t, session.ToolCalls())
}

func TestMetricMonotonicity(t *testing.T) {
	session, _ := newTestSession(t,
		llmtest.TextTurn("a", llm.Usage{InputTokens: 10, OutputTokens: 5}, 0.01),
		llmtest.TextTurn("b", llm.Usage{InputTokens: 20, OutputTokens: 7}, 0.02),
	)

	session.ExecuteTask(context.Background(), "one")
	first := session.Metrics()

	_, err := session.SendMessage(context.Background(), "two")
	require.NoError(t, err)
	second := session.Metrics()

	assert.GreaterOrEqual(t, second.TotalTokens, first.TotalTokens)
	assert.GreaterOrEqual(t, second.TotalCostUSD, first.TotalCostUSD)
	assert.GreaterOrEqual(t, second.MessagesSent, first.MessagesSent)
	assert.GreaterOrEqual(t, second.ExecutionTimeSeconds, first.ExecutionTimeSeconds)
}
