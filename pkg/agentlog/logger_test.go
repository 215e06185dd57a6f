package agentlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentfleet/maestro/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_DirectoryLayout(t *testing.T) {
	root := t.TempDir()
	logger := New(root, "task-42", "0123456789abcdef", "Builder Agent", true, slog.Default())

	dir := logger.Dir()
	require.NotEmpty(t, dir)
	assert.Contains(t, dir, filepath.Join(root, "task-42"))

	base := filepath.Base(dir)
	assert.True(t, strings.HasPrefix(base, "01234567_Builder_Agent_"), "got %s", base)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLogger_NoTaskID(t *testing.T) {
	root := t.TempDir()
	logger := New(root, "", "0123456789abcdef", "Solo Agent", true, slog.Default())
	assert.Equal(t, root, filepath.Dir(logger.Dir()))
}

func TestLogger_PromptAndText(t *testing.T) {
	root := t.TempDir()
	logger := New(root, "t", "0123456789abcdef", "Agent", true, slog.Default())

	logger.LogPrompt("do the thing")
	logger.LogMessage(llm.AssistantMessage{Content: []llm.ContentBlock{
		llm.TextBlock{Text: "working on it"},
		llm.ThinkingBlock{Thinking: "internal reasoning"},
	}})

	prompt, err := os.ReadFile(filepath.Join(logger.Dir(), "prompt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "do the thing", string(prompt))

	text, err := os.ReadFile(filepath.Join(logger.Dir(), "text.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "AssistantMessage:\nworking on it")
	assert.Contains(t, string(text), "THINKING:\ninternal reasoning")
}

func TestLogger_ToolsJSONL(t *testing.T) {
	root := t.TempDir()
	logger := New(root, "t", "0123456789abcdef", "Agent", true, slog.Default())

	logger.LogMessage(llm.AssistantMessage{Content: []llm.ContentBlock{
		llm.ToolUseBlock{ID: "tu1", Name: "Read", Input: map[string]any{"file_path": "/a"}},
		llm.ToolResultBlock{ToolUseID: "tu1", Content: "short result", IsError: false},
	}})

	data, err := os.ReadFile(filepath.Join(logger.Dir(), "tools.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var use map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &use))
	assert.Equal(t, "tool_use", use["type"])
	assert.Equal(t, "Read", use["tool_name"])
	assert.Equal(t, "tu1", use["tool_use_id"])

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &result))
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "short result", result["content"])
	assert.Equal(t, false, result["is_error"])
}

func TestLogger_ToolResultTruncation(t *testing.T) {
	root := t.TempDir()
	logger := New(root, "t", "0123456789abcdef", "Agent", true, slog.Default())

	huge := strings.Repeat("x", 5000)
	logger.LogMessage(llm.AssistantMessage{Content: []llm.ContentBlock{
		llm.ToolResultBlock{ToolUseID: "tu1", Content: huge},
	}})

	data, err := os.ReadFile(filepath.Join(logger.Dir(), "tools.jsonl"))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record))
	content := record["content"].(string)
	assert.Contains(t, content, "... (truncated 3000 chars)")
	assert.Less(t, len(content), 2100)
}

func TestLogger_SummaryJSONL(t *testing.T) {
	root := t.TempDir()
	logger := New(root, "t", "0123456789abcdef", "Agent", true, slog.Default())

	logger.LogMessage(llm.SystemMessage{Subtype: "init"})
	logger.LogMessage(llm.ResultMessage{
		Usage:        llm.Usage{InputTokens: 10, OutputTokens: 5},
		TotalCostUSD: 0.02,
		SessionID:    "sess-1",
		NumTurns:     1,
	})

	data, err := os.ReadFile(filepath.Join(logger.Dir(), "summary.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var system map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &system))
	assert.Equal(t, "SystemMessage", system["type"])
	assert.Equal(t, "init", system["subtype"])

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &result))
	assert.Equal(t, "ResultMessage", result["type"])
	assert.Equal(t, "sess-1", result["session_id"])
	assert.Equal(t, float64(2), result["total_messages_processed"])
}

func TestLogger_Disabled(t *testing.T) {
	logger := New(t.TempDir(), "t", "abc", "Agent", false, slog.Default())
	assert.Empty(t, logger.Dir())

	// All calls are no-ops and must not panic.
	logger.LogPrompt("prompt")
	logger.LogMessage(llm.AssistantMessage{Content: []llm.ContentBlock{llm.TextBlock{Text: "x"}}})
}
