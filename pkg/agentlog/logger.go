// Package agentlog writes per-agent log directories capturing the full SDK
// message stream: the initial prompt, text and thinking blocks, tool calls
// and results, and the terminal result with metrics.
//
// Layout: <root>/<task_id>/<agent_id[:8]>_<sanitized_name>_<YYYYMMDD_HHMMSS>/
// containing prompt.txt, text.txt, tools.jsonl, summary.jsonl. Writes are
// append-only, one line (or record) per event.
package agentlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentfleet/maestro/pkg/llm"
)

// maxToolResultChars bounds tool-result content stored in tools.jsonl.
const maxToolResultChars = 2000

// Logger appends one agent's stream to its log directory. A disabled logger
// is a no-op, so callers never guard their log calls.
type Logger struct {
	enabled      bool
	dir          string
	messageCount int
	log          *slog.Logger
}

// New creates a logger rooted at dir for the given agent. When taskID is
// empty the agent directory sits directly under the root. Directory creation
// failures disable the logger rather than failing agent execution.
func New(root, taskID, agentID, agentName string, enabled bool, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	if !enabled {
		return &Logger{log: log}
	}

	timestamp := time.Now().Format("20060102_150405")
	safeName := sanitizeName(agentName)
	shortID := agentID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	base := root
	if taskID != "" {
		base = filepath.Join(root, taskID)
	}
	dir := filepath.Join(base, fmt.Sprintf("%s_%s_%s", shortID, safeName, timestamp))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("Failed to create agent log directory, disabling file logging",
			"agent_id", agentID, "dir", dir, "error", err)
		return &Logger{log: log}
	}
	return &Logger{enabled: true, dir: dir, log: log}
}

// Dir returns the log directory path, or "" when logging is disabled.
func (l *Logger) Dir() string {
	return l.dir
}

// LogPrompt writes the initial task prompt.
func (l *Logger) LogPrompt(prompt string) {
	if !l.enabled {
		return
	}
	if err := os.WriteFile(filepath.Join(l.dir, "prompt.txt"), []byte(prompt), 0o644); err != nil {
		l.log.Warn("Failed to write prompt log", "dir", l.dir, "error", err)
	}
}

// LogMessage routes one SDK stream message to the appropriate log file.
func (l *Logger) LogMessage(msg llm.Message) {
	if !l.enabled {
		return
	}
	l.messageCount++

	switch m := msg.(type) {
	case llm.AssistantMessage:
		l.logBlocks("AssistantMessage", m.Content)
	case llm.UserMessage:
		l.logBlocks("UserMessage", m.Content)
	case llm.SystemMessage:
		l.appendJSON("summary.jsonl", map[string]any{
			"timestamp": time.Now().Format(time.RFC3339Nano),
			"type":      "SystemMessage",
			"subtype":   m.Subtype,
		})
	case llm.ResultMessage:
		l.appendJSON("summary.jsonl", map[string]any{
			"timestamp":                time.Now().Format(time.RFC3339Nano),
			"type":                     "ResultMessage",
			"is_error":                 m.IsError,
			"result":                   m.Result,
			"duration_ms":              m.DurationMs,
			"num_turns":                m.NumTurns,
			"session_id":               m.SessionID,
			"total_cost_usd":           m.TotalCostUSD,
			"usage":                    m.Usage,
			"total_messages_processed": l.messageCount,
		})
	}
}

func (l *Logger) logBlocks(kind string, blocks []llm.ContentBlock) {
	for _, blockValue := range blocks {
		switch block := blockValue.(type) {
		case llm.TextBlock:
			l.appendText(kind, block.Text)
		case llm.ThinkingBlock:
			l.appendText("THINKING", block.Thinking)
		case llm.ToolUseBlock:
			l.appendJSON("tools.jsonl", map[string]any{
				"timestamp":   time.Now().Format(time.RFC3339Nano),
				"type":        "tool_use",
				"tool_name":   block.Name,
				"tool_use_id": block.ID,
				"input":       block.Input,
			})
		case llm.ToolResultBlock:
			l.appendJSON("tools.jsonl", map[string]any{
				"timestamp":   time.Now().Format(time.RFC3339Nano),
				"type":        "tool_result",
				"tool_use_id": block.ToolUseID,
				"content":     truncateContent(block.Content),
				"is_error":    block.IsError,
			})
		}
	}
}

func (l *Logger) appendText(kind, content string) {
	record := fmt.Sprintf("[%s] %s:\n%s\n\n", time.Now().Format(time.RFC3339Nano), kind, content)
	l.appendFile("text.txt", []byte(record))
}

func (l *Logger) appendJSON(name string, record map[string]any) {
	data, err := json.Marshal(record)
	if err != nil {
		l.log.Warn("Failed to marshal log record", "file", name, "error", err)
		return
	}
	l.appendFile(name, append(data, '\n'))
}

func (l *Logger) appendFile(name string, data []byte) {
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.log.Warn("Failed to open log file", "file", name, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		l.log.Warn("Failed to append log record", "file", name, "error", err)
	}
}

func truncateContent(content any) string {
	s, ok := content.(string)
	if !ok {
		s = fmt.Sprintf("%v", content)
	}
	if len(s) > maxToolResultChars {
		return s[:maxToolResultChars] + fmt.Sprintf("... (truncated %d chars)", len(s)-maxToolResultChars)
	}
	return s
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_")
	return replacer.Replace(name)
}
