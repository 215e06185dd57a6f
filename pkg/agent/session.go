// Package agent implements agent sessions (one inference conversation each)
// and the registry that owns their lifecycle.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentfleet/maestro/pkg/agentlog"
	"github.com/agentfleet/maestro/pkg/llm"
	"github.com/agentfleet/maestro/pkg/models"
)

// maxContextTokens is the model context window used for usage reporting.
const maxContextTokens = 200_000

// Progress callback event names. Delivery is strictly sequential per session,
// always from the session's stream-consuming goroutine.
const (
	ProgressStarted   = "started"
	ProgressThinking  = "thinking"
	ProgressToolCall  = "tool_call"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// ProgressFunc receives lifecycle notifications for one session.
type ProgressFunc func(event string, data string)

// ContextWindowUsage reports progress toward the model context limit.
type ContextWindowUsage struct {
	TotalTokensUsed    int     `json:"total_tokens_used"`
	MaxContextTokens   int     `json:"max_context_tokens"`
	UsagePercentage    float64 `json:"usage_percentage"`
	EstimatedRemaining int     `json:"estimated_remaining"`
	SessionID          string  `json:"session_id,omitempty"`
}

// Session wraps one SDK conversation: it consumes the streamed blocks,
// tallies tokens, cost, and tool usage, and reports lifecycle progress.
// Sessions are owned exclusively by the Registry and end at StatusDeleted.
type Session struct {
	ID string

	client llm.Client
	logger *agentlog.Logger
	log    *slog.Logger

	mu          sync.RWMutex
	config      models.AgentConfig
	status      models.AgentStatus
	metrics     models.AgentMetrics
	toolCalls   []models.ToolCall
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
	progress    ProgressFunc
}

// NewSession creates a session in StatusCreated. The agentlog logger may be
// a disabled logger but must not be nil.
func NewSession(id string, config models.AgentConfig, client llm.Client, logger *agentlog.Logger, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	config.ApplyDefaults()
	return &Session{
		ID:        id,
		client:    client,
		logger:    logger,
		log:       log.With("agent_id", id, "agent_name", config.Name),
		config:    config,
		status:    models.StatusCreated,
		metrics:   models.NewAgentMetrics(id),
		createdAt: time.Now().UTC(),
	}
}

// SetProgressFunc installs the progress callback. Must be called before
// ExecuteTask; the session invokes it sequentially from its own goroutine.
func (s *Session) SetProgressFunc(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

// Status returns the current lifecycle status.
func (s *Session) Status() models.AgentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Config returns a copy of the session configuration.
func (s *Session) Config() models.AgentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Metrics returns a snapshot of the session metrics.
func (s *Session) Metrics() models.AgentMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.Clone()
}

// ToolCalls returns a snapshot of the recorded tool calls.
func (s *Session) ToolCalls() []models.ToolCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ToolCall(nil), s.toolCalls...)
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// setStatus transitions the session, ignoring illegal transitions with a
// warning (internal transitions follow the state machine by construction).
func (s *Session) setStatus(next models.AgentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := models.ValidateTransition(s.status, next); err != nil {
		s.log.Warn("Ignoring illegal status transition", "error", err)
		return
	}
	s.status = next
}

// ExecuteTask runs the initial task on a fresh conversation and returns the
// assembled output with final metrics. Transport failures never propagate:
// they surface as a TaskResult with Success=false and partial metrics.
func (s *Session) ExecuteTask(ctx context.Context, taskPrompt string) models.TaskResult {
	s.setStatus(models.StatusRunning)
	now := time.Now().UTC()
	s.mu.Lock()
	s.startedAt = &now
	s.mu.Unlock()
	start := time.Now()

	s.callProgress(ProgressStarted, "")
	s.logger.LogPrompt(taskPrompt)

	output, err := s.consumeStream(ctx, taskPrompt)

	s.mu.Lock()
	s.metrics.MessagesSent++
	s.metrics.ExecutionTimeSeconds += time.Since(start).Seconds()
	done := time.Now().UTC()
	s.completedAt = &done
	s.mu.Unlock()

	if err != nil {
		s.setStatus(models.StatusFailed)
		s.callProgress(ProgressFailed, err.Error())
		s.log.Error("Agent task failed", "error", err)
		return models.TaskResult{
			AgentID:         s.ID,
			TaskDescription: taskPrompt,
			Success:         false,
			Error:           err.Error(),
			Metrics:         s.Metrics(),
			Timestamp:       time.Now().UTC(),
		}
	}

	s.setStatus(models.StatusCompleted)
	s.callProgress(ProgressCompleted, "")

	metrics := s.Metrics()
	return models.TaskResult{
		AgentID:         s.ID,
		TaskDescription: taskPrompt,
		Success:         true,
		Output:          output,
		Metrics:         metrics,
		Artifacts:       append([]string(nil), metrics.FilesWritten...),
		Timestamp:       time.Now().UTC(),
	}
}

// SendMessage runs a continuation turn on the existing conversation and
// parks the session in StatusWaiting. The stored session id is passed as
// the SDK resume token, so the conversation context is preserved.
func (s *Session) SendMessage(ctx context.Context, message string) (string, error) {
	s.setStatus(models.StatusRunning)
	start := time.Now()

	s.logger.LogPrompt("[CONTINUE] " + message)

	output, err := s.consumeStream(ctx, message)

	s.mu.Lock()
	s.metrics.MessagesSent++
	s.metrics.ExecutionTimeSeconds += time.Since(start).Seconds()
	s.mu.Unlock()

	if err != nil {
		s.setStatus(models.StatusFailed)
		return "", err
	}

	s.setStatus(models.StatusWaiting)
	return output, nil
}

// consumeStream drives one SDK turn, applying the stream interpretation
// rules: text accumulates into output, thinking and tool-use emit progress,
// tool results resolve the most recent unresolved call, and the
// terminal result message updates metrics and the resume token.
func (s *Session) consumeStream(ctx context.Context, prompt string) (string, error) {
	s.mu.RLock()
	opts := llm.Options{
		WorkingDir:      s.config.WorkingDirectory,
		SystemPrompt:    s.config.SystemPrompt,
		AllowedTools:    s.config.AllowedTools,
		PermissionMode:  string(s.config.PermissionMode),
		Model:           s.config.Model,
		MaxOutputTokens: s.config.MaxOutputTokens,
		Temperature:     s.config.Temperature,
		Resume:          s.config.SessionID,
	}
	s.mu.RUnlock()

	stream, err := s.client.Query(ctx, prompt, opts)
	if err != nil {
		return "", err
	}

	var output string
	for msg := range stream {
		s.logger.LogMessage(msg)

		switch m := msg.(type) {
		case llm.AssistantMessage:
			for _, blockValue := range m.Content {
				switch block := blockValue.(type) {
				case llm.TextBlock:
					output += block.Text
				case llm.ThinkingBlock:
					s.callProgress(ProgressThinking, "")
				case llm.ToolUseBlock:
					s.trackToolUse(block)
					s.callProgress(ProgressToolCall, block.Name)
				case llm.ToolResultBlock:
					s.trackToolResult(block)
				}
			}
		case llm.UserMessage:
			for _, blockValue := range m.Content {
				if block, ok := blockValue.(llm.ToolResultBlock); ok {
					s.trackToolResult(block)
				}
			}
		case llm.ResultMessage:
			s.mu.Lock()
			s.metrics.AddUsage(
				m.Usage.InputTokens,
				m.Usage.OutputTokens,
				m.Usage.CacheCreationInputTokens,
				m.Usage.CacheReadInputTokens,
				m.TotalCostUSD,
			)
			if m.SessionID != "" {
				s.config.SessionID = m.SessionID
			}
			s.mu.Unlock()
		case llm.StreamError:
			return output, m.Err
		}
	}

	return output, nil
}

// trackToolUse appends a ToolCall and records file operations: Read paths go
// to files_read, Write/Edit paths to files_written, deduplicated in order.
func (s *Session) trackToolUse(block llm.ToolUseBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toolCalls = append(s.toolCalls, models.ToolCall{
		ToolName:  block.Name,
		Arguments: block.Input,
		Success:   true,
		Timestamp: time.Now().UTC(),
	})
	s.metrics.ToolCalls++

	filePath, _ := block.Input["file_path"].(string)
	switch block.Name {
	case "Read":
		s.metrics.RecordFileRead(filePath)
	case "Write", "Edit":
		s.metrics.RecordFileWritten(filePath)
	}
}

// trackToolResult attaches the result to the most recent unresolved tool
// call (LIFO match).
func (s *Session) trackToolResult(block llm.ToolResultBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.toolCalls) - 1; i >= 0; i-- {
		if s.toolCalls[i].Result == nil {
			s.toolCalls[i].Result = block.Content
			s.toolCalls[i].Success = !block.IsError
			if block.IsError {
				s.toolCalls[i].Error = stringifyContent(block.Content)
			}
			return
		}
	}
}

// ContextUsage reports progress toward the model's context window limit.
func (s *Session) ContextUsage() ContextWindowUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	used := s.metrics.TotalTokens
	pct := 0.0
	if used > 0 {
		pct = float64(used) / maxContextTokens * 100
	}
	return ContextWindowUsage{
		TotalTokensUsed:    used,
		MaxContextTokens:   maxContextTokens,
		UsagePercentage:    pct,
		EstimatedRemaining: maxContextTokens - used,
		SessionID:          s.config.SessionID,
	}
}

// Summary returns the state/metrics snapshot exposed by the status APIs.
func (s *Session) Summary() map[string]any {
	usage := s.ContextUsage()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"agent_id":   s.ID,
		"name":       s.config.Name,
		"role":       string(s.config.Role),
		"status":     string(s.status),
		"model":      s.config.Model,
		"task_id":    s.config.TaskID,
		"created_at": s.createdAt.Format(time.RFC3339Nano),
		"metrics": map[string]any{
			"total_cost_usd":        s.metrics.TotalCostUSD,
			"total_tokens":          s.metrics.TotalTokens,
			"input_tokens":          s.metrics.InputTokens,
			"output_tokens":         s.metrics.OutputTokens,
			"cache_creation_tokens": s.metrics.CacheCreationTokens,
			"cache_read_tokens":     s.metrics.CacheReadTokens,
			"messages_sent":         s.metrics.MessagesSent,
			"tool_calls":            s.metrics.ToolCalls,
			"files_read":            len(s.metrics.FilesRead),
			"files_written":         len(s.metrics.FilesWritten),
			"execution_time":        s.metrics.ExecutionTimeSeconds,
		},
		"context_usage": usage,
	}
}

// Cleanup releases the session's resources: the conversation token is
// cleared, tool-call history discarded, and the status becomes DELETED.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = models.StatusDeleted
	s.config.SessionID = ""
	s.toolCalls = nil
}

func (s *Session) callProgress(event, data string) {
	s.mu.RLock()
	fn := s.progress
	s.mu.RUnlock()
	if fn != nil {
		fn(event, data)
	}
}

func stringifyContent(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	if content == nil {
		return ""
	}
	return fmt.Sprintf("%v", content)
}
