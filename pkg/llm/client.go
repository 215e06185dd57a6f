// Package llm defines the inference SDK contract: a streaming query that
// yields typed message values over a channel, and the production client
// backed by the Anthropic Messages API.
//
// The orchestrator core treats the SDK as opaque: it consumes the message
// stream to completion and never inspects transport details. Errors are
// delivered in-band as StreamError values so consumers see a single,
// ordered stream.
package llm

import "context"

// Client is the streaming inference interface consumed by agent sessions.
type Client interface {
	// Query opens a conversation turn and returns a channel of messages.
	// The channel is closed when the stream completes. Stream failures are
	// delivered as StreamError values, not as a second return path.
	Query(ctx context.Context, prompt string, opts Options) (<-chan Message, error)
}

// Options configures one conversation turn.
type Options struct {
	WorkingDir      string
	SystemPrompt    string
	AllowedTools    []string
	PermissionMode  string
	Model           string
	MaxOutputTokens int
	Temperature     float64

	// Resume continues the conversation identified by a prior session id.
	Resume string
}

// Message is the interface for all stream message variants.
type Message interface {
	message()
}

// ContentBlock is the interface for assistant/user message content blocks.
type ContentBlock interface {
	block()
}

// TextBlock is a chunk of assistant output text.
type TextBlock struct {
	Text string
}

// ThinkingBlock is internal model reasoning; reported but not part of output.
type ThinkingBlock struct {
	Thinking string
}

// ToolUseBlock signals the model invoked a tool.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResultBlock carries the outcome of a prior tool invocation.
type ToolResultBlock struct {
	ToolUseID string
	Content   any
	IsError   bool
}

func (TextBlock) block()       {}
func (ThinkingBlock) block()   {}
func (ToolUseBlock) block()    {}
func (ToolResultBlock) block() {}

// AssistantMessage groups content blocks produced by the model.
type AssistantMessage struct {
	Content []ContentBlock
}

// UserMessage groups content blocks injected on the user side of the
// conversation (tool results arrive this way).
type UserMessage struct {
	Content []ContentBlock
}

// SystemMessage is an out-of-band SDK notification.
type SystemMessage struct {
	Subtype string
}

// Usage is the token accounting reported by the terminal result message.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// ResultMessage terminates a successful stream and carries final accounting.
type ResultMessage struct {
	Usage        Usage
	TotalCostUSD float64
	SessionID    string
	DurationMs   int64
	NumTurns     int
	IsError      bool
	Result       string
}

// StreamError terminates a failed stream.
type StreamError struct {
	Err error
}

func (StreamError) message()      {}
func (AssistantMessage) message() {}
func (UserMessage) message()      {}
func (SystemMessage) message()    {}
func (ResultMessage) message()    {}
