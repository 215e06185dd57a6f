package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
)

// AnthropicClient implements Client over the Anthropic Messages streaming API.
//
// Conversation continuity: the Messages API is stateless, so the client keeps
// a per-session transcript keyed by session id. A Query with Resume set
// replays the stored transcript before the new prompt; a Query without Resume
// starts a fresh session with a generated id. The terminal ResultMessage
// reports the session id to use for the next turn.
type AnthropicClient struct {
	client anthropic.Client

	mu       sync.Mutex
	sessions map[string][]anthropic.MessageParam
}

// NewAnthropicClient creates a client. An empty apiKey defers to the
// ANTHROPIC_API_KEY environment variable handled by the SDK.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicClient{
		client:   anthropic.NewClient(opts...),
		sessions: make(map[string][]anthropic.MessageParam),
	}
}

// Query opens one conversation turn and streams typed messages.
func (c *AnthropicClient) Query(ctx context.Context, prompt string, opts Options) (<-chan Message, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt must not be empty")
	}

	sessionID := opts.Resume
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	c.mu.Lock()
	history := append([]anthropic.MessageParam(nil), c.sessions[sessionID]...)
	c.mu.Unlock()

	userTurn := anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))
	messages := append(history, userTurn)

	model := opts.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	out := make(chan Message, 64)
	go c.consumeStream(ctx, params, userTurn, sessionID, model, out)
	return out, nil
}

// consumeStream drains the SSE stream, emitting one AssistantMessage per
// completed content block and a terminal ResultMessage with usage and cost.
func (c *AnthropicClient) consumeStream(
	ctx context.Context,
	params anthropic.MessageNewParams,
	userTurn anthropic.MessageParam,
	sessionID, model string,
	out chan<- Message,
) {
	defer close(out)

	start := time.Now()
	stream := c.client.Messages.NewStreaming(ctx, params)

	var (
		usage Usage

		blockType   string
		textBuf     string
		thinkingBuf string
		toolID      string
		toolName    string
		toolInput   string

		assistantText string
	)

	flushBlock := func() {
		switch blockType {
		case "text":
			if textBuf != "" {
				assistantText += textBuf
				out <- AssistantMessage{Content: []ContentBlock{TextBlock{Text: textBuf}}}
			}
		case "thinking":
			if thinkingBuf != "" {
				out <- AssistantMessage{Content: []ContentBlock{ThinkingBlock{Thinking: thinkingBuf}}}
			}
		case "tool_use":
			input := map[string]any{}
			if toolInput != "" {
				_ = json.Unmarshal([]byte(toolInput), &input)
			}
			out <- AssistantMessage{Content: []ContentBlock{ToolUseBlock{ID: toolID, Name: toolName, Input: input}}}
		}
		blockType, textBuf, thinkingBuf, toolID, toolName, toolInput = "", "", "", "", "", ""
	}

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			msgStart := event.AsMessageStart()
			usage.InputTokens = int(msgStart.Message.Usage.InputTokens)
			usage.CacheCreationInputTokens = int(msgStart.Message.Usage.CacheCreationInputTokens)
			usage.CacheReadInputTokens = int(msgStart.Message.Usage.CacheReadInputTokens)

		case "content_block_start":
			blockStart := event.AsContentBlockStart()
			switch block := blockStart.ContentBlock.AsAny().(type) {
			case anthropic.TextBlock:
				blockType = "text"
			case anthropic.ThinkingBlock:
				blockType = "thinking"
			case anthropic.ToolUseBlock:
				blockType = "tool_use"
				toolID = block.ID
				toolName = block.Name
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				textBuf += d.Text
			case anthropic.ThinkingDelta:
				thinkingBuf += d.Thinking
			case anthropic.InputJSONDelta:
				toolInput += d.PartialJSON
			}

		case "content_block_stop":
			flushBlock()

		case "message_delta":
			msgDelta := event.AsMessageDelta()
			usage.OutputTokens = int(msgDelta.Usage.OutputTokens)

		case "error":
			out <- StreamError{Err: fmt.Errorf("stream error: %s", event.RawJSON())}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- StreamError{Err: err}
		return
	}
	flushBlock()

	c.recordTurn(sessionID, userTurn, assistantText)

	out <- ResultMessage{
		Usage:        usage,
		TotalCostUSD: estimateCostUSD(model, usage),
		SessionID:    sessionID,
		DurationMs:   time.Since(start).Milliseconds(),
		NumTurns:     1,
		Result:       assistantText,
	}
}

// recordTurn appends the completed exchange to the session transcript.
func (c *AnthropicClient) recordTurn(sessionID string, userTurn anthropic.MessageParam, assistantText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := c.sessions[sessionID]
	history = append(history, userTurn)
	if assistantText != "" {
		history = append(history, anthropic.NewAssistantMessage(anthropic.NewTextBlock(assistantText)))
	}
	c.sessions[sessionID] = history
}

// DropSession discards the stored transcript for a session id.
func (c *AnthropicClient) DropSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}
