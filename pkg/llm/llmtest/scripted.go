// Package llmtest provides a scripted llm.Client for tests: each Query pops
// the next scripted turn and streams its messages in order.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentfleet/maestro/pkg/llm"
)

// Turn is one scripted conversation turn.
type Turn struct {
	// Messages are streamed in order. A terminal ResultMessage (or
	// StreamError) should be last; Text is a convenience that expands into
	// a single text AssistantMessage followed by a ResultMessage when
	// Messages is nil.
	Messages []llm.Message
	Text     string
	Err      error
}

// ScriptedClient replays scripted turns. Turns are consumed globally in
// Query order, which matches sequential execution; for parallel tests use
// one client per expectation or rely on identical turns.
type ScriptedClient struct {
	mu    sync.Mutex
	turns []Turn
	calls []Call
}

// Call records the arguments of one Query invocation.
type Call struct {
	Prompt string
	Opts   llm.Options
}

// NewScriptedClient creates a client that replays the given turns.
func NewScriptedClient(turns ...Turn) *ScriptedClient {
	return &ScriptedClient{turns: turns}
}

// Calls returns a copy of every recorded Query invocation.
func (c *ScriptedClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Query pops the next scripted turn and streams its messages.
func (c *ScriptedClient) Query(ctx context.Context, prompt string, opts llm.Options) (<-chan llm.Message, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Prompt: prompt, Opts: opts})
	if len(c.turns) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("scripted client: no turns left for prompt %q", prompt)
	}
	turn := c.turns[0]
	c.turns = c.turns[1:]
	c.mu.Unlock()

	messages := turn.Messages
	if messages == nil {
		switch {
		case turn.Err != nil:
			messages = []llm.Message{llm.StreamError{Err: turn.Err}}
		default:
			messages = []llm.Message{
				llm.AssistantMessage{Content: []llm.ContentBlock{llm.TextBlock{Text: turn.Text}}},
				llm.ResultMessage{
					Usage:     llm.Usage{InputTokens: 10, OutputTokens: 5},
					SessionID: "scripted-session",
					NumTurns:  1,
					Result:    turn.Text,
				},
			}
		}
	}

	out := make(chan llm.Message, len(messages))
	go func() {
		defer close(out)
		for _, msg := range messages {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// TextTurn builds a turn that streams text and a ResultMessage with the
// given usage and cost.
func TextTurn(text string, usage llm.Usage, costUSD float64) Turn {
	return Turn{Messages: []llm.Message{
		llm.AssistantMessage{Content: []llm.ContentBlock{llm.TextBlock{Text: text}}},
		llm.ResultMessage{Usage: usage, TotalCostUSD: costUSD, SessionID: "scripted-session", NumTurns: 1, Result: text},
	}}
}

// ErrTurn builds a turn that fails mid-stream after optional leading text.
func ErrTurn(leadingText string, err error) Turn {
	messages := []llm.Message{}
	if leadingText != "" {
		messages = append(messages, llm.AssistantMessage{Content: []llm.ContentBlock{llm.TextBlock{Text: leadingText}}})
	}
	messages = append(messages, llm.StreamError{Err: err})
	return Turn{Messages: messages}
}
