// Package llm declares the request/response contract the ReAct loop drives
// against an LLM provider, plus concrete providers for Gemini, OpenAI, and
// Anthropic. The core never depends on a specific provider's wire shape
// beyond this package.
package llm

import (
	"context"

	"github.com/argus-core/backend/internal/model"
)

// Request is one turn's worth of context sent to the provider: the running
// history plus the tool schemas the model may call.
type Request struct {
	Messages []model.Turn
	Tools    []model.ToolDefinition
	System   string
	MaxTokens int
}

// DeltaKind distinguishes the stream events a Provider emits mid-turn.
type DeltaKind string

const (
	DeltaText     DeltaKind = "text"
	DeltaToolCall DeltaKind = "tool_call"
	DeltaDone     DeltaKind = "done"
)

// Delta is one unit of a provider's streamed response.
type Delta struct {
	Kind     DeltaKind
	Text     string
	ToolCall *model.ToolCall
	// Usage is populated only on the terminal DeltaDone event.
	Usage *Usage
	Err    error
}

// Usage reports actual token consumption for a completed turn, used to
// settle the reservation the ReAct loop made before sending the request.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

func (u Usage) Total() int64 { return u.PromptTokens + u.CompletionTokens }

// Provider streams a single turn's response. The returned channel is closed
// after a DeltaDone (or error) event; callers must drain it to completion or
// cancel ctx to stop early.
type Provider interface {
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
	// EstimateTokens approximates the token cost of req for budget admission,
	// ahead of actually sending it.
	EstimateTokens(req Request) int64
}
