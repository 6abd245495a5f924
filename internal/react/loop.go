// Package react drives the multi-turn tool-using LLM conversation: budget
// admission, provider streaming, tool dispatch, and termination, each turn
// emitting push events in the strict per-run order clients rely on.
package react

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argus-core/backend/internal/budget"
	"github.com/argus-core/backend/internal/llm"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/push"
	"github.com/argus-core/backend/internal/tools"
)

const (
	maxSteps          = 12
	defaultMaxTokens  = 2048
	providerRetries   = 3
)

var retryBackoff = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// SimilarityLookup embeds an investigation summary and returns the nearest
// past incidents. Optional; a nil lookup disables enrichment entirely.
type SimilarityLookup func(ctx context.Context, summary string, limit int) []model.SimilarIncident

const similarIncidentLimit = 3

// Loop owns the set of in-flight ReActRuns. It has no persistent storage of
// its own: a completed run's summary is handed back to the caller (the
// investigation orchestrator persists it; a user-chat caller may discard it).
type Loop struct {
	provider  llm.Provider
	registry  *tools.Registry
	budget    *budget.Manager
	broadcast push.Broadcaster
	similar   SimilarityLookup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(provider llm.Provider, registry *tools.Registry, budgetMgr *budget.Manager, broadcast push.Broadcaster, similar SimilarityLookup) *Loop {
	return &Loop{
		provider:  provider,
		registry:  registry,
		budget:    budgetMgr,
		broadcast: broadcast,
		similar:   similar,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Cancel stops runID after its current streaming chunk, per spec's bounded
// (≤2s) teardown guarantee. A no-op if the run is unknown or already done.
func (l *Loop) Cancel(runID string) {
	l.mu.Lock()
	cancel, ok := l.cancels[runID]
	l.mu.Unlock()
	if ok {
		cancel()
	}
}

// Run drives run to termination, mutating run.Messages/Steps/Termination in
// place and returning it.
func (l *Loop) Run(ctx context.Context, run *model.ReActRun, systemPrompt string) *model.ReActRun {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancels[run.ID] = cancel
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.cancels, run.ID)
		l.mu.Unlock()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			l.terminate(run, model.TerminationCancelled)
			l.broadcast.Broadcast(model.MsgError, model.ErrorPayload{Code: "cancelled", Message: "run cancelled"})
			l.endBroadcast(run)
			return run
		default:
		}

		if done := l.turn(ctx, run, systemPrompt); done {
			return run
		}

		run.Steps++
		if run.Steps >= maxSteps {
			l.terminate(run, model.TerminationMaxSteps)
			l.summarize(run)
			return run
		}
	}
}

// turn executes algorithm steps 1-6 of one loop iteration. It returns true
// once the run has reached a terminal state.
func (l *Loop) turn(ctx context.Context, run *model.ReActRun, systemPrompt string) bool {
	req := llm.Request{Messages: run.Messages, Tools: l.registry.Definitions(), System: systemPrompt, MaxTokens: defaultMaxTokens}
	estimate := l.provider.EstimateTokens(req)

	token, ok := l.budget.Reserve(ctx, run.Priority, estimate)
	if !ok {
		l.terminate(run, model.TerminationBudget)
		l.broadcast.Broadcast(model.MsgError, model.ErrorPayload{Code: "budget-exhausted", Message: "token budget refused this turn"})
		l.endBroadcast(run)
		return true
	}

	stream, err := l.streamWithRetry(ctx, req)
	if err != nil {
		l.budget.Settle(token, 0)
		l.terminate(run, model.TerminationToolFatal)
		l.broadcast.Broadcast(model.MsgError, model.ErrorPayload{Code: "provider-unavailable", Message: err.Error()})
		l.endBroadcast(run)
		return true
	}

	investigating := run.Initiator == model.InitiatorInvestigate
	if investigating && run.Steps == 0 {
		l.broadcast.Broadcast(model.MsgInvestigationStart, map[string]string{"run_id": run.ID, "conversation_id": run.ConversationID})
	}
	l.broadcast.Broadcast(model.MsgThinkingStart, map[string]string{"run_id": run.ID})
	if !investigating {
		l.broadcast.Broadcast(model.MsgAssistantStart, map[string]string{"run_id": run.ID})
	}

	var assistantText string
	var toolCalls []*model.ToolCall
	var actual int64
	var streamErr error

	for delta := range stream {
		switch delta.Kind {
		case llm.DeltaText:
			assistantText += delta.Text
			if investigating {
				l.broadcast.Broadcast(model.MsgInvestigationUpdate, map[string]string{"run_id": run.ID, "text": delta.Text})
			} else {
				l.broadcast.Broadcast(model.MsgAssistantDelta, map[string]string{"run_id": run.ID, "text": delta.Text})
			}
		case llm.DeltaToolCall:
			delta.ToolCall.ID = uuid.NewString()
			delta.ToolCall.RunID = run.ID
			toolCalls = append(toolCalls, delta.ToolCall)
			l.broadcast.Broadcast(model.MsgToolCall, delta.ToolCall)
		case llm.DeltaDone:
			if delta.Usage != nil {
				actual = delta.Usage.Total()
			}
			streamErr = delta.Err
		}
		select {
		case <-ctx.Done():
			l.budget.Settle(token, actual)
			run.TokensUsed += actual
			l.terminate(run, model.TerminationCancelled)
			l.broadcast.Broadcast(model.MsgError, model.ErrorPayload{Code: "cancelled", Message: "run cancelled"})
			l.endBroadcast(run)
			return true
		default:
		}
	}

	l.budget.Settle(token, actual)
	run.TokensUsed += actual
	l.broadcast.Broadcast(model.MsgThinkingEnd, map[string]string{"run_id": run.ID})

	if streamErr != nil {
		l.terminate(run, model.TerminationToolFatal)
		l.broadcast.Broadcast(model.MsgError, model.ErrorPayload{Code: "provider-error", Message: streamErr.Error()})
		l.endBroadcast(run)
		return true
	}

	if assistantText != "" {
		run.Messages = append(run.Messages, model.Turn{Role: model.RoleAssistant, Content: assistantText, At: time.Now()})
	}

	if len(toolCalls) == 0 {
		run.Summary = assistantText
		l.terminate(run, model.TerminationFinalAnswer)
		l.endBroadcast(run)
		return true
	}

	for _, call := range toolCalls {
		result := l.registry.Dispatch(ctx, *call)
		l.broadcast.Broadcast(model.MsgToolResult, result)
		run.Messages = append(run.Messages, model.Turn{Role: model.RoleTool, ToolCall: call, ToolResult: &result, At: time.Now()})
	}
	return false
}

func (l *Loop) streamWithRetry(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	var lastErr error
	for attempt := 0; attempt < providerRetries; attempt++ {
		stream, err := l.provider.Stream(ctx, req)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if attempt < providerRetries-1 {
			select {
			case <-time.After(retryBackoff[attempt]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("provider unavailable after %d attempts: %w", providerRetries, lastErr)
}

func (l *Loop) terminate(run *model.ReActRun, reason model.TerminationReason) {
	now := time.Now()
	run.Termination = reason
	run.EndedAt = &now
}

// summarize produces the closing turn required when a run hits max-steps
// without reaching a final answer.
func (l *Loop) summarize(run *model.ReActRun) {
	run.Summary = fmt.Sprintf("stopped after %d steps without a final answer", run.Steps)
	l.endBroadcast(run)
}

// endBroadcast emits the run's terminal client event, switching message type
// by Initiator the same way turn() does for the streaming events. An
// investigation's payload carries its nearest past incidents, looked up by
// summary embedding, so the operator sees precedent without an extra round
// trip.
func (l *Loop) endBroadcast(run *model.ReActRun) {
	if run.Initiator == model.InitiatorInvestigate {
		var similar []model.SimilarIncident
		if l.similar != nil && run.Summary != "" {
			similar = l.similar(context.Background(), run.Summary, similarIncidentLimit)
		}
		l.broadcast.Broadcast(model.MsgInvestigationEnd, map[string]any{
			"run_id":            run.ID,
			"summary":           run.Summary,
			"tokens_used":       run.TokensUsed,
			"termination":       run.Termination,
			"similar_incidents": similar,
		})
		return
	}
	l.broadcast.Broadcast(model.MsgAssistantEnd, map[string]string{"run_id": run.ID, "summary": run.Summary})
}
