// Package investigation starts and supervises the auto-investigation
// ReActRuns that the alert engine triggers on an URGENT alert with
// auto-investigate enabled. It owns the Investigation catalog record and the
// link back to the running Loop so a later alert resolution can cancel it.
package investigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argus-core/backend/internal/client"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/react"
)

const systemPrompt = `You are investigating a production alert. Use the available tools to gather evidence (metrics, logs, processes) before concluding. State your root-cause hypothesis and recommended next step as your final answer.`

// Orchestrator starts one ReActRun per investigated alert and tracks it by
// alert id so Cancel can be driven from the alert lifecycle.
type Orchestrator struct {
	loop       *react.Loop
	store      *db.Postgres
	embeddings *client.EmbeddingClient // optional; nil disables similarity search

	mu      sync.Mutex
	byAlert map[string]*model.ReActRun
}

func New(loop *react.Loop, store *db.Postgres, embeddings *client.EmbeddingClient) *Orchestrator {
	return &Orchestrator{
		loop:       loop,
		store:      store,
		embeddings: embeddings,
		byAlert:    make(map[string]*model.ReActRun),
	}
}

// Start persists an Investigation row and runs the ReActRun in its own
// goroutine so the alert engine's event-handling goroutine never blocks on
// an LLM round trip. The run's initial message is a compact description of
// the alert and the rule that fired it.
func (o *Orchestrator) Start(ctx context.Context, alert model.Alert, rule model.AlertRule) {
	run := &model.ReActRun{
		ID:             uuid.NewString(),
		Initiator:      model.InitiatorInvestigate,
		ConversationID: alert.ID,
		Priority:       model.PriorityUrgent,
		StartedAt:      time.Now(),
		Messages: []model.Turn{{
			Role:    model.RoleUser,
			Content: describeAlert(alert, rule),
			At:      time.Now(),
		}},
	}

	o.mu.Lock()
	o.byAlert[alert.ID] = run
	o.mu.Unlock()

	inv := model.Investigation{
		ID:        uuid.NewString(),
		AlertID:   alert.ID,
		RunID:     run.ID,
		Status:    "running",
		StartedAt: run.StartedAt,
	}
	if o.store != nil {
		if err := o.store.InsertInvestigation(ctx, inv); err != nil {
			return
		}
		_ = o.store.SetAlertInvestigation(ctx, alert.ID, inv.ID)
	}

	go o.run(context.Background(), run, inv)
}

func (o *Orchestrator) run(ctx context.Context, run *model.ReActRun, inv model.Investigation) {
	defer func() {
		o.mu.Lock()
		delete(o.byAlert, inv.AlertID)
		o.mu.Unlock()
	}()

	o.loop.Run(ctx, run, systemPrompt)

	inv.Status = statusFromTermination(run.Termination)
	inv.EndedAt = run.EndedAt
	inv.Summary = run.Summary
	inv.TokensUsed = run.TokensUsed

	if o.store == nil {
		return
	}
	_ = o.store.UpdateInvestigation(context.Background(), inv)

	if o.embeddings != nil && inv.Summary != "" {
		if vec, modelName, err := o.embeddings.EmbedText(context.Background(), inv.Summary); err == nil {
			_ = o.store.InsertInvestigationEmbedding(context.Background(), inv.ID, inv.Summary, modelName, vec)
		}
	}
}

// Cancel stops the in-flight investigation for alertID, if any. A no-op if
// the alert has no running investigation (already finished, or never had
// one), which is the common case when an operator resolves an alert whose
// auto-investigation already completed.
func (o *Orchestrator) Cancel(alertID string) {
	o.mu.Lock()
	run, ok := o.byAlert[alertID]
	o.mu.Unlock()
	if !ok {
		return
	}
	o.loop.Cancel(run.ID)
}

func statusFromTermination(reason model.TerminationReason) string {
	if reason == model.TerminationCancelled {
		return "cancelled"
	}
	return "completed"
}

func describeAlert(alert model.Alert, rule model.AlertRule) string {
	return fmt.Sprintf(
		"Alert %q fired at %s (severity %s, source %s) by rule %q. Summary: %s",
		alert.Title, alert.FiredAt.Format(time.RFC3339), alert.Severity, alert.Source, rule.Name, alert.Summary,
	)
}
