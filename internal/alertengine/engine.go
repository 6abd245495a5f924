// Package alertengine turns classified events into Alerts. It holds a
// cached copy of the rule catalog and a small per-rule flap window, so that
// the bus delivery goroutine never blocks on a database round trip while
// deciding whether an event should fire.
package alertengine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/bus"
	"github.com/argus-core/backend/internal/budget"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/investigation"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/notify"
)

// flapCounter is a sliding-window occurrence count per (ruleID, dedupKey),
// mirroring the classifier's burst-window shape.
type flapCounter struct {
	windowStart time.Time
	count       int
}

// Engine subscribes to events.classified, matches each event against the
// cached rule catalog, and fires/dedupes/cools down Alerts accordingly.
type Engine struct {
	store     *db.Postgres
	publisher *bus.Bus
	budget    *budget.Manager
	inv       *investigation.Orchestrator
	notifier  *notify.Notifier

	mu    sync.RWMutex
	rules []model.AlertRule

	flapMu sync.Mutex
	flaps  map[[2]string]*flapCounter
}

func New(store *db.Postgres, publisher *bus.Bus, budgetMgr *budget.Manager, inv *investigation.Orchestrator, notifier *notify.Notifier) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		budget:    budgetMgr,
		inv:       inv,
		notifier:  notifier,
		flaps:     make(map[[2]string]*flapCounter),
	}
}

// LoadRules refreshes the in-memory rule cache from the catalog. Callers
// must call this once at startup and again after any mute/unmute/upsert.
func (e *Engine) LoadRules(ctx context.Context) error {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alert rules: %w", err)
	}
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
	return nil
}

// Subscribe registers the engine's handler on events.classified. The
// returned Subscription can be passed to bus.Unsubscribe for teardown.
func (e *Engine) Subscribe() *bus.Subscription {
	return e.publisher.Subscribe(bus.TopicEventsClassified, func(msg bus.Message) {
		ev, ok := msg.Payload.(model.Event)
		if !ok {
			return
		}
		e.handleEvent(context.Background(), ev)
	})
}

func (e *Engine) handleEvent(ctx context.Context, ev model.Event) {
	if ev.Severity == model.SeverityInfo {
		return
	}

	e.mu.RLock()
	rules := append([]model.AlertRule(nil), e.rules...)
	e.mu.RUnlock()

	now := time.Now()
	for _, rule := range rules {
		if !rule.Matches(ev.Kind, ev.Severity, now) {
			continue
		}
		e.fireOrDedupe(ctx, rule, ev, now)
	}
}

func (e *Engine) fireOrDedupe(ctx context.Context, rule model.AlertRule, ev model.Event, now time.Time) {
	dedupKey := ev.DedupKey
	if dedupKey == "" {
		dedupKey = ev.Source + ":" + string(ev.Kind)
	}

	active, err := e.store.ActiveAlertForDedupKey(ctx, rule.ID, dedupKey)
	if err != nil {
		log.Printf("[AlertEngine] Failed to look up active alert for rule_id=%s: %v", rule.ID, err)
		return
	}
	if active != nil && now.Sub(active.FiredAt) < rule.Cooldown {
		return
	}

	flapping := false
	if rule.FlapSuppression {
		flapping = e.recordFlap(rule.ID, dedupKey, now, rule.FlapWindow, rule.FlapThreshold)
	}

	alert := model.Alert{
		ID:       uuid.NewString(),
		RuleID:   rule.ID,
		DedupKey: dedupKey,
		Severity: ev.Severity,
		Title:    fmt.Sprintf("%s: %s", rule.Name, ev.Kind),
		Summary:  ev.Message,
		Source:   ev.Source,
		FiredAt:  now,
		Status:   model.AlertActive,
		Flapping: flapping,
	}
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		log.Printf("[AlertEngine] Failed to insert alert for rule_id=%s: %v", rule.ID, err)
		return
	}
	e.publisher.Publish(bus.TopicAlertsFired, alert)
	if e.notifier != nil {
		go e.notifier.NotifyFired(context.Background(), alert)
	}

	if !rule.AutoInvestigate || ev.Severity != model.SeverityUrgent || flapping {
		return
	}
	e.maybeInvestigate(ctx, alert, rule)
}

// maybeInvestigate probes the budget manager for admission at urgent
// priority without holding the reservation: Start's own ReActRun makes its
// own per-turn reservations, so this is a pure gate check settled
// immediately with zero actual usage.
func (e *Engine) maybeInvestigate(ctx context.Context, alert model.Alert, rule model.AlertRule) {
	if e.budget == nil || e.inv == nil {
		return
	}
	token, ok := e.budget.Reserve(ctx, model.PriorityUrgent, 0)
	if !ok {
		log.Printf("[AlertEngine] Auto-investigate skipped for alert_id=%s: budget refused urgent admission", alert.ID)
		return
	}
	e.budget.Settle(token, 0)
	e.inv.Start(ctx, alert, rule)
}

// recordFlap tracks occurrences of (ruleID, dedupKey) within window and
// reports whether the count has crossed threshold.
func (e *Engine) recordFlap(ruleID, dedupKey string, now time.Time, window time.Duration, threshold int) bool {
	e.flapMu.Lock()
	defer e.flapMu.Unlock()

	key := [2]string{ruleID, dedupKey}
	fc, ok := e.flaps[key]
	if !ok || now.Sub(fc.windowStart) > window {
		fc = &flapCounter{windowStart: now}
		e.flaps[key] = fc
	}
	fc.count++
	return threshold > 0 && fc.count >= threshold
}

// ListAlerts passes through to the catalog store; paging and filtering are
// not cache-worthy, unlike the rule catalog.
func (e *Engine) ListAlerts(ctx context.Context, status, severity string, page, pageSize int) ([]model.Alert, int, error) {
	return e.store.ListAlerts(ctx, status, severity, page, pageSize)
}

// Rules returns a snapshot of the cached rule catalog.
func (e *Engine) Rules() []model.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.AlertRule(nil), e.rules...)
}

// Acknowledge transitions an alert active -> acknowledged.
func (e *Engine) Acknowledge(ctx context.Context, alertID, operatorID string) error {
	if err := e.store.AcknowledgeAlert(ctx, alertID, operatorID, time.Now()); err != nil {
		return apierr.Wrap(apierr.Conflict, "alert is not in a state that can be acknowledged", err)
	}
	e.publisher.Publish(bus.TopicAlertsState, map[string]string{"alert_id": alertID, "status": string(model.AlertAcknowledged)})
	return nil
}

// Resolve transitions an alert active|acknowledged -> resolved, and cancels
// any in-flight auto-investigation for it.
func (e *Engine) Resolve(ctx context.Context, alertID, operatorID string) error {
	if err := e.store.ResolveAlert(ctx, alertID, operatorID, time.Now()); err != nil {
		return apierr.Wrap(apierr.Conflict, "alert is not in a state that can be resolved", err)
	}
	if e.inv != nil {
		e.inv.Cancel(alertID)
	}
	e.publisher.Publish(bus.TopicAlertsState, map[string]string{"alert_id": alertID, "status": string(model.AlertResolved)})
	if e.notifier != nil {
		go e.notifyResolved(context.Background(), alertID)
	}
	return nil
}

// notifyResolved re-reads the alert (now resolved) and its investigation, if
// any, to build the resolved notification payload.
func (e *Engine) notifyResolved(ctx context.Context, alertID string) {
	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		log.Printf("[AlertEngine] Failed to load alert for resolved notification alert_id=%s: %v", alertID, err)
		return
	}
	var inv *model.Investigation
	if alert.InvestigationID != "" {
		inv, err = e.store.GetInvestigation(ctx, alert.InvestigationID)
		if err != nil {
			log.Printf("[AlertEngine] Failed to load investigation for resolved notification alert_id=%s: %v", alertID, err)
			inv = nil
		}
	}
	e.notifier.NotifyResolved(ctx, *alert, inv)
}

// Mute sets a rule's mute expiry and refreshes the cache so the next
// matching event is suppressed immediately.
func (e *Engine) Mute(ctx context.Context, ruleID string, duration time.Duration) error {
	until := time.Now().Add(duration)
	if err := e.store.MuteRule(ctx, ruleID, until); err != nil {
		return apierr.Wrap(apierr.NotFound, "rule not found", err)
	}
	return e.LoadRules(ctx)
}

// Unmute clears a rule's mute expiry immediately; an already-expired mute
// would have reactivated lazily on the next match regardless.
func (e *Engine) Unmute(ctx context.Context, ruleID string) error {
	if err := e.store.UnmuteRule(ctx, ruleID); err != nil {
		return apierr.Wrap(apierr.NotFound, "rule not found", err)
	}
	return e.LoadRules(ctx)
}
