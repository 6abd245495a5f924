// Package notify delivers fired Alerts and completed Investigations to
// external channels: a Slack thread per alert, and zero or more configured
// generic webhooks with a user-templated body.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/argus-core/backend/internal/client"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/template"
)

// Notifier fans a fired Alert out to Slack and every configured webhook.
type Notifier struct {
	store      *db.Postgres
	slack      *client.SlackClient
	httpClient *http.Client
}

func New(store *db.Postgres, slack *client.SlackClient) *Notifier {
	return &Notifier{
		store:      store,
		slack:      slack,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyFired sends the initial firing notification for alert: a Slack
// message (the resulting thread_ts is persisted for the eventual resolved
// reply) and a POST to every configured webhook.
func (n *Notifier) NotifyFired(ctx context.Context, alert model.Alert) {
	if n.slack != nil && n.slack.IsConfigured() {
		threadTS, err := n.sendSlackFiring(alert)
		if err != nil {
			log.Printf("[Notify] Slack firing send failed for alert_id=%s: %v", alert.ID, err)
		} else if threadTS != "" {
			n.slack.StoreThreadTS(alert.ID, threadTS)
			if err := n.store.SetAlertThreadTS(ctx, alert.ID, threadTS); err != nil {
				log.Printf("[Notify] Failed to persist thread_ts for alert_id=%s: %v", alert.ID, err)
			}
		}
	}
	n.deliverWebhooks(ctx, alert, nil)
}

// NotifyResolved replies in the alert's Slack thread (if any) and delivers a
// resolved-status webhook payload, optionally carrying the investigation's
// final summary.
func (n *Notifier) NotifyResolved(ctx context.Context, alert model.Alert, inv *model.Investigation) {
	if n.slack != nil && n.slack.IsConfigured() {
		threadTS, ok := n.slack.GetThreadTS(alert.ID)
		if !ok {
			threadTS = alert.ThreadTS
		}
		if threadTS != "" {
			if err := n.slack.SendToThread(threadTS, resolvedText(alert, inv)); err != nil {
				log.Printf("[Notify] Slack resolved reply failed for alert_id=%s: %v", alert.ID, err)
			}
			n.slack.DeleteThreadTS(alert.ID)
		}
	}
	n.deliverWebhooks(ctx, alert, inv)
}

func (n *Notifier) sendSlackFiring(alert model.Alert) (string, error) {
	resp, err := n.slack.SendFiring(alert.Title, fmt.Sprintf("%s\nseverity=%s source=%s", alert.Summary, alert.Severity, alert.Source), severityColor(alert.Severity))
	if err != nil {
		return "", err
	}
	return resp, nil
}

func resolvedText(alert model.Alert, inv *model.Investigation) string {
	if inv != nil && inv.Summary != "" {
		return fmt.Sprintf("Resolved: %s\n\nInvestigation summary: %s", alert.Title, inv.Summary)
	}
	return fmt.Sprintf("Resolved: %s", alert.Title)
}

func severityColor(sev model.Severity) string {
	switch sev {
	case model.SeverityUrgent:
		return "#dc3545"
	case model.SeverityNotable:
		return "#ffc107"
	default:
		return "#36a64f"
	}
}

func (n *Notifier) deliverWebhooks(ctx context.Context, alert model.Alert, inv *model.Investigation) {
	configs, err := n.store.GetWebhookConfigs(ctx)
	if err != nil {
		log.Printf("[Notify] Failed to load webhook configs: %v", err)
		return
	}

	alertData := template.AlertDataFromModel(alert)
	var invData *template.InvestigationData
	if inv != nil {
		d := template.InvestigationDataFromModel(*inv)
		invData = &d
	}

	for _, cfg := range configs {
		if cfg.URL == "" {
			continue
		}
		body := template.RenderBody(cfg.Body, &alertData, invData)
		if err := n.deliverOne(ctx, cfg, body); err != nil {
			log.Printf("[Notify] Webhook delivery failed url=%s config_id=%d: %v", cfg.URL, cfg.ID, err)
		}
	}
}

func (n *Notifier) deliverOne(ctx context.Context, cfg model.WebhookConfig, body string) error {
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, h := range cfg.Headers {
		req.Header.Set(h.Key, h.Value)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
