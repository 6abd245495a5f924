// Package template renders the user-configurable webhook body template for
// outbound notifications.
//
// Supported variables:
//
//	{{alert.id}}, {{alert.title}}, {{alert.severity}}, {{alert.status}},
//	{{alert.source}}, {{alert.summary}}, {{alert.fired_at}}, {{alert.dedup_key}}
//
//	{{investigation.id}}, {{investigation.status}}, {{investigation.summary}},
//	{{investigation.tokens_used}}
package template

import (
	"strconv"
	"strings"
	"time"

	"github.com/argus-core/backend/internal/model"
)

// AlertData is the subset of an Alert exposed to a webhook body template.
type AlertData struct {
	ID       string
	Title    string
	Severity string
	Status   string
	Source   string
	Summary  string
	FiredAt  time.Time
	DedupKey string
}

// InvestigationData is the subset of an Investigation exposed to a webhook
// body template, for notifications sent once auto-investigation completes.
type InvestigationData struct {
	ID         string
	Status     string
	Summary    string
	TokensUsed int64
}

// AlertDataFromModel builds AlertData from a persisted Alert.
func AlertDataFromModel(alert model.Alert) AlertData {
	return AlertData{
		ID:       alert.ID,
		Title:    alert.Title,
		Severity: string(alert.Severity),
		Status:   string(alert.Status),
		Source:   alert.Source,
		Summary:  alert.Summary,
		FiredAt:  alert.FiredAt,
		DedupKey: alert.DedupKey,
	}
}

// InvestigationDataFromModel builds InvestigationData from a persisted Investigation.
func InvestigationDataFromModel(inv model.Investigation) InvestigationData {
	return InvestigationData{
		ID:         inv.ID,
		Status:     inv.Status,
		Summary:    inv.Summary,
		TokensUsed: inv.TokensUsed,
	}
}

// RenderBody substitutes template variables in body with their values.
// Either argument may be nil; that section's variables substitute to "".
func RenderBody(body string, alert *AlertData, inv *InvestigationData) string {
	pairs := make([]string, 0, 24)

	if alert != nil {
		pairs = append(pairs,
			"{{alert.id}}", alert.ID,
			"{{alert.title}}", alert.Title,
			"{{alert.severity}}", alert.Severity,
			"{{alert.status}}", alert.Status,
			"{{alert.source}}", alert.Source,
			"{{alert.summary}}", alert.Summary,
			"{{alert.fired_at}}", alert.FiredAt.Format(time.RFC3339),
			"{{alert.dedup_key}}", alert.DedupKey,
		)
	} else {
		pairs = append(pairs,
			"{{alert.id}}", "",
			"{{alert.title}}", "",
			"{{alert.severity}}", "",
			"{{alert.status}}", "",
			"{{alert.source}}", "",
			"{{alert.summary}}", "",
			"{{alert.fired_at}}", "",
			"{{alert.dedup_key}}", "",
		)
	}

	if inv != nil {
		pairs = append(pairs,
			"{{investigation.id}}", inv.ID,
			"{{investigation.status}}", inv.Status,
			"{{investigation.summary}}", inv.Summary,
			"{{investigation.tokens_used}}", strconv.FormatInt(inv.TokensUsed, 10),
		)
	} else {
		pairs = append(pairs,
			"{{investigation.id}}", "",
			"{{investigation.status}}", "",
			"{{investigation.summary}}", "",
			"{{investigation.tokens_used}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}
