package model

import "time"

// EventKind identifies the shape of an Event's payload.
type EventKind string

const (
	EventKindLog          EventKind = "log"
	EventKindMetric       EventKind = "metric"
	EventKindSpan         EventKind = "span"
	EventKindDependency   EventKind = "dependency"
	EventKindSDK          EventKind = "sdk-event"
	EventKindSDKMetric    EventKind = "sdk-metric"
	EventKindDeployEvent  EventKind = "deploy-event"
	EventKindProcess      EventKind = "process"
	EventKindSecurity     EventKind = "security-finding"
	EventKindAlertDerived EventKind = "alert-derived"
)

// Severity is the ordinal classification assigned to an Event by the classifier.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityNotable Severity = "NOTABLE"
	SeverityUrgent  Severity = "URGENT"
)

// severityRank allows numeric comparison of Severity values.
var severityRank = map[Severity]int{
	SeverityInfo:    0,
	SeverityNotable: 1,
	SeverityUrgent:  2,
}

// Less reports whether s ranks below other.
func (s Severity) Less(other Severity) bool {
	return severityRank[s] < severityRank[other]
}

// Event is an immutable record ingested from a collector or the HTTP ingest
// endpoint. Once persisted and published on the bus, an Event is never mutated.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      EventKind      `json:"kind"`
	Source    string         `json:"source"`
	Tenant    string         `json:"tenant,omitempty"`
	Severity  Severity       `json:"severity"`
	Payload   map[string]any `json:"data"`
	Message   string         `json:"message,omitempty"`
	DedupKey  string         `json:"dedup_key,omitempty"`
	ReceiptAt time.Time      `json:"receipt_at"`
}
