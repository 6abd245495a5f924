// Package ingest implements the external telemetry intake endpoint: batch
// validation, receipt stamping, tenant scoping, and the atomic
// append-then-publish handoff into the time-series store and event bus.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/bus"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/timeseries"
)

const (
	maxBatchSize    = 1000
	maxInFlight     = 64
	backpressureSec = 2
)

var kindTable = map[string]struct {
	event model.EventKind
	ts    timeseries.Kind
}{
	"metric":       {model.EventKindMetric, timeseries.KindSystemMetric},
	"log":          {model.EventKindLog, timeseries.KindLog},
	"span":         {model.EventKindSpan, timeseries.KindSpan},
	"dependency":   {model.EventKindDependency, timeseries.KindDependency},
	"sdk-event":    {model.EventKindSDK, timeseries.KindSDKEvent},
	"sdk-metric":   {model.EventKindSDKMetric, timeseries.KindSDKMetric},
	"deploy-event": {model.EventKindDeployEvent, timeseries.KindDeployEvent},
}

// Service validates and admits ingestion batches. The in-flight counter
// stands in for the store's write queue depth: once maxInFlight concurrent
// batches are being appended, new batches are refused with a retry hint
// rather than queued, so a slow store degrades gracefully instead of
// accumulating unbounded latency.
type Service struct {
	store     *timeseries.Store
	publisher *bus.Bus
	apiKey    string
	inFlight  int64
}

func New(store *timeseries.Store, publisher *bus.Bus, apiKey string) *Service {
	return &Service{store: store, publisher: publisher, apiKey: apiKey}
}

// Authenticate checks the x-argus-key header and returns the tenant scope to
// use for the request. When no key is configured, ingestion is open and the
// caller's key (if any) becomes the tenant scope directly, since the core
// treats it as opaque.
func (s *Service) Authenticate(key string) (tenant string, ok bool) {
	if s.apiKey != "" {
		return "default", key == s.apiKey
	}
	return key, true
}

// Ingest validates and admits a batch, appending accepted events per-kind to
// the time-series store and publishing each onto telemetry.raw. Individual
// event failures are reported in the response rather than failing the batch.
func (s *Service) Ingest(ctx context.Context, tenant string, reqs []model.IngestEventRequest) (model.IngestResponse, error) {
	if len(reqs) > maxBatchSize {
		return model.IngestResponse{}, apierr.New(apierr.Validation, fmt.Sprintf("batch exceeds max size of %d", maxBatchSize))
	}
	if !s.admit() {
		return model.IngestResponse{}, &apierr.Error{Kind: apierr.IngestionBackpressure, Message: "ingestion queue saturated", RetryAfter: backpressureSec}
	}
	defer s.release()

	now := time.Now()
	rejected := make([]model.IngestRejection, 0)
	events := make([]model.Event, 0, len(reqs))
	byKind := make(map[timeseries.Kind][]timeseries.Row)

	for i, r := range reqs {
		entry, ok := kindTable[r.Type]
		if !ok {
			rejected = append(rejected, model.IngestRejection{Index: i, Error: fmt.Sprintf("unknown event type %q", r.Type)})
			continue
		}
		if r.Data == nil {
			rejected = append(rejected, model.IngestRejection{Index: i, Error: "data is required"})
			continue
		}

		at := now
		if r.Timestamp != nil {
			at = *r.Timestamp
		}

		ev := model.Event{
			ID:        uuid.NewString(),
			Timestamp: at,
			Kind:      entry.event,
			Source:    r.Service,
			Tenant:    tenant,
			Severity:  model.SeverityInfo,
			Payload:   r.Data,
			ReceiptAt: now,
		}
		if msg, ok := r.Data["message"].(string); ok {
			ev.Message = msg
		}

		events = append(events, ev)
		byKind[entry.ts] = append(byKind[entry.ts], rowFromEvent(ev))
	}

	for kind, rows := range byKind {
		if err := s.store.Append(ctx, kind, rows); err != nil {
			return model.IngestResponse{}, apierr.Wrap(apierr.Internal, "failed to append ingested events", err)
		}
	}
	for _, ev := range events {
		s.publisher.Publish(bus.TopicTelemetryRaw, ev)
	}

	return model.IngestResponse{Accepted: len(events), Rejected: rejected}, nil
}

func rowFromEvent(ev model.Event) timeseries.Row {
	name, _ := ev.Payload["name"].(string)
	host, _ := ev.Payload["host"].(string)
	if host == "" {
		host = ev.Source
	}
	value, _ := toFloat(ev.Payload["value"])

	return timeseries.Row{
		ID:        ev.ID,
		Tenant:    ev.Tenant,
		Host:      host,
		Name:      name,
		Value:     value,
		Message:   ev.Message,
		At:        ev.Timestamp,
		ReceiptAt: ev.ReceiptAt,
		Fields:    ev.Payload,
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (s *Service) admit() bool {
	if atomic.AddInt64(&s.inFlight, 1) > maxInFlight {
		atomic.AddInt64(&s.inFlight, -1)
		return false
	}
	return true
}

func (s *Service) release() {
	atomic.AddInt64(&s.inFlight, -1)
}
