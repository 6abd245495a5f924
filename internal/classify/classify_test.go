package classify

import (
	"testing"
	"time"

	"github.com/argus-core/backend/internal/model"
)

func TestClassifyMetricThresholds(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		want  model.Severity
	}{
		{"cpu", 50, model.SeverityInfo},
		{"cpu", 82, model.SeverityNotable},
		{"cpu", 99, model.SeverityUrgent},
		{"memory", 90, model.SeverityNotable},
		{"memory_percent", 96, model.SeverityUrgent},
	}

	for _, tc := range cases {
		c := New()
		ev := model.Event{
			Kind:    model.EventKindMetric,
			Payload: map[string]any{"name": tc.name, "value": tc.value},
		}
		got := c.Classify(ev)
		if got != tc.want {
			t.Errorf("classify(%s=%v) = %s, want %s", tc.name, tc.value, got, tc.want)
		}
	}
}

func TestClassifyLogKeywords(t *testing.T) {
	c := New()

	if got := c.Classify(model.Event{Kind: model.EventKindLog, Message: "everything is fine"}); got != model.SeverityInfo {
		t.Errorf("got %s, want INFO", got)
	}
	if got := c.Classify(model.Event{Kind: model.EventKindLog, Message: "connection refused by peer"}); got != model.SeverityNotable {
		t.Errorf("got %s, want NOTABLE", got)
	}
	if got := c.Classify(model.Event{Kind: model.EventKindLog, Message: "kernel panic: out of memory"}); got != model.SeverityUrgent {
		t.Errorf("got %s, want URGENT", got)
	}
}

func TestClassifyBurstRampsWithinWindow(t *testing.T) {
	c := New()
	base := time.Now()

	var last model.Severity
	for i := 0; i < errorBurstThreshold; i++ {
		ev := model.Event{
			Kind:      model.EventKindMetric,
			Source:    "host-1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Payload:   map[string]any{"name": "error_count", "value": 1.0},
		}
		last = c.Classify(ev)
	}
	if last != model.SeverityUrgent {
		t.Fatalf("expected burst to reach URGENT after %d occurrences, got %s", errorBurstThreshold, last)
	}
}

func TestClassifyBurstWindowResets(t *testing.T) {
	c := New()
	base := time.Now()

	for i := 0; i < errorBurstThreshold/2; i++ {
		c.Classify(model.Event{
			Kind:      model.EventKindMetric,
			Source:    "host-2",
			Timestamp: base,
			Payload:   map[string]any{"name": "error_count", "value": 1.0},
		})
	}

	// Well past the window: the counter should restart from zero rather than
	// keep accumulating toward URGENT.
	got := c.Classify(model.Event{
		Kind:      model.EventKindMetric,
		Source:    "host-2",
		Timestamp: base.Add(errorBurstWindow * 2),
		Payload:   map[string]any{"name": "error_count", "value": 1.0},
	})
	if got != model.SeverityInfo {
		t.Fatalf("expected window reset to INFO, got %s", got)
	}
}

func TestClassifySecurityTransition(t *testing.T) {
	c := New()
	cases := map[string]model.Severity{
		"pass_to_fail": model.SeverityUrgent,
		"degraded":     model.SeverityNotable,
		"pass":         model.SeverityInfo,
	}
	for transition, want := range cases {
		got := c.Classify(model.Event{Kind: model.EventKindSecurity, Payload: map[string]any{"transition": transition}})
		if got != want {
			t.Errorf("transition=%s: got %s, want %s", transition, got, want)
		}
	}
}

func TestClassifyUnknownKindIsInfo(t *testing.T) {
	c := New()
	got := c.Classify(model.Event{Kind: model.EventKindSpan})
	if got != model.SeverityInfo {
		t.Fatalf("expected unclassified kind to default to INFO, got %s", got)
	}
}
