// Package classify maps raw events to a severity with small per-kind sliding
// window counters; the classification function itself is pure.
package classify

import (
	"strings"
	"sync"
	"time"

	"github.com/argus-core/backend/internal/model"
)

// thresholds below are defaults; a production deployment would source these
// from the rule catalog, but the classifier itself stays kind-specific and
// stateless except for the sliding windows it owns.
const (
	cpuURGENT    = 95.0
	cpuNOTABLE   = 80.0
	memURGENT    = 95.0
	memNOTABLE   = 85.0
	errorBurstWindow    = 60 * time.Second
	errorBurstThreshold = 10
)

var logKeywordsUrgent = []string{"panic", "fatal", "out of memory", "segfault"}
var logKeywordsNotable = []string{"error", "exception", "timeout", "refused"}

type windowKey struct {
	host   string
	signal string
}

type burstCounter struct {
	windowStart time.Time
	count       int
}

// Classifier holds the sliding-window state keyed by (host, signal); it is
// safe for concurrent use by multiple ingest/collector goroutines.
type Classifier struct {
	mu      sync.Mutex
	bursts  map[windowKey]*burstCounter
}

func New() *Classifier {
	return &Classifier{bursts: make(map[windowKey]*burstCounter)}
}

// Classify assigns a severity to ev. Ties between matched rules resolve to
// the highest severity matched within this function.
func (c *Classifier) Classify(ev model.Event) model.Severity {
	switch ev.Kind {
	case model.EventKindMetric:
		return c.classifyMetric(ev)
	case model.EventKindLog:
		return c.classifyLog(ev)
	case model.EventKindSecurity:
		return c.classifySecurity(ev)
	case model.EventKindSDK:
		return c.classifySDKEvent(ev)
	default:
		return model.SeverityInfo
	}
}

func (c *Classifier) classifyMetric(ev model.Event) model.Severity {
	name, _ := ev.Payload["name"].(string)
	value, _ := toFloat(ev.Payload["value"])

	switch strings.ToLower(name) {
	case "cpu", "cpu_percent":
		if value >= cpuURGENT {
			return model.SeverityUrgent
		}
		if value >= cpuNOTABLE {
			return model.SeverityNotable
		}
	case "memory", "memory_percent", "mem":
		if value >= memURGENT {
			return model.SeverityUrgent
		}
		if value >= memNOTABLE {
			return model.SeverityNotable
		}
	case "error_count", "http_5xx":
		return c.classifyBurst(ev, "error_count")
	}
	return model.SeverityInfo
}

// classifyBurst tracks a sliding count of occurrences per (host, signal)
// within errorBurstWindow: NOTABLE once the count reaches half of
// errorBurstThreshold, URGENT once it reaches errorBurstThreshold.
func (c *Classifier) classifyBurst(ev model.Event, signal string) model.Severity {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := windowKey{host: ev.Source, signal: signal}
	bc, ok := c.bursts[key]
	now := ev.Timestamp
	if !ok || now.Sub(bc.windowStart) > errorBurstWindow {
		bc = &burstCounter{windowStart: now, count: 0}
		c.bursts[key] = bc
	}
	bc.count++

	if bc.count >= errorBurstThreshold {
		return model.SeverityUrgent
	}
	if bc.count >= errorBurstThreshold/2 {
		return model.SeverityNotable
	}
	return model.SeverityInfo
}

func (c *Classifier) classifyLog(ev model.Event) model.Severity {
	msg := strings.ToLower(ev.Message)
	for _, kw := range logKeywordsUrgent {
		if strings.Contains(msg, kw) {
			return model.SeverityUrgent
		}
	}
	for _, kw := range logKeywordsNotable {
		if strings.Contains(msg, kw) {
			return model.SeverityNotable
		}
	}
	return model.SeverityInfo
}

func (c *Classifier) classifySecurity(ev model.Event) model.Severity {
	transition, _ := ev.Payload["transition"].(string)
	switch transition {
	case "pass_to_fail":
		return model.SeverityUrgent
	case "degraded":
		return model.SeverityNotable
	default:
		return model.SeverityInfo
	}
}

func (c *Classifier) classifySDKEvent(ev model.Event) model.Severity {
	group, _ := ev.Payload["exception_group"].(string)
	if group == "" {
		return model.SeverityInfo
	}
	return c.classifyBurst(ev, "sdk_exception:"+group)
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
