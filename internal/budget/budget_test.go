package budget

import (
	"context"
	"testing"
	"time"

	"github.com/argus-core/backend/internal/model"
)

func runManager(t *testing.T, hourly, daily int64) (*Manager, context.CancelFunc) {
	t.Helper()
	m := New(nil, hourly, daily)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	return m, cancel
}

func TestReserveWithinLimitSucceeds(t *testing.T) {
	m, cancel := runManager(t, 1000, 10000)
	defer cancel()

	ctx := context.Background()
	token, ok := m.Reserve(ctx, model.PriorityRoutine, 100)
	if !ok || token == "" {
		t.Fatalf("expected reservation to succeed, got token=%q ok=%v", token, ok)
	}

	status := m.Status(ctx)
	if status.Hourly.Reserved != 100 {
		t.Fatalf("expected 100 reserved, got %d", status.Hourly.Reserved)
	}
}

func TestReserveOverLimitIsRefused(t *testing.T) {
	m, cancel := runManager(t, 100, 10000)
	defer cancel()

	ctx := context.Background()
	_, ok := m.Reserve(ctx, model.PriorityRoutine, 200)
	if ok {
		t.Fatal("expected over-limit routine reservation to be refused")
	}
}

func TestCriticalExceptionAllowsOvershoot(t *testing.T) {
	m, cancel := runManager(t, 100, 10000)
	defer cancel()

	ctx := context.Background()
	// Any hourly headroom remains (100 unused), so CRITICAL is admitted even
	// though its estimate alone would exceed the hourly limit.
	token, ok := m.Reserve(ctx, model.PriorityCritical, 500)
	if !ok || token == "" {
		t.Fatalf("expected critical reservation to be admitted via the exception, got ok=%v", ok)
	}
}

func TestSettleMovesReservedToUsed(t *testing.T) {
	m, cancel := runManager(t, 1000, 10000)
	defer cancel()

	ctx := context.Background()
	token, ok := m.Reserve(ctx, model.PriorityRoutine, 100)
	if !ok {
		t.Fatal("expected reservation to succeed")
	}

	m.Settle(token, 80)

	// Settle is async; poll status until reserved drains.
	deadline := time.After(time.Second)
	for {
		status := m.Status(ctx)
		if status.Hourly.Reserved == 0 && status.Hourly.Used == 80 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("settle did not converge: %+v", status)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSettleOvershootIsAcceptedButAffectsNextAdmission(t *testing.T) {
	m, cancel := runManager(t, 100, 10000)
	defer cancel()

	ctx := context.Background()
	token, ok := m.Reserve(ctx, model.PriorityRoutine, 50)
	if !ok {
		t.Fatal("expected first reservation to succeed")
	}

	// Overshoot: settle for far more than was reserved.
	m.Settle(token, 90)

	deadline := time.After(time.Second)
	for {
		status := m.Status(ctx)
		if status.Hourly.Used == 90 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("overshoot settle did not land: %+v", status)
		case <-time.After(time.Millisecond):
		}
	}

	// The window is nearly exhausted now; a further routine reservation
	// pushing past the limit must be refused.
	if _, ok := m.Reserve(ctx, model.PriorityRoutine, 50); ok {
		t.Fatal("expected next admission to be refused after overshoot")
	}
}

func TestSettleUnknownTokenIsIgnored(t *testing.T) {
	m, cancel := runManager(t, 1000, 10000)
	defer cancel()

	ctx := context.Background()
	m.Settle(model.ReservationToken("does-not-exist"), 50)

	status := m.Status(ctx)
	if status.Hourly.Used != 0 || status.Hourly.Reserved != 0 {
		t.Fatalf("expected settle of unknown token to be a no-op, got %+v", status)
	}
}
