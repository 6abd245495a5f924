package push

import (
	"testing"

	"github.com/argus-core/backend/internal/model"
)

func TestEnqueuePopFIFO(t *testing.T) {
	c := newConnection(nil)

	c.enqueue(model.Envelope{Type: string(model.MsgPong), ID: "1"})
	c.enqueue(model.Envelope{Type: string(model.MsgPong), ID: "2"})

	first, ok := c.pop()
	if !ok || first.ID != "1" {
		t.Fatalf("expected id 1 first, got %+v ok=%v", first, ok)
	}
	second, ok := c.pop()
	if !ok || second.ID != "2" {
		t.Fatalf("expected id 2 second, got %+v ok=%v", second, ok)
	}
	if _, ok := c.pop(); ok {
		t.Fatal("expected queue to be empty")
	}
}

func TestEnqueueDropsOldestNonCriticalOnOverflow(t *testing.T) {
	c := newConnection(nil)

	for i := 0; i < outboundQueueDepth; i++ {
		c.enqueue(model.Envelope{Type: string(model.MsgPong), ID: "seed"})
	}
	c.enqueue(model.Envelope{Type: string(model.MsgPong), ID: "overflow"})

	c.mu.Lock()
	depth := len(c.queue)
	last := c.queue[len(c.queue)-1]
	c.mu.Unlock()

	if depth != outboundQueueDepth {
		t.Fatalf("expected queue to stay capped at %d, got %d", outboundQueueDepth, depth)
	}
	if last.ID != "overflow" {
		t.Fatalf("expected the newest message to be enqueued, got %+v", last)
	}
}

func TestEnqueueEvictsNonCriticalToMakeRoomForCritical(t *testing.T) {
	c := newConnection(nil)

	for i := 0; i < outboundQueueDepth; i++ {
		c.enqueue(model.Envelope{Type: string(model.MsgPong), ID: "seed"})
	}
	c.enqueue(model.Envelope{Type: string(model.MsgAlert), ID: "critical"})

	c.mu.Lock()
	depth := len(c.queue)
	found := false
	for _, e := range c.queue {
		if e.ID == "critical" {
			found = true
		}
	}
	c.mu.Unlock()

	if depth != outboundQueueDepth {
		t.Fatalf("expected queue to stay capped at %d, got %d", outboundQueueDepth, depth)
	}
	if !found {
		t.Fatal("expected the critical message to have evicted room for itself")
	}
}

func TestExceedsMissBudgetClosesOnSecondMiss(t *testing.T) {
	if exceedsMissBudget(0) {
		t.Fatal("zero misses must not close the connection")
	}
	if exceedsMissBudget(1) {
		t.Fatal("a single missed ping must not close the connection")
	}
	if !exceedsMissBudget(2) {
		t.Fatal("a second missed ping must close the connection")
	}
}

