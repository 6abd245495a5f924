package bus

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []int

	done := make(chan struct{})
	sub := b.Subscribe(TopicEventsClassified, func(msg Message) {
		mu.Lock()
		got = append(got, msg.Payload.(int))
		if len(got) == 5 {
			close(done)
		}
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		b.Publish(TopicEventsClassified, i)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order delivery: got %v", got)
		}
	}
}

func TestOverflowDropsOldestForThatSubscriberOnly(t *testing.T) {
	b := New()
	block := make(chan struct{})

	// slow never drains until the test says so, forcing its queue past
	// defaultQueueDepth. Messages are published in two rounds of
	// defaultQueueDepth, and fast drains each round before the next, so its
	// own queue never overflows.
	slow := b.Subscribe(TopicTelemetryRaw, func(msg Message) {
		<-block
	})
	defer slow.Unsubscribe()

	var mu sync.Mutex
	fastGot := 0
	fast := b.Subscribe(TopicTelemetryRaw, func(msg Message) {
		mu.Lock()
		fastGot++
		mu.Unlock()
	})
	defer fast.Unsubscribe()

	for round := 0; round < 2; round++ {
		for i := 0; i < defaultQueueDepth; i++ {
			b.Publish(TopicTelemetryRaw, round*defaultQueueDepth+i)
		}

		want := (round + 1) * defaultQueueDepth
		deadline := time.After(time.Second)
		for {
			mu.Lock()
			n := fastGot
			mu.Unlock()
			if n == want {
				break
			}
			select {
			case <-deadline:
				t.Fatalf("fast subscriber only received %d of %d", n, want)
			case <-time.After(time.Millisecond):
			}
		}
	}

	if dropped := slow.DroppedCount(); dropped == 0 {
		t.Fatal("expected the blocked subscriber to have dropped messages")
	}
	close(block)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicSystemStatus, func(Message) {})
	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic
}
