package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/argus-core/backend/internal/model"
)

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"rm -rf /", "rm -rf /", true},
		{"rm -rf /", "rm -rf /home", false},
		{"mkfs*", "mkfs.ext4 /dev/sda1", true},
		{"dd if=*", "dd if=/dev/zero of=/dev/sda", true},
		{"dd if=*", "echo hello", false},
		{"*> /dev/sd*", "echo x > /dev/sda", true},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.s); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}

func TestRequestAndAwaitBlockedCommandNeverFiles(t *testing.T) {
	e := New(nil, nil, nil)
	req := model.ActionRequest{Command: []string{"rm", "-rf", "/"}, Risk: model.RiskHigh}

	_, err := e.RequestAndAwait(context.Background(), req)
	if err == nil {
		t.Fatal("expected blocked command to error")
	}
}

func TestRequestAndAwaitRejected(t *testing.T) {
	e := New(nil, nil, nil)
	req := model.ActionRequest{Command: []string{"echo", "hi"}, Risk: model.RiskHigh}

	resultCh := make(chan error, 1)
	go func() {
		_, err := e.RequestAndAwait(context.Background(), req)
		resultCh <- err
	}()

	// Poll for the pending request to be filed, then reject it.
	deadline := time.After(time.Second)
	for {
		if tryApprove(e, req.ID, false) == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("action never became pending")
		case <-time.After(time.Millisecond):
		}
	}

	select {
	case err := <-resultCh:
		if err == nil {
			t.Fatal("expected rejection to produce an error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RequestAndAwait to return")
	}
}

// tryApprove scans the engine's pending set for any request and delivers a
// decision; since the test doesn't know the generated id ahead of time it
// approves/rejects whatever is currently pending.
func tryApprove(e *Engine, _ string, approved bool) error {
	e.mu.Lock()
	var id string
	for k := range e.pending {
		id = k
		break
	}
	e.mu.Unlock()
	if id == "" {
		return errNoneYet
	}
	return e.Approve(model.ActionResponse{ActionID: id, Approved: approved})
}

var errNoneYet = errors.New("no pending action yet")

func TestRequestAndAwaitCriticalRequiresAuthMarker(t *testing.T) {
	e := New(nil, nil, nil)
	req := model.ActionRequest{Command: []string{"echo", "hi"}, Risk: model.RiskCritical}

	_, err := e.RequestAndAwait(context.Background(), req)
	if err == nil {
		t.Fatal("expected CRITICAL without RequiresPassword to be rejected")
	}
}

func TestApproveUnknownIDIsNotFound(t *testing.T) {
	e := New(nil, nil, nil)
	err := e.Approve(model.ActionResponse{ActionID: "missing", Approved: true})
	if err == nil {
		t.Fatal("expected approving an unknown action id to error")
	}
}
