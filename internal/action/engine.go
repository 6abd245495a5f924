// Package action implements the human-in-the-loop approval state machine:
// any tool call at risk ≥ MEDIUM is suspended as a pending ActionRequest
// until an operator approves or rejects it (or the wait times out), after
// which the Engine runs the command itself under the same timeout-and-guard
// discipline as a tool handler.
package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/bus"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/push"
)

const (
	approvalTimeout = 120 * time.Second
	execTimeout     = 30 * time.Second
)

// blockList holds shell glob patterns refused regardless of approval, matched
// against the joined argv. A command blocked here never reaches execute,
// even with an approved ActionResponse.
var blockList = []string{
	"rm -rf /",
	"rm -rf /*",
	"mkfs*",
	"dd if=*",
	"chmod -R 777 /",
	"*> /dev/sd*",
}

// Engine owns every pending ActionRequest keyed by id.
type Engine struct {
	mu      sync.Mutex
	pending map[string]chan model.ActionResponse

	publisher   *bus.Bus
	broadcaster push.Broadcaster
	audit       *db.Postgres
}

func New(publisher *bus.Bus, broadcaster push.Broadcaster, audit *db.Postgres) *Engine {
	return &Engine{
		pending:     make(map[string]chan model.ActionResponse),
		publisher:   publisher,
		broadcaster: broadcaster,
		audit:       audit,
	}
}

// RequestAndAwait files req as pending, publishes actions.requested, and
// blocks until an ActionResponse arrives, the approval wait times out, or ctx
// is cancelled. On approval it executes the command and returns the result;
// on rejection or timeout it returns an apierr-tagged error.
func (e *Engine) RequestAndAwait(ctx context.Context, req model.ActionRequest) (model.ActionResult, error) {
	if hit := matchBlockList(req.Command); hit != "" {
		e.appendAudit(ctx, req.ID, "blocked", fmt.Sprintf("matched block pattern %q", hit))
		return model.ActionResult{}, apierr.New(apierr.ActionRejected, "command matches a blocked pattern")
	}
	if req.Risk == model.RiskCritical && !req.RequiresPassword {
		// Risk CRITICAL requires the caller to have already verified a fresh
		// authorization marker; RequiresPassword records that it did.
		return model.ActionResult{}, apierr.New(apierr.Unauthorized, "CRITICAL actions require a fresh authorization marker")
	}

	req.ID = uuid.NewString()
	req.State = model.ActionPending
	req.PendingSince = time.Now()

	replyCh := make(chan model.ActionResponse, 1)
	e.mu.Lock()
	e.pending[req.ID] = replyCh
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, req.ID)
		e.mu.Unlock()
	}()

	e.appendAudit(ctx, req.ID, "requested", req.ToolName)
	if e.publisher != nil {
		e.publisher.Publish(bus.TopicActionsRequested, req)
	}
	if e.broadcaster != nil {
		e.broadcaster.Broadcast(model.MsgActionRequest, req)
	}

	timer := time.NewTimer(approvalTimeout)
	defer timer.Stop()

	select {
	case resp := <-replyCh:
		if !resp.Approved {
			e.appendAudit(ctx, req.ID, "rejected", "")
			return model.ActionResult{}, apierr.New(apierr.ActionRejected, "operator rejected the action")
		}
		e.appendAudit(ctx, req.ID, "approved", resp.AuthMarker)
		return e.execute(ctx, req)

	case <-timer.C:
		e.appendAudit(ctx, req.ID, "timed-out", "")
		return model.ActionResult{}, apierr.New(apierr.ActionTimedOut, "approval wait timed out")

	case <-ctx.Done():
		e.appendAudit(ctx, req.ID, "cancelled", "")
		return model.ActionResult{}, apierr.New(apierr.Cancelled, "action cancelled")
	}
}

// Approve delivers an operator's decision to the goroutine awaiting it in
// RequestAndAwait. Unknown ids are reported as NotFound (the request may
// already have timed out or been answered).
func (e *Engine) Approve(resp model.ActionResponse) error {
	e.mu.Lock()
	ch, ok := e.pending[resp.ActionID]
	e.mu.Unlock()
	if !ok {
		return apierr.New(apierr.NotFound, "no pending action with that id")
	}
	select {
	case ch <- resp:
	default:
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, req model.ActionRequest) (model.ActionResult, error) {
	if len(req.Command) == 0 {
		return model.ActionResult{}, apierr.New(apierr.Internal, "empty command")
	}
	if e.broadcaster != nil {
		e.broadcaster.Broadcast(model.MsgActionExecuting, map[string]string{"action_id": req.ID})
	}
	dctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	cmd := exec.CommandContext(dctx, req.Command[0], req.Command[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := model.ActionResult{
		ActionID: req.ID,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	e.appendAudit(ctx, req.ID, "completed", fmt.Sprintf("exit_code=%d", exitCode))
	if e.publisher != nil {
		e.publisher.Publish(bus.TopicActionsCompleted, result)
	}
	if e.broadcaster != nil {
		e.broadcaster.Broadcast(model.MsgActionComplete, result)
	}
	return result, nil
}

func (e *Engine) appendAudit(ctx context.Context, actionID, action, detail string) {
	if e.audit == nil {
		return
	}
	_, _ = e.audit.AppendAudit(ctx, model.AuditEntry{
		At:         time.Now(),
		Resource:   "action",
		ResourceID: actionID,
		Action:     action,
		Detail:     detail,
	})
}

func matchBlockList(command []string) string {
	joined := strings.Join(command, " ")
	for _, pattern := range blockList {
		if globMatch(pattern, joined) {
			return pattern
		}
	}
	return ""
}

// globMatch is a shell-glob matcher where "*" matches any run of characters
// including "/" (unlike path/filepath.Match, which treats "/" as a separator
// and would silently fail to match a pattern like "dd if=*" against
// "dd if=/dev/zero").
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}
