// Package tools is the declarative tool registry and dispatch boundary: it
// validates arguments against a tool's schema, invokes the handler under a
// timeout, and converts handler faults into typed Results so the ReAct loop
// never observes a raised exception, only a Result.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/argus-core/backend/internal/model"
)

const defaultTimeout = 30 * time.Second

// Handler executes a validated tool call and returns a Result. A Handler must
// never panic across the dispatch boundary; Dispatch recovers a panic into an
// error Result with ErrorCode "handler_panic".
type Handler func(ctx context.Context, args map[string]any) (model.ToolResult, error)

// Tool is one registry entry: schema, risk, display hint, and handler.
type Tool struct {
	Definition model.ToolDefinition
	Timeout    time.Duration
	Handler    Handler
}

// Registry holds the declared tool set the ReAct loop draws on.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	if t.Timeout <= 0 {
		t.Timeout = defaultTimeout
	}
	r.tools[t.Definition.Name] = t
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the schema for every registered tool, as sent to the LLM
// provider on each turn.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	return defs
}

// Validate checks args against the tool's declared argument spec, returning a
// human-readable error on the first violation.
func Validate(def model.ToolDefinition, args map[string]any) error {
	for _, spec := range def.Arguments {
		v, present := args[spec.Name]
		if !present {
			if spec.Required {
				return fmt.Errorf("missing required argument %q", spec.Name)
			}
			continue
		}
		if err := checkType(spec, v); err != nil {
			return fmt.Errorf("argument %q: %w", spec.Name, err)
		}
	}
	return nil
}

func checkType(spec model.ToolArgSpec, v any) error {
	switch spec.Type {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string")
		}
	case "number":
		switch v.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Errorf("expected number")
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean")
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected array")
		}
	}
	if len(spec.Enum) > 0 {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("enum constraint requires a string value")
		}
		for _, allowed := range spec.Enum {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("value %q not in allowed set %v", s, spec.Enum)
	}
	return nil
}

// Dispatch validates args, then invokes the tool's handler under its timeout.
// Invalid arguments short-circuit to an error Result without ever calling the
// handler. A handler error also becomes an error Result, never a panic that
// escapes to the caller.
func (r *Registry) Dispatch(ctx context.Context, call model.ToolCall) model.ToolResult {
	t, ok := r.Lookup(call.Name)
	if !ok {
		return model.ToolResult{
			ToolCallID: call.ID,
			Code:       model.ToolResultError,
			ErrorCode:  "unknown_tool",
			Message:    fmt.Sprintf("no tool registered with name %q", call.Name),
		}
	}

	if err := Validate(t.Definition, call.Arguments); err != nil {
		return model.ToolResult{
			ToolCallID: call.ID,
			Code:       model.ToolResultError,
			ErrorCode:  "invalid_arguments",
			Message:    err.Error(),
		}
	}

	dctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	resultCh := make(chan model.ToolResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				resultCh <- model.ToolResult{
					ToolCallID: call.ID,
					Code:       model.ToolResultError,
					ErrorCode:  "handler_panic",
					Message:    fmt.Sprintf("tool handler panicked: %v", p),
				}
			}
		}()
		res, err := t.Handler(dctx, call.Arguments)
		if err != nil {
			resultCh <- model.ToolResult{
				ToolCallID: call.ID,
				Code:       model.ToolResultError,
				ErrorCode:  "handler_error",
				Message:    err.Error(),
			}
			return
		}
		res.ToolCallID = call.ID
		if res.Code == "" {
			res.Code = model.ToolResultOK
		}
		resultCh <- res
	}()

	select {
	case res := <-resultCh:
		return res
	case <-dctx.Done():
		return model.ToolResult{
			ToolCallID: call.ID,
			Code:       model.ToolResultError,
			ErrorCode:  "timeout",
			Message:    fmt.Sprintf("tool %q exceeded its %s timeout", call.Name, t.Timeout),
		}
	}
}
