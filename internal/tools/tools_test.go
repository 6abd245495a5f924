package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/argus-core/backend/internal/model"
)

func echoTool() Tool {
	return Tool{
		Definition: model.ToolDefinition{
			Name: "echo",
			Arguments: []model.ToolArgSpec{
				{Name: "message", Type: "string", Required: true},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			return model.ToolResult{Payload: args["message"]}, nil
		},
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Dispatch(context.Background(), model.ToolCall{ID: "1", Name: "nope"})
	if res.Code != model.ToolResultError || res.ErrorCode != "unknown_tool" {
		t.Fatalf("expected unknown_tool error, got %+v", res)
	}
}

func TestDispatchMissingRequiredArgument(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())

	res := r.Dispatch(context.Background(), model.ToolCall{ID: "1", Name: "echo", Arguments: map[string]any{}})
	if res.Code != model.ToolResultError || res.ErrorCode != "invalid_arguments" {
		t.Fatalf("expected invalid_arguments error, got %+v", res)
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())

	res := r.Dispatch(context.Background(), model.ToolCall{
		ID:        "1",
		Name:      "echo",
		Arguments: map[string]any{"message": "hi"},
	})
	if res.Code != model.ToolResultOK {
		t.Fatalf("expected ok result, got %+v", res)
	}
	if res.Payload != "hi" {
		t.Fatalf("expected payload echoed back, got %v", res.Payload)
	}
}

func TestDispatchHandlerErrorBecomesResult(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Definition: model.ToolDefinition{Name: "fails"},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			return model.ToolResult{}, errors.New("boom")
		},
	})

	res := r.Dispatch(context.Background(), model.ToolCall{ID: "1", Name: "fails"})
	if res.Code != model.ToolResultError || res.ErrorCode != "handler_error" {
		t.Fatalf("expected handler_error, got %+v", res)
	}
}

func TestDispatchHandlerPanicIsRecovered(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Definition: model.ToolDefinition{Name: "panics"},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			panic("unexpected")
		},
	})

	res := r.Dispatch(context.Background(), model.ToolCall{ID: "1", Name: "panics"})
	if res.Code != model.ToolResultError || res.ErrorCode != "handler_panic" {
		t.Fatalf("expected handler_panic, got %+v", res)
	}
}

func TestDispatchTimeout(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Definition: model.ToolDefinition{Name: "slow"},
		Timeout:    10 * time.Millisecond,
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			<-ctx.Done()
			return model.ToolResult{}, ctx.Err()
		},
	})

	res := r.Dispatch(context.Background(), model.ToolCall{ID: "1", Name: "slow"})
	if res.Code != model.ToolResultError || res.ErrorCode != "timeout" {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestValidateEnum(t *testing.T) {
	def := model.ToolDefinition{
		Arguments: []model.ToolArgSpec{
			{Name: "level", Type: "string", Enum: []string{"low", "high"}},
		},
	}
	if err := Validate(def, map[string]any{"level": "medium"}); err == nil {
		t.Fatal("expected enum violation to error")
	}
	if err := Validate(def, map[string]any{"level": "high"}); err != nil {
		t.Fatalf("expected allowed enum value to pass, got %v", err)
	}
}
