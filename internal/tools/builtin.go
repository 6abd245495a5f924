package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/argus-core/backend/internal/action"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/timeseries"
)

// RegisterBuiltins wires the platform's read-only query tools and the
// command-execution tool (which delegates approval-gated work to the action
// engine) into r.
func RegisterBuiltins(r *Registry, store *timeseries.Store, actions *action.Engine) {
	r.Register(systemMetricsTool(store))
	r.Register(logSearchTool(store))
	r.Register(processListTool(store))
	r.Register(securityScanTool(store))
	r.Register(runCommandTool(actions))
}

// SimilarIncidentSearcher embeds free text and returns the nearest past
// investigations by cosine distance. Implemented by main.go's
// similarIncidentSearcher over the store+embedding pair; kept as a function
// type here so this package never imports db or client directly.
type SimilarIncidentSearcher func(ctx context.Context, text string, limit int) ([]model.SimilarIncident, error)

// RegisterSimilaritySearch adds the find_similar_incidents read-only tool,
// letting the model pull past investigations into context mid-run instead of
// only receiving them once, attached to the investigation's own closing
// payload. A no-op if search is nil (no embedding client configured).
func RegisterSimilaritySearch(r *Registry, search SimilarIncidentSearcher) {
	if search == nil {
		return
	}
	r.Register(similarIncidentsTool(search))
}

func similarIncidentsTool(search SimilarIncidentSearcher) Tool {
	return Tool{
		Definition: model.ToolDefinition{
			Name:        "find_similar_incidents",
			Description: "Find past investigations with a summary similar to the given text, ranked by embedding distance.",
			Risk:        model.RiskReadOnly,
			Display:     model.DisplayJSONTree,
			Arguments: []model.ToolArgSpec{
				{Name: "query", Type: "string", Required: true, Description: "free-text description of the current incident"},
				{Name: "limit", Type: "number", Description: "max results, default 3"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			query, _ := args["query"].(string)
			limit := 3
			if v, ok := args["limit"].(float64); ok && v > 0 {
				limit = int(v)
			}
			incidents, err := search(ctx, query, limit)
			if err != nil {
				return model.ToolResult{}, err
			}
			return model.ToolResult{Display: model.DisplayJSONTree, Payload: map[string]any{"incidents": incidents}}, nil
		},
	}
}

func systemMetricsTool(store *timeseries.Store) Tool {
	return Tool{
		Definition: model.ToolDefinition{
			Name:        "system_metrics",
			Description: "Get system metrics (CPU, memory, disk, network, load), current or over a time range.",
			Risk:        model.RiskReadOnly,
			Display:     model.DisplayMetricsChart,
			Arguments: []model.ToolArgSpec{
				{Name: "name", Type: "string", Required: true, Description: "metric name, e.g. cpu, memory"},
				{Name: "host", Type: "string", Description: "host to scope the query to"},
				{Name: "since_minutes", Type: "number", Description: "lookback window in minutes, default 60"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			name, _ := args["name"].(string)
			host, _ := args["host"].(string)
			sinceMinutes := 60.0
			if v, ok := args["since_minutes"].(float64); ok {
				sinceMinutes = v
			}
			now := time.Now()
			rows, truncated, err := store.Query(ctx, timeseries.KindSystemMetric, timeseries.Filter{
				Host: host, Name: name,
				From: now.Add(-time.Duration(sinceMinutes) * time.Minute), To: now,
				Limit: 500,
			})
			if err != nil {
				return model.ToolResult{}, err
			}
			return model.ToolResult{
				Display: model.DisplayMetricsChart,
				Payload: map[string]any{"rows": rows, "truncated": truncated},
			}, nil
		},
	}
}

func logSearchTool(store *timeseries.Store) Tool {
	return Tool{
		Definition: model.ToolDefinition{
			Name:        "log_search",
			Description: "Search log lines matching a pattern over a time range. Returns matching rows with context.",
			Risk:        model.RiskReadOnly,
			Display:     model.DisplayLogViewer,
			Arguments: []model.ToolArgSpec{
				{Name: "pattern", Type: "string", Required: true},
				{Name: "host", Type: "string"},
				{Name: "since_minutes", Type: "number"},
				{Name: "limit", Type: "number"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			pattern, _ := args["pattern"].(string)
			host, _ := args["host"].(string)
			sinceMinutes := 60.0
			if v, ok := args["since_minutes"].(float64); ok {
				sinceMinutes = v
			}
			limit := 100
			if v, ok := args["limit"].(float64); ok {
				limit = int(v)
			}
			now := time.Now()
			rows, truncated, err := store.Query(ctx, timeseries.KindLog, timeseries.Filter{
				Host: host, From: now.Add(-time.Duration(sinceMinutes) * time.Minute), To: now, Limit: limit,
			})
			if err != nil {
				return model.ToolResult{}, err
			}
			matched := make([]timeseries.Row, 0, len(rows))
			for _, row := range rows {
				if pattern == "" || containsFold(row.Message, pattern) {
					matched = append(matched, row)
				}
			}
			return model.ToolResult{
				Display: model.DisplayLogViewer,
				Payload: map[string]any{"rows": matched, "truncated": truncated},
			}, nil
		},
	}
}

func processListTool(store *timeseries.Store) Tool {
	return Tool{
		Definition: model.ToolDefinition{
			Name:        "process_list",
			Description: "List running processes with CPU and memory usage, as most recently collected.",
			Risk:        model.RiskReadOnly,
			Display:     model.DisplayProcessTable,
			Arguments: []model.ToolArgSpec{
				{Name: "host", Type: "string"},
				{Name: "sort_by", Type: "string", Enum: []string{"cpu_percent", "memory_percent", "pid"}},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			host, _ := args["host"].(string)
			now := time.Now()
			rows, _, err := store.Query(ctx, timeseries.KindSystemMetric, timeseries.Filter{
				Host: host, Name: "process_snapshot", From: now.Add(-5 * time.Minute), To: now, Limit: 1,
			})
			if err != nil {
				return model.ToolResult{}, err
			}
			var payload any = []any{}
			if len(rows) > 0 {
				payload = rows[0].Fields["processes"]
			}
			return model.ToolResult{Display: model.DisplayProcessTable, Payload: payload}, nil
		},
	}
}

func securityScanTool(store *timeseries.Store) Tool {
	return Tool{
		Definition: model.ToolDefinition{
			Name:        "security_scan",
			Description: "Run a security scan: open ports, failed SSH attempts, suspicious processes. Read-only.",
			Risk:        model.RiskReadOnly,
			Display:     model.DisplayJSONTree,
			Arguments: []model.ToolArgSpec{
				{Name: "host", Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			host, _ := args["host"].(string)
			now := time.Now()
			rows, _, err := store.Query(ctx, timeseries.KindLog, timeseries.Filter{
				Host: host, Name: "security_finding", From: now.Add(-24 * time.Hour), To: now, Limit: 200,
			})
			if err != nil {
				return model.ToolResult{}, err
			}
			return model.ToolResult{Display: model.DisplayJSONTree, Payload: map[string]any{"findings": rows}}, nil
		},
	}
}

// runCommandTool is the single entry point for shell execution. Its risk is
// fixed at HIGH, so every call routes through the action engine's approval
// wait before the process actually runs.
func runCommandTool(actions *action.Engine) Tool {
	return Tool{
		Definition: model.ToolDefinition{
			Name:        "run_command",
			Description: "Execute a system command. Commands above LOW risk require operator approval via the UI.",
			Risk:        model.RiskHigh,
			Display:     model.DisplayCommandOut,
			Arguments: []model.ToolArgSpec{
				{Name: "command", Type: "array", Required: true, Description: "command as an argv array"},
				{Name: "reversible", Type: "boolean"},
			},
		},
		Timeout: 150 * time.Second, // covers the 120s approval wait plus execution
		Handler: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
			rawCmd, _ := args["command"].([]any)
			cmd := make([]string, 0, len(rawCmd))
			for _, part := range rawCmd {
				s, ok := part.(string)
				if !ok {
					return model.ToolResult{}, fmt.Errorf("command array must contain only strings")
				}
				cmd = append(cmd, s)
			}
			reversible, _ := args["reversible"].(bool)

			res, err := actions.RequestAndAwait(ctx, model.ActionRequest{
				ToolName:   "run_command",
				Command:    cmd,
				Risk:       model.RiskHigh,
				Reversible: reversible,
			})
			if err != nil {
				return model.ToolResult{}, err
			}
			if res.ExitCode != 0 {
				return model.ToolResult{
					Display: model.DisplayCommandOut,
					Code:    model.ToolResultError,
					Payload: res,
				}, nil
			}
			return model.ToolResult{Display: model.DisplayCommandOut, Payload: res}, nil
		},
	}
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	hl, nl := len(haystack), len(needle)
	if nl > hl {
		return false
	}
	toLower := func(b byte) byte {
		if b >= 'A' && b <= 'Z' {
			return b + 32
		}
		return b
	}
	for i := 0; i+nl <= hl; i++ {
		match := true
		for j := 0; j < nl; j++ {
			if toLower(haystack[i+j]) != toLower(needle[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
