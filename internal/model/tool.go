package model

// ToolRisk is the ordinal tag gating whether a tool invocation requires
// human approval before it executes.
type ToolRisk string

const (
	RiskReadOnly ToolRisk = "READ_ONLY"
	RiskLow      ToolRisk = "LOW"
	RiskMedium   ToolRisk = "MEDIUM"
	RiskHigh     ToolRisk = "HIGH"
	RiskCritical ToolRisk = "CRITICAL"
)

var riskRank = map[ToolRisk]int{
	RiskReadOnly: 0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// AtLeast reports whether r is ordinally at or above other.
func (r ToolRisk) AtLeast(other ToolRisk) bool {
	return riskRank[r] >= riskRank[other]
}

// DisplayType hints to the push layer and UI how to render a ToolResult.
type DisplayType string

const (
	DisplayLogViewer    DisplayType = "log_viewer"
	DisplayMetricsChart DisplayType = "metrics_chart"
	DisplayProcessTable DisplayType = "process_table"
	DisplayTable        DisplayType = "table"
	DisplayChart        DisplayType = "chart"
	DisplayCommandOut   DisplayType = "command_output"
	DisplayCodeBlock    DisplayType = "code_block"
	DisplayJSONTree     DisplayType = "json_tree"
)

// ToolDefinition is the declarative schema advertised by the Tool Registry.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Risk        ToolRisk        `json:"risk"`
	Display     DisplayType     `json:"display_type"`
	Arguments   []ToolArgSpec   `json:"arguments"`
	TimeoutSec  int             `json:"timeout_seconds,omitempty"`
}

// ToolArgSpec is one field of a tool's typed argument schema.
type ToolArgSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string|number|boolean|array|object
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolCall is one invocation within a ReActRun. ToolCall and ToolResult are
// emitted to the push layer as a matched pair, in order.
type ToolCall struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultCode distinguishes a successful handler result from an error one.
type ToolResultCode string

const (
	ToolResultOK    ToolResultCode = "ok"
	ToolResultError ToolResultCode = "error"
)

// ToolResult is the outcome of dispatching a ToolCall. Handlers never raise;
// faults are captured at the dispatch boundary and converted into this shape.
type ToolResult struct {
	ToolCallID string         `json:"tool_call_id"`
	Code       ToolResultCode `json:"code"`
	Display    DisplayType    `json:"display_type,omitempty"`
	Payload    any            `json:"payload,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Message    string         `json:"message,omitempty"`
}
