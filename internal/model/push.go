package model

import "time"

// ServerMessageType enumerates every envelope type the server may push.
type ServerMessageType string

const (
	MsgConnected            ServerMessageType = "connected"
	MsgSystemStatus          ServerMessageType = "system_status"
	MsgThinkingStart         ServerMessageType = "thinking_start"
	MsgThinkingEnd           ServerMessageType = "thinking_end"
	MsgAssistantStart        ServerMessageType = "assistant_message_start"
	MsgAssistantDelta        ServerMessageType = "assistant_message_delta"
	MsgAssistantEnd          ServerMessageType = "assistant_message_end"
	MsgToolCall              ServerMessageType = "tool_call"
	MsgToolResult            ServerMessageType = "tool_result"
	MsgActionRequest         ServerMessageType = "action_request"
	MsgActionExecuting       ServerMessageType = "action_executing"
	MsgActionComplete        ServerMessageType = "action_complete"
	MsgAlert                 ServerMessageType = "alert"
	MsgAlertStateChange      ServerMessageType = "alert_state_change"
	MsgBudgetUpdate          ServerMessageType = "budget_update"
	MsgInvestigationStart    ServerMessageType = "investigation_start"
	MsgInvestigationUpdate   ServerMessageType = "investigation_update"
	MsgInvestigationEnd      ServerMessageType = "investigation_end"
	MsgError                 ServerMessageType = "error"
	MsgPong                  ServerMessageType = "pong"
)

// ClientMessageType enumerates every envelope type the server accepts.
type ClientMessageType string

const (
	ClientUserMessage   ClientMessageType = "user_message"
	ClientActionResp    ClientMessageType = "action_response"
	ClientCancel        ClientMessageType = "cancel"
	ClientPing          ClientMessageType = "ping"
)

// Envelope is the wire shape for both directions of the /ws session.
type Envelope struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// ErrorPayload is the Data of an `error` push message. No stack traces cross
// the wire; only a stable code, a short message, and an optional correlation id.
type ErrorPayload struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// PushConnection is a persistent bidirectional session to a client.
type PushConnection struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastPing     time.Time `json:"last_ping"`
	Capabilities []string  `json:"capabilities,omitempty"`
}
