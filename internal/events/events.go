// Package events defines the semantic events the core emits toward the
// transport layer. Framing (SSE, websocket) is the transport's concern;
// payloads here are wire-format agnostic beyond their JSON field names.
package events

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type identifies the kind of event carried by an envelope.
type Type string

const (
	TypeActionRecorded Type = "action_recorded"
	TypeStoreChanged   Type = "store_changed"
	TypeAgentStatus    Type = "agent_status"
	TypeAgentMessage   Type = "agent_message"
	TypeRoundComplete  Type = "round_complete"
	TypeError          Type = "error"
)

// Event is the envelope delivered to observers. Payload is one of the
// structs below (or nil for store_changed).
type Event struct {
	Type    Type
	Payload any
}

// ActionRecorded signals that a dispatch completed and was appended to the
// audit log, regardless of outcome.
type ActionRecorded struct {
	Kind    string `json:"action"`
	Message string `json:"message"`
}

// AgentStatus reports a role entering or leaving its thinking state.
type AgentStatus struct {
	Role   string `json:"agent"`
	Status string `json:"status"`
	Task   string `json:"task"`
}

// AgentMessage carries one published finding.
type AgentMessage struct {
	ID            string    `json:"id"`
	FromRole      string    `json:"from_agent"`
	To            string    `json:"to_agent"`
	Content       string    `json:"content"`
	ComputationMS int64     `json:"computation_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// RoundComplete summarizes one collaboration round.
type RoundComplete struct {
	RoundTimeMS      int64 `json:"round_time_ms"`
	MessagesCount    int   `json:"messages_count"`
	AvgComputationMS int64 `json:"avg_computation_ms"`
}

// RoleError reports a role-scoped, non-fatal failure during a round.
type RoleError struct {
	Role   string `json:"agent"`
	Reason string `json:"error"`
}

// MarshalJSON flattens the payload fields alongside the "type" field, so
// observers receive {"type": "agent_status", "agent": ..., ...}.
func (e Event) MarshalJSON() ([]byte, error) {
	flat := map[string]any{"type": string(e.Type)}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("flatten %s payload: %w", e.Type, err)
		}
		flat["type"] = string(e.Type)
	}
	return json.Marshal(flat)
}

// Encode renders the event to its wire form once, for fan-out to many
// observers without re-marshaling per connection.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
