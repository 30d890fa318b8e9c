// Package ops implements the command model: the Action record, its state
// machine, and the executor that validates and applies commands to the store.
package ops

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the supported command kinds.
type Kind string

const (
	KindDeployAsset     Kind = "deploy_asset"
	KindRecallAsset     Kind = "recall_asset"
	KindAssignAsset     Kind = "assign_asset"
	KindUnassignAsset   Kind = "unassign_asset"
	KindCreateIncident  Kind = "create_incident"
	KindResolveIncident Kind = "resolve_incident"
	KindUpdatePriority  Kind = "update_priority"
	KindEscalate        Kind = "escalate"
)

// Source identifies who requested a command.
type Source string

const (
	SourceOperator Source = "operator"
	SourceAIAgent  Source = "ai_agent"
	SourceSystem   Source = "system"
)

// Status is an Action's position in its state machine:
// pending -> approved -> {executed | failed}, or pending -> rejected.
// All states other than pending are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusExecuted Status = "executed"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Action is one requested operational command and its outcome record.
type Action struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Source     Source         `json:"source"`
	Params     map[string]any `json:"params"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ExecutedAt *time.Time     `json:"executed_at,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewAction constructs a pending Action with a fresh short id.
func NewAction(kind Kind, source Source, params map[string]any) *Action {
	if params == nil {
		params = map[string]any{}
	}
	return &Action{
		ID:        uuid.NewString()[:8],
		Kind:      kind,
		Source:    source,
		Params:    params,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}
