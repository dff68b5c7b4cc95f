package contracts

import "time"

// TransitionContext is the free-form bag accompanying a transition request.
type TransitionContext struct {
	TargetLocation  string  `json:"target_location,omitempty"`
	QuantityDelta   float64 `json:"quantity_delta,omitempty"`
	TargetCustodian string  `json:"target_custodian,omitempty"`
	Note            string  `json:"note,omitempty"`
	ProcessRef      string  `json:"process_ref,omitempty"`
}

// TransitionRequest is the ephemeral input to one evaluation. It is never
// persisted; the snapshot inside it is the caller's view of the resource.
type TransitionRequest struct {
	Action   Action            `json:"action"`
	Resource Resource          `json:"resource"`
	AgentID  string            `json:"agent_id"`
	Context  TransitionContext `json:"context"`
}

// RejectionCode machine-distinguishes why a transition was refused.
type RejectionCode string

const (
	RejectPermissionDenied        RejectionCode = "PERMISSION_DENIED"
	RejectRuleViolation           RejectionCode = "RULE_VIOLATION"
	RejectInvalidStateTransition  RejectionCode = "INVALID_STATE_TRANSITION"
	RejectIdentityMismatch        RejectionCode = "IDENTITY_MISMATCH"
	RejectCollaboratorUnavailable RejectionCode = "COLLABORATOR_UNAVAILABLE"
	RejectInvalidDeclaration      RejectionCode = "INVALID_DECLARATION"
)

// RuleReceipt records the verdict of a single governance rule evaluation.
type RuleReceipt struct {
	RuleID   string   `json:"rule_id"`
	RuleType RuleType `json:"rule_type"`
	Passed   bool     `json:"passed"`
	Reason   string   `json:"reason"`
}

// TransitionResult is the response envelope for one request. The persisted
// Resource and EconomicEvent are authoritative, not this value.
type TransitionResult struct {
	Accepted     bool            `json:"accepted"`
	Resource     *Resource       `json:"resource,omitempty"`
	Event        *EconomicEvent  `json:"event,omitempty"`
	RuleReceipts []RuleReceipt   `json:"rule_receipts,omitempty"`
	Code         RejectionCode   `json:"code,omitempty"`
	Reasons      []string        `json:"reasons,omitempty"`
	NextSteps    []string        `json:"next_steps,omitempty"`
	Degraded     bool            `json:"degraded,omitempty"`
	EvaluatedAt  time.Time       `json:"evaluated_at"`
}
