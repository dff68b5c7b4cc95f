// Package contracts defines the shared data model for the commonshold
// registry: resources, governance rules, transition requests/results,
// economic events and participation receipts.
package contracts

import "time"

// ResourceState is the lifecycle state of a tracked resource.
type ResourceState string

const (
	StatePendingValidation ResourceState = "PENDING_VALIDATION"
	StateActive            ResourceState = "ACTIVE"
	StateMaintenance       ResourceState = "MAINTENANCE"
	StateReserved          ResourceState = "RESERVED"
	StateRetired           ResourceState = "RETIRED" // terminal
)

// Action identifies a requested operation on a resource.
type Action string

const (
	ActionProduce  Action = "Produce"
	ActionUse      Action = "Use"
	ActionTransfer Action = "Transfer"
	ActionMove     Action = "Move"
	ActionModify   Action = "Modify"
	ActionConsume  Action = "Consume"
	ActionRaise    Action = "Raise"
	ActionLower    Action = "Lower"
	// ActionTransferCustody moves stewardship without moving ownership.
	ActionTransferCustody Action = "TransferCustody"
	// ActionCommitService / ActionFulfillService bracket a service exchange.
	ActionCommitService  Action = "CommitService"
	ActionFulfillService Action = "FulfillService"
	// ActionDeclareEndOfLife opens the retirement protocol.
	ActionDeclareEndOfLife Action = "DeclareEndOfLife"
	// Lifecycle toggles: Validate activates a pending resource, Reserve and
	// Release bracket a reservation, Restore returns a resource from
	// maintenance to service.
	ActionValidate Action = "Validate"
	ActionReserve  Action = "Reserve"
	ActionRelease  Action = "Release"
	ActionRestore  Action = "Restore"
)

// InteractionClass reports whether an approved action mints participation
// receipts for both parties.
func (a Action) InteractionClass() bool {
	switch a {
	case ActionTransfer, ActionTransferCustody, ActionCommitService,
		ActionFulfillService, ActionDeclareEndOfLife:
		return true
	}
	return false
}

// Resource is a tracked item of value. State transitions happen only through
// the transition engine; quantity never goes negative. Retirement is a
// terminal state, never a deletion.
type Resource struct {
	ID              string        `json:"id"`
	SpecificationID string        `json:"specification_id"`
	Quantity        float64       `json:"quantity"`
	Unit            string        `json:"unit"`
	Custodian       string        `json:"custodian"`
	Location        string        `json:"location,omitempty"`
	State           ResourceState `json:"state"`
	CreatedBy       string        `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ResourceSpecification is the template a resource is instantiated from.
// It owns the attached governance rules; a rule never outlives its
// specification. Version is semver and must strictly increase when the
// attached rule set is superseded.
type ResourceSpecification struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	DefaultUnit string           `json:"default_unit,omitempty"`
	Rules       []GovernanceRule `json:"rules,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RuleType discriminates governance rule evaluation.
type RuleType string

const (
	RuleAccessRequirement   RuleType = "access_requirement"
	RuleUsageLimit          RuleType = "usage_limit"
	RuleTransferConditions  RuleType = "transfer_conditions"
	RuleCustodyRequirement  RuleType = "custody_requirement"
	RuleLocationRestriction RuleType = "location_restriction"
)

// GovernanceRule is immutable once created. Superseding a rule means
// attaching a replacement under a new specification version.
type GovernanceRule struct {
	ID         string         `json:"id"`
	Type       RuleType       `json:"type"`
	Params     map[string]any `json:"params,omitempty"`
	EnforcedBy string         `json:"enforced_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
