// Package lifecycle holds the resource state machine: which actions each
// state accepts, the successor state, and the per-action quantity formula.
// The transition engine is the only caller that applies these outcomes.
package lifecycle

import (
	"fmt"
	"math"

	"github.com/commonshold/core/pkg/contracts"
)

// transitions maps state -> action -> successor state. Absence means the
// action is illegal in that state. Retired has no entries: it is terminal.
var transitions = map[contracts.ResourceState]map[contracts.Action]contracts.ResourceState{
	contracts.StatePendingValidation: {
		contracts.ActionValidate:         contracts.StateActive,
		contracts.ActionDeclareEndOfLife: contracts.StatePendingValidation,
	},
	contracts.StateActive: {
		contracts.ActionProduce:          contracts.StateActive,
		contracts.ActionUse:              contracts.StateActive,
		contracts.ActionTransfer:         contracts.StateActive,
		contracts.ActionTransferCustody:  contracts.StateActive,
		contracts.ActionMove:             contracts.StateActive,
		contracts.ActionModify:           contracts.StateMaintenance,
		contracts.ActionConsume:          contracts.StateActive,
		contracts.ActionRaise:            contracts.StateActive,
		contracts.ActionLower:            contracts.StateActive,
		contracts.ActionReserve:          contracts.StateReserved,
		contracts.ActionCommitService:    contracts.StateActive,
		contracts.ActionFulfillService:   contracts.StateActive,
		contracts.ActionDeclareEndOfLife: contracts.StateActive,
	},
	contracts.StateMaintenance: {
		contracts.ActionModify:           contracts.StateMaintenance,
		contracts.ActionRestore:          contracts.StateActive,
		contracts.ActionDeclareEndOfLife: contracts.StateMaintenance,
	},
	contracts.StateReserved: {
		contracts.ActionRelease:          contracts.StateActive,
		contracts.ActionDeclareEndOfLife: contracts.StateReserved,
	},
	contracts.StateRetired: {},
}

// Allows checks state legality for an action. The reason is specific enough
// for callers to surface verbatim; illegal transitions are never silent.
func Allows(state contracts.ResourceState, action contracts.Action) (bool, string) {
	if state == contracts.StateRetired {
		return false, "resource is retired; no further transitions are accepted"
	}
	byAction, known := transitions[state]
	if !known {
		return false, fmt.Sprintf("unknown resource state %q", state)
	}
	if _, ok := byAction[action]; !ok {
		return false, fmt.Sprintf("action %s is not accepted in state %s", action, state)
	}
	return true, ""
}

// Next returns the successor state for a legal (state, action) pair.
func Next(state contracts.ResourceState, action contracts.Action) (contracts.ResourceState, error) {
	if ok, reason := Allows(state, action); !ok {
		return state, fmt.Errorf("illegal transition: %s", reason)
	}
	return transitions[state][action], nil
}

// QuantityDelta applies the action-specific formula to the requested delta.
// Produce and Raise add, Consume and Lower subtract; movement, use and
// custody actions leave quantity unchanged regardless of the request.
func QuantityDelta(action contracts.Action, requested float64) float64 {
	magnitude := math.Abs(requested)
	switch action {
	case contracts.ActionProduce, contracts.ActionRaise:
		return magnitude
	case contracts.ActionConsume, contracts.ActionLower:
		return -magnitude
	default:
		return 0
	}
}
