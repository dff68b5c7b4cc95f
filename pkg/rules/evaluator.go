// Package rules evaluates the governance rules attached to a resource
// specification against one transition request. Evaluation is deterministic
// and side-effect-free; usage counters are read as a snapshot and consumed
// by the engine only after approval.
package rules

import (
	"fmt"
	"log/slog"

	"github.com/commonshold/core/pkg/contracts"
)

// UsageSnapshot exposes a read-only view of usage counters so the evaluator
// stays pure. The engine records consumption separately on approval.
type UsageSnapshot interface {
	// Allowance returns how many actions remain in the current window for
	// the (resource, agent) pair under the given limit parameters.
	Allowance(resourceID, agentID string, maxPerWindow int, windowSeconds int) float64
}

// Evaluator dispatches each rule by type and ANDs the verdicts. Every
// failing reason is surfaced, not just the first, so callers can fix all
// violations in one pass. Unknown rule types pass with a logged warning;
// fail-open applies only to unrecognized types, never to failing known ones.
type Evaluator struct {
	usage  UsageSnapshot
	logger *slog.Logger
}

func NewEvaluator(usage UsageSnapshot, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{usage: usage, logger: logger}
}

// Evaluate runs every rule in order and returns per-rule receipts plus the
// overall verdict. Identical inputs always produce identical output.
func (e *Evaluator) Evaluate(req contracts.TransitionRequest, ruleSet []contracts.GovernanceRule) ([]contracts.RuleReceipt, bool) {
	receipts := make([]contracts.RuleReceipt, 0, len(ruleSet))
	passed := true
	for _, rule := range ruleSet {
		r := e.evaluateOne(req, rule)
		receipts = append(receipts, r)
		if !r.Passed {
			passed = false
		}
	}
	return receipts, passed
}

func (e *Evaluator) evaluateOne(req contracts.TransitionRequest, rule contracts.GovernanceRule) contracts.RuleReceipt {
	receipt := contracts.RuleReceipt{RuleID: rule.ID, RuleType: rule.Type}

	var ok bool
	var reason string
	switch rule.Type {
	case contracts.RuleAccessRequirement:
		ok, reason = e.evalAccess(req, rule.Params)
	case contracts.RuleUsageLimit:
		ok, reason = e.evalUsageLimit(req, rule.Params)
	case contracts.RuleTransferConditions:
		ok, reason = e.evalTransferConditions(req, rule.Params)
	case contracts.RuleCustodyRequirement:
		ok, reason = e.evalCustodyRequirement(req, rule.Params)
	case contracts.RuleLocationRestriction:
		ok, reason = e.evalLocationRestriction(req, rule.Params)
	default:
		e.logger.Warn("unrecognized rule type, passing",
			"rule_id", rule.ID, "rule_type", string(rule.Type))
		ok, reason = true, fmt.Sprintf("rule type %q not recognized; passed", rule.Type)
	}

	receipt.Passed = ok
	receipt.Reason = reason
	return receipt
}

func (e *Evaluator) evalAccess(req contracts.TransitionRequest, params map[string]any) (bool, string) {
	if custodianOnly, _ := params["custodian_only"].(bool); custodianOnly {
		if req.AgentID != req.Resource.Custodian {
			return false, fmt.Sprintf("access restricted to current custodian %s", req.Resource.Custodian)
		}
	}
	if allowed := stringSlice(params["allowed_agents"]); len(allowed) > 0 {
		if !contains(allowed, req.AgentID) {
			return false, fmt.Sprintf("agent %s is not on the access list", req.AgentID)
		}
	}
	return true, "access requirement satisfied"
}

func (e *Evaluator) evalUsageLimit(req contracts.TransitionRequest, params map[string]any) (bool, string) {
	maxPerWindow := intParam(params, "max_per_window", 0)
	windowSeconds := intParam(params, "window_seconds", 86400)
	if maxPerWindow <= 0 {
		return true, "usage limit not configured; passed"
	}
	if e.usage == nil {
		return true, "no usage meter attached; passed"
	}
	remaining := e.usage.Allowance(req.Resource.ID, req.AgentID, maxPerWindow, windowSeconds)
	if remaining < 1 {
		return false, fmt.Sprintf("usage limit reached: %d per %ds window exhausted", maxPerWindow, windowSeconds)
	}
	return true, "within usage limit"
}

func (e *Evaluator) evalTransferConditions(req contracts.TransitionRequest, params map[string]any) (bool, string) {
	if req.Action != contracts.ActionTransfer && req.Action != contracts.ActionTransferCustody {
		return true, "transfer conditions apply only to transfer actions; passed"
	}
	if req.Context.TargetCustodian == "" {
		return false, "transfer requires a target custodian"
	}
	if req.Context.TargetCustodian == req.AgentID {
		return false, "transfer to self is not a transfer"
	}
	if requireNote, _ := params["require_note"].(bool); requireNote && req.Context.Note == "" {
		return false, "transfer requires an explanatory note"
	}
	if allowed := stringSlice(params["allowed_custodians"]); len(allowed) > 0 {
		if !contains(allowed, req.Context.TargetCustodian) {
			return false, fmt.Sprintf("custodian %s is not on the approved list", req.Context.TargetCustodian)
		}
	}
	return true, "transfer conditions satisfied"
}

func (e *Evaluator) evalCustodyRequirement(req contracts.TransitionRequest, params map[string]any) (bool, string) {
	if mustRequest, _ := params["custodian_must_request"].(bool); mustRequest {
		if req.AgentID != req.Resource.Custodian {
			return false, fmt.Sprintf("only the current custodian %s may request this action", req.Resource.Custodian)
		}
	}
	if minQty := floatParam(params, "min_remaining_quantity", 0); minQty > 0 {
		if req.Resource.Quantity < minQty {
			return false, fmt.Sprintf("custody requires at least %v %s on hand", minQty, req.Resource.Unit)
		}
	}
	return true, "custody requirement satisfied"
}

func (e *Evaluator) evalLocationRestriction(req contracts.TransitionRequest, params map[string]any) (bool, string) {
	// The restriction applies to where the resource will be after the
	// action: the target for a Move, the current location otherwise.
	loc := req.Resource.Location
	if req.Action == contracts.ActionMove {
		loc = req.Context.TargetLocation
		if loc == "" {
			return false, "move requires a target location"
		}
	}
	if forbidden := stringSlice(params["forbidden_locations"]); contains(forbidden, loc) {
		return false, fmt.Sprintf("location %q is forbidden for this resource", loc)
	}
	if allowed := stringSlice(params["allowed_locations"]); len(allowed) > 0 {
		if !contains(allowed, loc) {
			return false, fmt.Sprintf("location %q is not on the approved list", loc)
		}
	}
	return true, "location restriction satisfied"
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

func intParam(params map[string]any, key string, fallback int) int {
	switch t := params[key].(type) {
	case int:
		return t
	case float64:
		return int(t)
	}
	return fallback
}

func floatParam(params map[string]any, key string, fallback float64) float64 {
	switch t := params[key].(type) {
	case int:
		return float64(t)
	case float64:
		return t
	}
	return fallback
}
