// Package roles resolves agent roles and checks them against per-action
// requirements. Denial is a first-class result, not an error; errors are
// reserved for an unreachable role source.
package roles

import (
	"context"
	"fmt"
	"sort"

	"github.com/commonshold/core/pkg/contracts"
)

// Role is a capability label held by an agent.
type Role string

const (
	RoleSimple      Role = "Simple"
	RoleAccountable Role = "Accountable"
	RoleTransport   Role = "Transport"
	RoleRepair      Role = "Repair"
	RoleSteward     Role = "Steward"
)

// RoleSource resolves the roles an agent currently holds. Implementations
// are external collaborators (identity provider, token claims, cache).
type RoleSource interface {
	GetRoles(ctx context.Context, agentID string) ([]Role, error)
}

// CheckResult is the verdict for one permission check.
type CheckResult struct {
	Allowed       bool   `json:"allowed"`
	RequiredRoles []Role `json:"required_roles"`
	Status        string `json:"status"`
}

// Checker maps actions to required role sets and checks agents against them.
type Checker struct {
	source RoleSource
	table  map[contracts.Action][]Role
}

// DefaultTable returns the baseline action → required-roles mapping.
// Holding any listed role satisfies the requirement.
func DefaultTable() map[contracts.Action][]Role {
	return map[contracts.Action][]Role{
		contracts.ActionProduce:          {RoleAccountable},
		contracts.ActionUse:              {RoleAccountable},
		contracts.ActionTransfer:         {RoleAccountable},
		contracts.ActionTransferCustody:  {RoleAccountable},
		contracts.ActionMove:             {RoleTransport},
		contracts.ActionModify:           {RoleRepair},
		contracts.ActionConsume:          {RoleAccountable},
		contracts.ActionRaise:            {RoleAccountable},
		contracts.ActionLower:            {RoleAccountable},
		contracts.ActionCommitService:    {RoleAccountable},
		contracts.ActionFulfillService:   {RoleAccountable},
		contracts.ActionDeclareEndOfLife: {RoleSteward},
		contracts.ActionValidate:         {RoleAccountable},
		contracts.ActionReserve:          {RoleAccountable},
		contracts.ActionRelease:          {RoleAccountable},
		contracts.ActionRestore:          {RoleRepair},
	}
}

// NewChecker builds a checker over the default table.
func NewChecker(source RoleSource) *Checker {
	return NewCheckerWithTable(source, DefaultTable())
}

// NewCheckerWithTable allows a specification-declared mapping to replace the
// static default.
func NewCheckerWithTable(source RoleSource, table map[contracts.Action][]Role) *Checker {
	return &Checker{source: source, table: table}
}

// Check resolves the agent's roles and verifies the requirement for action.
// The returned error is non-nil only when the role source is unreachable;
// it wraps contracts.ErrCollaboratorUnavailable so callers can degrade.
func (c *Checker) Check(ctx context.Context, agentID string, action contracts.Action) (CheckResult, error) {
	required, known := c.table[action]
	if !known {
		// Unknown actions default to the baseline standing requirement.
		required = []Role{RoleAccountable}
	}

	held, err := c.source.GetRoles(ctx, agentID)
	if err != nil {
		return CheckResult{RequiredRoles: required, Status: "Role source unreachable"},
			fmt.Errorf("%w: %v", contracts.ErrCollaboratorUnavailable, err)
	}

	heldSet := make(map[Role]struct{}, len(held))
	for _, r := range held {
		heldSet[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := heldSet[r]; ok {
			return CheckResult{Allowed: true, RequiredRoles: required, Status: "Authorized"}, nil
		}
	}
	return CheckResult{
		Allowed:       false,
		RequiredRoles: required,
		Status:        fmt.Sprintf("Insufficient role: requires one of %v", roleNames(required)),
	}, nil
}

func roleNames(rs []Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	sort.Strings(out)
	return out
}
