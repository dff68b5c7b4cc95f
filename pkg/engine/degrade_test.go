package engine

import (
	"testing"

	"github.com/commonshold/core/pkg/contracts"
)

func degradeReq(action contracts.Action) contracts.TransitionRequest {
	return contracts.TransitionRequest{
		Action:   action,
		Resource: contracts.Resource{ID: "res-001", State: contracts.StateActive},
		AgentID:  "alice",
	}
}

func TestDefaultDegradeAllowList(t *testing.T) {
	p, err := NewDegradePolicy("")
	if err != nil {
		t.Fatalf("NewDegradePolicy: %v", err)
	}
	if !p.Allows(degradeReq(contracts.ActionUse), 0) {
		t.Error("Use should be on the default allow-list")
	}
	if !p.Allows(degradeReq(contracts.ActionTransfer), 0) {
		t.Error("Transfer should be on the default allow-list")
	}
	for _, action := range []contracts.Action{
		contracts.ActionModify, contracts.ActionConsume, contracts.ActionDeclareEndOfLife,
	} {
		if p.Allows(degradeReq(action), 0) {
			t.Errorf("%s must not pass degraded evaluation by default", action)
		}
	}
}

func TestDegradeHotReload(t *testing.T) {
	p, err := NewDegradePolicy("")
	if err != nil {
		t.Fatalf("NewDegradePolicy: %v", err)
	}
	if err := p.Load(`action == "Move" && quantity_delta == 0.0`); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !p.Allows(degradeReq(contracts.ActionMove), 0) {
		t.Error("reloaded policy should allow Move")
	}
	if p.Allows(degradeReq(contracts.ActionUse), 0) {
		t.Error("reloaded policy should no longer allow Use")
	}
}

func TestDegradeBadExpressionKeepsOldPolicy(t *testing.T) {
	p, err := NewDegradePolicy("")
	if err != nil {
		t.Fatalf("NewDegradePolicy: %v", err)
	}
	if err := p.Load(`action ==`); err == nil {
		t.Fatal("expected a compile error")
	}
	if p.Source() != DefaultDegradeExpression {
		t.Fatalf("failed load must keep the previous source, got %q", p.Source())
	}
	if !p.Allows(degradeReq(contracts.ActionUse), 0) {
		t.Error("previous policy must stay in force after a failed load")
	}
}
