package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/receipts"
)

func parsedSample(t *testing.T) *CommunityProfile {
	t.Helper()
	var p CommunityProfile
	if err := yaml.Unmarshal([]byte(sampleProfile), &p); err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	return &p
}

func TestProfileAppliesToReputation(t *testing.T) {
	cfg := parsedSample(t).ReputationSettings()
	if cfg.HalfLife != 60*24*time.Hour {
		t.Fatalf("half life not applied: %s", cfg.HalfLife)
	}
	if w := cfg.ClaimWeights[contracts.ClaimDisputeParticipation]; w != 2.5 {
		t.Fatalf("claim weight not applied: %v", w)
	}
	// Weights the profile does not mention keep their defaults.
	if w := cfg.ClaimWeights[contracts.ClaimValidation]; w != 1.5 {
		t.Fatalf("untouched weight lost: %v", w)
	}
}

func TestProfileAppliesToRetirement(t *testing.T) {
	cfg := parsedSample(t).RetirementSettings()
	if cfg.MinValidators != 2 || cfg.MaxValidators != 3 {
		t.Fatalf("validator bounds not applied: %+v", cfg)
	}
	if cfg.ChallengeWindow != 7*24*time.Hour {
		t.Fatalf("challenge window not applied: %s", cfg.ChallengeWindow)
	}
	if cfg.DisposalCustodian != "commons:disposal" {
		t.Fatalf("disposal custodian not applied: %s", cfg.DisposalCustodian)
	}
}

func TestProfileReceiptToleranceDefaultsWhenUnset(t *testing.T) {
	p := parsedSample(t)
	if got := p.ReceiptTolerance(); got != 5*time.Minute {
		t.Fatalf("tolerance not applied: %s", got)
	}
	var empty CommunityProfile
	if got := empty.ReceiptTolerance(); got != receipts.DefaultTolerance {
		t.Fatalf("empty profile must fall back to the default, got %s", got)
	}
}

func TestProfileCompilesDegradePolicy(t *testing.T) {
	policy, err := parsedSample(t).DegradePolicy()
	if err != nil {
		t.Fatalf("DegradePolicy: %v", err)
	}
	use := contracts.TransitionRequest{Action: contracts.ActionUse,
		Resource: contracts.Resource{State: contracts.StateActive}}
	transfer := contracts.TransitionRequest{Action: contracts.ActionTransfer,
		Resource: contracts.Resource{State: contracts.StateActive}}
	if !policy.Allows(use, 0) {
		t.Fatal("profile allow-list must pass Use")
	}
	if policy.Allows(transfer, 0) {
		t.Fatal("profile allow-list names only Use; Transfer must be refused")
	}
}
