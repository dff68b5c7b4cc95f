package rules

import (
	"testing"

	"github.com/commonshold/core/pkg/contracts"
)

func TestValidateParamsAccepts(t *testing.T) {
	rule := contracts.GovernanceRule{
		ID:   "r1",
		Type: contracts.RuleUsageLimit,
		Params: map[string]any{
			"max_per_window": 5,
			"window_seconds": 3600,
		},
	}
	if err := ValidateParams(rule); err != nil {
		t.Fatal(err)
	}
}

func TestValidateParamsRejectsMissingRequired(t *testing.T) {
	rule := contracts.GovernanceRule{
		ID:     "r1",
		Type:   contracts.RuleUsageLimit,
		Params: map[string]any{"window_seconds": 3600},
	}
	if err := ValidateParams(rule); err == nil {
		t.Fatal("usage limit without max_per_window must be rejected")
	}
}

func TestValidateParamsRejectsUnknownKeys(t *testing.T) {
	rule := contracts.GovernanceRule{
		ID:     "r2",
		Type:   contracts.RuleLocationRestriction,
		Params: map[string]any{"allowed_location": []string{"depot"}}, // typo
	}
	if err := ValidateParams(rule); err == nil {
		t.Fatal("misspelled parameter keys must be rejected")
	}
}

func TestValidateParamsUnknownTypePasses(t *testing.T) {
	rule := contracts.GovernanceRule{
		ID:     "r3",
		Type:   contracts.RuleType("carbon_budget"),
		Params: map[string]any{"anything": true},
	}
	if err := ValidateParams(rule); err != nil {
		t.Fatalf("unknown rule types are fail-open at attach time too: %v", err)
	}
}
