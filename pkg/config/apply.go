package config

import (
	"time"

	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/engine"
	"github.com/commonshold/core/pkg/receipts"
	"github.com/commonshold/core/pkg/reputation"
	"github.com/commonshold/core/pkg/retirement"
)

// ReputationSettings maps the profile's numbers onto the calculator config.
// Unset fields keep the compiled-in defaults.
func (p *CommunityProfile) ReputationSettings() reputation.Config {
	cfg := reputation.DefaultConfig()
	if p.Reputation.HalfLifeDays > 0 {
		cfg.HalfLife = time.Duration(p.Reputation.HalfLifeDays) * 24 * time.Hour
	}
	if p.Reputation.DefaultScore > 0 {
		cfg.DefaultScore = p.Reputation.DefaultScore
	}
	for claim, w := range p.Reputation.ClaimWeights {
		cfg.ClaimWeights[contracts.ClaimType(claim)] = w
	}
	return cfg
}

// RetirementSettings maps the profile onto the coordinator config. The
// coordinator still clamps the window to its allowed range.
func (p *CommunityProfile) RetirementSettings() retirement.Config {
	cfg := retirement.DefaultConfig()
	if p.Retirement.MinValidators > 0 {
		cfg.MinValidators = p.Retirement.MinValidators
	}
	if p.Retirement.MaxValidators > 0 {
		cfg.MaxValidators = p.Retirement.MaxValidators
	}
	if p.Retirement.HighValueQuantity > 0 {
		cfg.HighValueQuantity = p.Retirement.HighValueQuantity
	}
	if p.Retirement.ChallengeWindowDays > 0 {
		cfg.ChallengeWindow = p.Retirement.ChallengeWindow()
	}
	if p.Retirement.DisposalCustodian != "" {
		cfg.DisposalCustodian = p.Retirement.DisposalCustodian
	}
	return cfg
}

// ReceiptTolerance returns the pair skew tolerance for the issuer.
func (p *CommunityProfile) ReceiptTolerance() time.Duration {
	if p.Receipts.ToleranceSeconds > 0 {
		return p.Receipts.Tolerance()
	}
	return receipts.DefaultTolerance
}

// DegradePolicy compiles the profile's outage allow-list; an empty
// expression selects the compiled-in default.
func (p *CommunityProfile) DegradePolicy() (*engine.DegradePolicy, error) {
	return engine.NewDegradePolicy(p.Degraded.AllowExpression)
}
