// Package reputation derives trust scores from an agent's participation
// receipts. Scores are recomputed on demand and never persisted; the receipt
// set is the only source of truth.
package reputation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/commonshold/core/pkg/contracts"
)

// ReceiptSource is the read side of the owner-scoped receipt store.
type ReceiptSource interface {
	ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]contracts.ParticipationReceipt, error)
}

// Config holds the tunable constants. The shape of the computation
// (weighted, time-decayed, bounded) is fixed; the numbers are not.
type Config struct {
	HalfLife     time.Duration                   `yaml:"half_life"`
	ClaimWeights map[contracts.ClaimType]float64 `yaml:"claim_weights"`
	DefaultScore float64                         `yaml:"default_score"`
	MinScore     float64                         `yaml:"min_score"`
	MaxScore     float64                         `yaml:"max_score"`
}

// DefaultConfig returns the baseline constants: 90-day half-life, validation
// and lifecycle claims weighted above routine custody traffic.
func DefaultConfig() Config {
	return Config{
		HalfLife: 90 * 24 * time.Hour,
		ClaimWeights: map[contracts.ClaimType]float64{
			contracts.ClaimContribution:         1.0,
			contracts.ClaimValidation:           1.5,
			contracts.ClaimCustodyTransfer:      1.0,
			contracts.ClaimCustodyAcceptance:    1.0,
			contracts.ClaimServiceCommitment:    0.8,
			contracts.ClaimServiceFulfillment:   1.2,
			contracts.ClaimDisputeParticipation: 2.0,
			contracts.ClaimLifecycleDeclaration: 1.5,
			contracts.ClaimLifecycleValidation:  1.5,
		},
		DefaultScore: 0.5,
		MinScore:     0.0,
		MaxScore:     1.0,
	}
}

// Calculator aggregates receipts into a score and trust level.
type Calculator struct {
	source ReceiptSource
	cfg    Config
	clock  func() time.Time
}

func NewCalculator(source ReceiptSource, cfg Config) *Calculator {
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = DefaultConfig().HalfLife
	}
	if cfg.MaxScore <= cfg.MinScore {
		cfg.MinScore, cfg.MaxScore = 0.0, 1.0
	}
	return &Calculator{source: source, cfg: cfg, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (c *Calculator) WithClock(clock func() time.Time) *Calculator {
	c.clock = clock
	return c
}

// Compute pulls the agent's receipts inside the window and aggregates them.
// An agent with no receipts gets the configured default score, not an error.
func (c *Calculator) Compute(ctx context.Context, agentID string, from, to time.Time) (*contracts.ReputationScore, error) {
	held, err := c.source.ListByOwner(ctx, agentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("cannot load receipts for %s: %w", agentID, err)
	}

	now := c.clock()
	score := &contracts.ReputationScore{
		AgentID:      agentID,
		ReceiptCount: len(held),
		WindowStart:  from,
		WindowEnd:    to,
		ComputedAt:   now,
	}

	if len(held) == 0 {
		score.Score = c.clamp(c.cfg.DefaultScore)
		score.Level = LevelFor(score.Score)
		score.Validation = ValidationFor(score.Level)
		return score, nil
	}

	var weightedSum, totalWeight float64
	for _, r := range held {
		w := c.weightFor(r, now)
		weightedSum += receiptScore(r) * w
		totalWeight += w
	}
	if totalWeight == 0 {
		score.Score = c.clamp(c.cfg.DefaultScore)
	} else {
		score.Score = c.clamp(weightedSum / totalWeight)
	}
	score.Level = LevelFor(score.Score)
	score.Validation = ValidationFor(score.Level)
	return score, nil
}

// weightFor is the per-claim weight times the exponential age decay.
func (c *Calculator) weightFor(r contracts.ParticipationReceipt, now time.Time) float64 {
	w, ok := c.cfg.ClaimWeights[r.Claim]
	if !ok {
		w = 1.0
	}
	age := now.Sub(r.IssuedAt)
	if age < 0 {
		age = 0
	}
	decay := math.Exp2(-age.Hours() / c.cfg.HalfLife.Hours())
	return w * decay
}

// receiptScore reduces the three performance metrics to one number.
func receiptScore(r contracts.ParticipationReceipt) float64 {
	return (r.Metrics.Timeliness + r.Metrics.Completeness + r.Metrics.Accuracy) / 3
}

func (c *Calculator) clamp(v float64) float64 {
	return math.Min(c.cfg.MaxScore, math.Max(c.cfg.MinScore, v))
}

// LevelFor maps a continuous score to the discrete trust tier.
func LevelFor(score float64) contracts.TrustLevel {
	switch {
	case score >= 0.90:
		return contracts.TrustExemplary
	case score >= 0.75:
		return contracts.TrustTrusted
	case score >= 0.50:
		return contracts.TrustStandard
	case score >= 0.25:
		return contracts.TrustWatch
	default:
		return contracts.TrustProbation
	}
}

// ValidationFor gates how much independent validation the agent's future
// operations require: higher trust, lighter validation.
func ValidationFor(level contracts.TrustLevel) contracts.ValidationLevel {
	switch level {
	case contracts.TrustExemplary:
		return contracts.ValidationMinimal
	case contracts.TrustTrusted:
		return contracts.ValidationStandard
	case contracts.TrustStandard:
		return contracts.ValidationElevated
	default:
		return contracts.ValidationFull
	}
}
