package retirement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/receipts"
)

// DisputeSignaler turns a false-declaration finding into a dispute receipt
// pair: the declarer's half carries zeroed performance metrics, permanently
// weighing on its reputation; the reviewer's half attests participation.
type DisputeSignaler struct {
	issuer *receipts.Issuer
}

func NewDisputeSignaler(issuer *receipts.Issuer) *DisputeSignaler {
	return &DisputeSignaler{issuer: issuer}
}

func (d *DisputeSignaler) SignalFalseDeclaration(ctx context.Context, declarer, reviewer, resourceID, reason string) error {
	event := contracts.EconomicEvent{
		ID:         uuid.New().String(),
		Action:     contracts.ActionDeclareEndOfLife,
		Provider:   declarer,
		Receiver:   reviewer,
		ResourceID: resourceID,
		Timestamp:  time.Now(),
		Note:       "false end-of-life declaration: " + reason,
	}
	_, err := d.issuer.Issue(ctx, receipts.IssueRequest{
		Event:         event,
		ProviderClaim: contracts.ClaimDisputeParticipation,
		ReceiverClaim: contracts.ClaimDisputeParticipation,
		// The declarer earns the floor; the reviewer's participation is
		// recorded at full marks.
		ProviderMetrics: contracts.PerformanceMetrics{},
		ReceiverMetrics: contracts.PerformanceMetrics{Timeliness: 1, Completeness: 1, Accuracy: 1},
		Context:         "dispute review of resource " + resourceID,
	})
	if err != nil {
		return fmt.Errorf("dispute receipts not issued: %w", err)
	}
	return nil
}
