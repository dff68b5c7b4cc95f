package contracts

import "time"

// ClaimType categorizes the interaction a participation receipt attests to.
type ClaimType string

const (
	ClaimContribution         ClaimType = "CONTRIBUTION"
	ClaimValidation           ClaimType = "VALIDATION"
	ClaimCustodyTransfer      ClaimType = "CUSTODY_TRANSFER"
	ClaimCustodyAcceptance    ClaimType = "CUSTODY_ACCEPTANCE"
	ClaimServiceCommitment    ClaimType = "SERVICE_COMMITMENT"
	ClaimServiceFulfillment   ClaimType = "SERVICE_FULFILLMENT"
	ClaimDisputeParticipation ClaimType = "DISPUTE_PARTICIPATION"
	ClaimLifecycleDeclaration ClaimType = "LIFECYCLE_DECLARATION"
	ClaimLifecycleValidation  ClaimType = "LIFECYCLE_VALIDATION"
)

// PerformanceMetrics grade one side of an interaction, each in [0,1].
type PerformanceMetrics struct {
	Timeliness   float64 `json:"timeliness"`
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
}

// BilateralSignature is the tamper-evidence attached to a receipt. The
// signature covers the content hash, both identities, the claim type and the
// signing timestamp, bound to a role-specific derived context so the same
// transaction bytes cannot be replayed across roles or counterparties.
type BilateralSignature struct {
	ContentHash  string    `json:"content_hash"`
	SignerKey    string    `json:"signer_key"`
	Signature    string    `json:"signature"`
	SigningRole  string    `json:"signing_role"`
	SignedAt     time.Time `json:"signed_at"`
}

// ParticipationReceipt is one owner's half of a bilateral interaction record.
// Receipts are created in pairs, never mutated, and visible only to their
// owner. They are the permanent reputation ledger entry.
type ParticipationReceipt struct {
	ID           string             `json:"id"`
	OwnerID      string             `json:"owner_id"`
	Counterparty string             `json:"counterparty"`
	Claim        ClaimType          `json:"claim"`
	CommitmentID string             `json:"commitment_id,omitempty"`
	EventID      string             `json:"event_id"`
	Metrics      PerformanceMetrics `json:"metrics"`
	Signature    BilateralSignature `json:"signature"`
	Context      string             `json:"context,omitempty"`
	IssuedAt     time.Time          `json:"issued_at"`
}

// ReceiptPair is the atomic unit of issuance: both halves or neither.
type ReceiptPair struct {
	Provider ParticipationReceipt `json:"provider"`
	Receiver ParticipationReceipt `json:"receiver"`
}
