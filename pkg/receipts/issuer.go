// Package receipts mints private participation receipts: two bilaterally
// signed records per completed interaction, one per counterparty. Issuance
// is atomic: both halves are persisted or neither is.
package receipts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commonshold/core/pkg/canonicalize"
	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/crypto"
)

// KeyRing resolves the signing key held for an agent. Key custody itself is
// the wallet's problem; the issuer only ever sees the signer handle.
type KeyRing interface {
	SignerFor(agentID string) (crypto.Signer, error)
}

// PairStore persists both halves of a pair atomically. Each half is visible
// only to its owner; owner scoping is enforced by the store implementation.
type PairStore interface {
	StorePair(ctx context.Context, pair contracts.ReceiptPair) error
	ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]contracts.ParticipationReceipt, error)
}

// IssueRequest describes one completed interaction. Claims default to the
// action's mapping in ClaimsFor; dispute flows override them explicitly.
type IssueRequest struct {
	Event           contracts.EconomicEvent
	CommitmentID    string
	ProviderClaim   contracts.ClaimType
	ReceiverClaim   contracts.ClaimType
	ProviderMetrics contracts.PerformanceMetrics
	ReceiverMetrics contracts.PerformanceMetrics
	Context         string
}

// IssueMetrics counts minted pairs; nil disables instrumentation.
type IssueMetrics interface {
	ReceiptIssued(ctx context.Context, claim contracts.ClaimType)
}

// Issuer builds, cross-validates and persists receipt pairs.
type Issuer struct {
	keys      KeyRing
	store     PairStore
	metrics   IssueMetrics
	tolerance time.Duration
	clock     func() time.Time
}

// DefaultTolerance bounds the skew allowed between the two signing
// timestamps of one pair.
const DefaultTolerance = 5 * time.Minute

func NewIssuer(keys KeyRing, store PairStore) *Issuer {
	return &Issuer{
		keys:      keys,
		store:     store,
		tolerance: DefaultTolerance,
		clock:     time.Now,
	}
}

// WithTolerance overrides the pair timestamp tolerance.
func (i *Issuer) WithTolerance(d time.Duration) *Issuer {
	i.tolerance = d
	return i
}

// WithMetrics attaches the issuance counter.
func (i *Issuer) WithMetrics(m IssueMetrics) *Issuer {
	i.metrics = m
	return i
}

// WithClock overrides the clock for deterministic testing.
func (i *Issuer) WithClock(clock func() time.Time) *Issuer {
	i.clock = clock
	return i
}

// Issue mints the pair for a completed interaction. On any failure both
// halves are discarded; nothing partial is ever stored.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*contracts.ReceiptPair, error) {
	providerClaim, receiverClaim := ClaimsFor(req.Event.Action)
	if req.ProviderClaim != "" {
		providerClaim = req.ProviderClaim
	}
	if req.ReceiverClaim != "" {
		receiverClaim = req.ReceiverClaim
	}

	contentHash, err := canonicalize.CanonicalHash(req.Event)
	if err != nil {
		return nil, fmt.Errorf("cannot hash interaction: %w", err)
	}

	now := i.clock()
	provider, err := i.buildReceipt(req, contentHash, req.Event.Provider, req.Event.Receiver,
		providerClaim, "provider", req.ProviderMetrics, now)
	if err != nil {
		return nil, err
	}
	receiver, err := i.buildReceipt(req, contentHash, req.Event.Receiver, req.Event.Provider,
		receiverClaim, "receiver", req.ReceiverMetrics, now)
	if err != nil {
		return nil, err
	}

	pair := contracts.ReceiptPair{Provider: *provider, Receiver: *receiver}
	if err := ValidatePair(pair, i.tolerance); err != nil {
		return nil, err
	}
	if err := i.store.StorePair(ctx, pair); err != nil {
		return nil, fmt.Errorf("pair not persisted: %w", err)
	}
	if i.metrics != nil {
		i.metrics.ReceiptIssued(ctx, providerClaim)
	}
	return &pair, nil
}

func (i *Issuer) buildReceipt(req IssueRequest, contentHash, ownerID, counterparty string,
	claim contracts.ClaimType, role string, metrics contracts.PerformanceMetrics,
	now time.Time) (*contracts.ParticipationReceipt, error) {

	if err := validateMetrics(metrics); err != nil {
		return nil, fmt.Errorf("receipt for %s: %w", ownerID, err)
	}

	signer, err := i.keys.SignerFor(ownerID)
	if err != nil {
		return nil, fmt.Errorf("no signing key for %s: %w", ownerID, err)
	}

	sig, err := signReceipt(signer, contentHash, ownerID, counterparty, claim, role, now)
	if err != nil {
		return nil, err
	}

	return &contracts.ParticipationReceipt{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Counterparty: counterparty,
		Claim:        claim,
		CommitmentID: req.CommitmentID,
		EventID:      req.Event.ID,
		Metrics:      metrics,
		Signature:    *sig,
		Context:      req.Context,
		IssuedAt:     now,
	}, nil
}

// signedPayload is what the bilateral signature actually covers. The
// timestamp inside makes replay of an old signature detectable.
type signedPayload struct {
	ContentHash  string `json:"content_hash"`
	Signer       string `json:"signer"`
	Counterparty string `json:"counterparty"`
	Claim        string `json:"claim"`
	SignedAt     string `json:"signed_at"`
}

func signReceipt(signer crypto.Signer, contentHash, ownerID, counterparty string,
	claim contracts.ClaimType, role string, now time.Time) (*contracts.BilateralSignature, error) {

	payload, err := canonicalize.JCS(signedPayload{
		ContentHash:  contentHash,
		Signer:       ownerID,
		Counterparty: counterparty,
		Claim:        string(claim),
		SignedAt:     now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot canonicalize signing payload: %w", err)
	}

	tag, err := crypto.SigningContext(string(claim), role, ownerID, counterparty)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(crypto.BindContext(tag, payload))
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	return &contracts.BilateralSignature{
		ContentHash: contentHash,
		SignerKey:   signer.PublicKey(),
		Signature:   sig,
		SigningRole: role,
		SignedAt:    now,
	}, nil
}

// VerifyReceipt reconstructs the signing context and payload and checks the
// signature against the embedded public key. Any altered byte fails.
func VerifyReceipt(r contracts.ParticipationReceipt) (bool, error) {
	payload, err := canonicalize.JCS(signedPayload{
		ContentHash:  r.Signature.ContentHash,
		Signer:       r.OwnerID,
		Counterparty: r.Counterparty,
		Claim:        string(r.Claim),
		SignedAt:     r.Signature.SignedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return false, err
	}
	tag, err := crypto.SigningContext(string(r.Claim), r.Signature.SigningRole, r.OwnerID, r.Counterparty)
	if err != nil {
		return false, err
	}
	return crypto.Verify(r.Signature.SignerKey, r.Signature.Signature, crypto.BindContext(tag, payload))
}

func validateMetrics(m contracts.PerformanceMetrics) error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"timeliness", m.Timeliness},
		{"completeness", m.Completeness},
		{"accuracy", m.Accuracy},
	} {
		if v.value < 0 || v.value > 1 {
			return fmt.Errorf("metric %s out of range: %v", v.name, v.value)
		}
	}
	return nil
}
