package receipts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/crypto"
)

type testKeyRing map[string]crypto.Signer

func (k testKeyRing) SignerFor(agentID string) (crypto.Signer, error) {
	s, ok := k[agentID]
	if !ok {
		return nil, fmt.Errorf("no key registered for %s", agentID)
	}
	return s, nil
}

type fakeStore struct {
	pairs   []contracts.ReceiptPair
	failing bool
}

func (f *fakeStore) StorePair(_ context.Context, pair contracts.ReceiptPair) error {
	if f.failing {
		return errors.New("disk full")
	}
	f.pairs = append(f.pairs, pair)
	return nil
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID string, from, to time.Time) ([]contracts.ParticipationReceipt, error) {
	var out []contracts.ParticipationReceipt
	for _, p := range f.pairs {
		for _, half := range []contracts.ParticipationReceipt{p.Provider, p.Receiver} {
			if half.OwnerID == ownerID {
				out = append(out, half)
			}
		}
	}
	return out, nil
}

func newRing(t *testing.T, agents ...string) testKeyRing {
	t.Helper()
	ring := testKeyRing{}
	for _, a := range agents {
		s, err := crypto.NewEd25519Signer(a)
		if err != nil {
			t.Fatal(err)
		}
		ring[a] = s
	}
	return ring
}

func transferEvent() contracts.EconomicEvent {
	return contracts.EconomicEvent{
		ID:         "evt-1",
		Action:     contracts.ActionTransfer,
		Provider:   "agent-a",
		Receiver:   "agent-b",
		ResourceID: "res-1",
		Timestamp:  time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func goodMetrics() contracts.PerformanceMetrics {
	return contracts.PerformanceMetrics{Timeliness: 0.9, Completeness: 1.0, Accuracy: 0.95}
}

func TestIssueMintsSwappedPair(t *testing.T) {
	store := &fakeStore{}
	issuer := NewIssuer(newRing(t, "agent-a", "agent-b"), store)

	pair, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: goodMetrics(),
		ReceiverMetrics: goodMetrics(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if pair.Provider.EventID != pair.Receiver.EventID {
		t.Fatal("both halves must reference the same event")
	}
	if pair.Provider.OwnerID != "agent-a" || pair.Provider.Counterparty != "agent-b" {
		t.Fatalf("provider half mis-attributed: %+v", pair.Provider)
	}
	if pair.Receiver.OwnerID != "agent-b" || pair.Receiver.Counterparty != "agent-a" {
		t.Fatalf("receiver half mis-attributed: %+v", pair.Receiver)
	}
	if pair.Provider.Claim != contracts.ClaimCustodyTransfer ||
		pair.Receiver.Claim != contracts.ClaimCustodyAcceptance {
		t.Fatalf("unexpected claims %s / %s", pair.Provider.Claim, pair.Receiver.Claim)
	}
	if len(store.pairs) != 1 {
		t.Fatalf("expected exactly one stored pair, got %d", len(store.pairs))
	}
}

func TestPairRoundTripVerifies(t *testing.T) {
	issuer := NewIssuer(newRing(t, "agent-a", "agent-b"), &fakeStore{})
	pair, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: goodMetrics(),
		ReceiverMetrics: goodMetrics(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyPair(*pair, DefaultTolerance); err != nil {
		t.Fatalf("freshly issued pair must verify: %v", err)
	}
}

func TestTamperedReceiptFailsVerification(t *testing.T) {
	issuer := NewIssuer(newRing(t, "agent-a", "agent-b"), &fakeStore{})
	pair, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: goodMetrics(),
		ReceiverMetrics: goodMetrics(),
	})
	if err != nil {
		t.Fatal(err)
	}

	tampered := pair.Provider
	tampered.Counterparty = "agent-c"
	ok, err := VerifyReceipt(tampered)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("receipt with altered counterparty must not verify")
	}
}

func TestReceiptNotValidAcrossRoles(t *testing.T) {
	issuer := NewIssuer(newRing(t, "agent-a", "agent-b"), &fakeStore{})
	pair, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: goodMetrics(),
		ReceiverMetrics: goodMetrics(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// A provider signature replayed under the receiver role must fail the
	// context reconstruction.
	replayed := pair.Provider
	replayed.Signature.SigningRole = "receiver"
	ok, err := VerifyReceipt(replayed)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("signature replayed across roles must not verify")
	}
}

func TestIssueAtomicWhenKeyMissing(t *testing.T) {
	store := &fakeStore{}
	// Receiver has no registered key: the whole issuance must fail.
	issuer := NewIssuer(newRing(t, "agent-a"), store)

	_, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: goodMetrics(),
		ReceiverMetrics: goodMetrics(),
	})
	if err == nil {
		t.Fatal("expected issuance failure")
	}
	if len(store.pairs) != 0 {
		t.Fatal("no partial pair may be stored")
	}
}

func TestIssueAtomicWhenStoreFails(t *testing.T) {
	store := &fakeStore{failing: true}
	issuer := NewIssuer(newRing(t, "agent-a", "agent-b"), store)

	_, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: goodMetrics(),
		ReceiverMetrics: goodMetrics(),
	})
	if err == nil {
		t.Fatal("store failure must fail issuance")
	}
}

func TestIssueRejectsOutOfRangeMetrics(t *testing.T) {
	issuer := NewIssuer(newRing(t, "agent-a", "agent-b"), &fakeStore{})
	bad := goodMetrics()
	bad.Accuracy = 1.7
	_, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: bad,
		ReceiverMetrics: goodMetrics(),
	})
	if err == nil {
		t.Fatal("metrics outside [0,1] must be rejected")
	}
}

func TestValidatePairTimestampTolerance(t *testing.T) {
	issuer := NewIssuer(newRing(t, "agent-a", "agent-b"), &fakeStore{})
	pair, err := issuer.Issue(context.Background(), IssueRequest{
		Event:           transferEvent(),
		ProviderMetrics: goodMetrics(),
		ReceiverMetrics: goodMetrics(),
	})
	if err != nil {
		t.Fatal(err)
	}

	skewed := *pair
	skewed.Receiver.Signature.SignedAt = skewed.Receiver.Signature.SignedAt.Add(10 * time.Minute)
	err = ValidatePair(skewed, DefaultTolerance)
	if !errors.Is(err, contracts.ErrReceiptPairInconsistent) {
		t.Fatalf("expected ErrReceiptPairInconsistent, got %v", err)
	}
}
