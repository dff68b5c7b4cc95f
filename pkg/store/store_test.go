package store

import (
	"context"
	"testing"
	"time"

	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/engine"
	"github.com/commonshold/core/pkg/receipts"
	"github.com/commonshold/core/pkg/reputation"
	"github.com/commonshold/core/pkg/retirement"
)

var (
	_ receipts.PairStore       = (*MemoryPairStore)(nil)
	_ receipts.PairStore       = (*SQLitePairStore)(nil)
	_ receipts.PairStore       = (*PostgresPairStore)(nil)
	_ reputation.ReceiptSource = (*MemoryPairStore)(nil)
	_ engine.Registry          = (*ResourceRegistry)(nil)
	_ engine.SpecSource        = (*SpecRegistry)(nil)
	_ retirement.Sink          = (*ResourceRegistry)(nil)
)

func TestContentStoreDeduplicatesAndLinks(t *testing.T) {
	s := NewContentStore()

	h1, err := s.Put(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	h2, err := s.Put(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("key order must not change the address: %s vs %s", h1, h2)
	}
	if s.Len() != 1 {
		t.Fatalf("identical content must deduplicate, got %d blobs", s.Len())
	}

	if err := s.Link("latest", h1); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if got, ok := s.Resolve("latest"); !ok || got != h1 {
		t.Fatalf("Resolve returned %q %v", got, ok)
	}
	if err := s.Link("broken", "sha256:doesnotexist"); err == nil {
		t.Fatal("linking to a missing blob must fail")
	}
}

func TestResourceRegistryKeepsHistory(t *testing.T) {
	reg := NewResourceRegistry(nil)
	ctx := context.Background()

	res := contracts.Resource{
		ID: "res-1", SpecificationID: "spec-1", Quantity: 5,
		State: contracts.StateActive, Custodian: "alice",
	}
	if err := reg.Save(ctx, res); err != nil {
		t.Fatalf("Save: %v", err)
	}
	res.Quantity = 4
	if err := reg.Save(ctx, res); err != nil {
		t.Fatalf("Save: %v", err)
	}

	latest, err := reg.Resource(ctx, "res-1")
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	if latest.Quantity != 4 {
		t.Fatalf("latest snapshot wrong, got quantity %v", latest.Quantity)
	}

	hist := reg.History("res-1")
	if len(hist) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(hist))
	}
	first, err := reg.At(hist[0])
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if first.Quantity != 5 {
		t.Fatalf("history must preserve the original snapshot, got %v", first.Quantity)
	}

	if _, err := reg.Resource(ctx, "ghost"); err == nil {
		t.Fatal("unknown resource must return an error")
	}
}

func TestResourceRegistryRetiresIntoDisposalSink(t *testing.T) {
	reg := NewResourceRegistry(nil)
	ctx := context.Background()

	res := contracts.Resource{
		ID: "res-1", SpecificationID: "spec-1", Quantity: 5,
		State: contracts.StateActive, Custodian: "alice",
	}
	if err := reg.Save(ctx, res); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := reg.Retire(ctx, "res-1", "commons:disposal"); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	latest, err := reg.Resource(ctx, "res-1")
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	if latest.State != contracts.StateRetired {
		t.Fatalf("expected Retired, got %s", latest.State)
	}
	if latest.Custodian != "commons:disposal" {
		t.Fatalf("retired resource must move to the disposal custodian, got %s", latest.Custodian)
	}

	// The Active snapshot stays in the history.
	if hist := reg.History("res-1"); len(hist) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(hist))
	}

	// Idempotent; no third snapshot appears.
	if err := reg.Retire(ctx, "res-1", "commons:disposal"); err != nil {
		t.Fatalf("second Retire: %v", err)
	}
	if hist := reg.History("res-1"); len(hist) != 2 {
		t.Fatalf("repeat retirement must not append, got %d snapshots", len(hist))
	}

	if err := reg.Retire(ctx, "ghost", "commons:disposal"); err == nil {
		t.Fatal("retiring an unknown resource must fail")
	}
}

func TestSpecRegistrySemverSupersession(t *testing.T) {
	reg := NewSpecRegistry()

	v1, err := reg.Register(contracts.ResourceSpecification{
		Name: "drill", Version: "1.0.0",
		Rules: []contracts.GovernanceRule{
			{Type: contracts.RuleUsageLimit,
				Params: map[string]any{"max_per_window": 3, "window_seconds": 3600}},
		},
	})
	if err != nil {
		t.Fatalf("Register v1: %v", err)
	}

	// Same or lower version must be refused.
	if _, err := reg.Register(contracts.ResourceSpecification{Name: "drill", Version: "1.0.0"}); err == nil {
		t.Fatal("re-registering the same version must fail")
	}
	if _, err := reg.Register(contracts.ResourceSpecification{Name: "drill", Version: "0.9.0"}); err == nil {
		t.Fatal("registering a lower version must fail")
	}

	v2, err := reg.Register(contracts.ResourceSpecification{Name: "drill", Version: "1.1.0"})
	if err != nil {
		t.Fatalf("Register v2: %v", err)
	}

	current, err := reg.Current("drill")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.ID != v2.ID {
		t.Fatalf("current must be v2, got %s", current.ID)
	}

	// The superseded version stays resolvable for existing resources.
	old, err := reg.Spec(context.Background(), v1.ID)
	if err != nil {
		t.Fatalf("superseded spec must stay resolvable: %v", err)
	}
	if old.Version != "1.0.0" {
		t.Fatalf("wrong superseded version: %s", old.Version)
	}
}

func TestSpecRegistryRejectsBadRuleParams(t *testing.T) {
	reg := NewSpecRegistry()
	_, err := reg.Register(contracts.ResourceSpecification{
		Name: "drill", Version: "1.0.0",
		Rules: []contracts.GovernanceRule{
			{Type: contracts.RuleUsageLimit,
				Params: map[string]any{"max_per_window": "three"}},
		},
	})
	if err == nil {
		t.Fatal("schema-invalid rule params must be rejected at attach time")
	}
}

func TestSpecRegistryRejectsNonSemver(t *testing.T) {
	reg := NewSpecRegistry()
	if _, err := reg.Register(contracts.ResourceSpecification{Name: "drill", Version: "latest"}); err == nil {
		t.Fatal("non-semver version must be rejected")
	}
}

func TestMemoryPairStoreOwnerScoping(t *testing.T) {
	s := NewMemoryPairStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pair := contracts.ReceiptPair{
		Provider: contracts.ParticipationReceipt{
			ID: "r-a", OwnerID: "alice", Counterparty: "bob",
			Claim: contracts.ClaimCustodyTransfer, EventID: "ev-1", IssuedAt: now,
		},
		Receiver: contracts.ParticipationReceipt{
			ID: "r-b", OwnerID: "bob", Counterparty: "alice",
			Claim: contracts.ClaimCustodyAcceptance, EventID: "ev-1", IssuedAt: now,
		},
	}
	if err := s.StorePair(ctx, pair); err != nil {
		t.Fatalf("StorePair: %v", err)
	}

	mine, err := s.ListByOwner(ctx, "alice", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "r-a" {
		t.Fatalf("alice must see exactly her half, got %+v", mine)
	}

	early, err := s.ListByOwner(ctx, "alice", time.Time{}, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(early) != 0 {
		t.Fatalf("time window must filter, got %d receipts", len(early))
	}
}
