package store

import (
	"context"
	"sync"
	"time"

	"github.com/commonshold/core/pkg/contracts"
)

// MemoryPairStore keeps receipt pairs in memory, already split into
// owner-scoped views. Suitable for tests and single-node deployments.
type MemoryPairStore struct {
	mu      sync.RWMutex
	byOwner map[string][]contracts.ParticipationReceipt
}

func NewMemoryPairStore() *MemoryPairStore {
	return &MemoryPairStore{byOwner: make(map[string][]contracts.ParticipationReceipt)}
}

// StorePair files each half under its owner. The store never exposes one
// owner's half to the other.
func (s *MemoryPairStore) StorePair(_ context.Context, pair contracts.ReceiptPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner[pair.Provider.OwnerID] = append(s.byOwner[pair.Provider.OwnerID], pair.Provider)
	s.byOwner[pair.Receiver.OwnerID] = append(s.byOwner[pair.Receiver.OwnerID], pair.Receiver)
	return nil
}

// ListByOwner returns the owner's receipts issued inside [from, to]. Zero
// bounds are open.
func (s *MemoryPairStore) ListByOwner(_ context.Context, ownerID string, from, to time.Time) ([]contracts.ParticipationReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.ParticipationReceipt
	for _, r := range s.byOwner[ownerID] {
		if !from.IsZero() && r.IssuedAt.Before(from) {
			continue
		}
		if !to.IsZero() && r.IssuedAt.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
