// Package events records the immutable audit trail: one EconomicEvent per
// approved transition, appended to a hash-chained ledger. Entries are never
// mutated or deleted.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commonshold/core/pkg/canonicalize"
	"github.com/commonshold/core/pkg/contracts"
)

// ChainEntry is one hash-chained slot in the event ledger.
type ChainEntry struct {
	Sequence    uint64                  `json:"sequence"`
	ContentHash string                  `json:"content_hash"`
	PrevHash    string                  `json:"prev_hash"`
	Event       contracts.EconomicEvent `json:"event"`
}

// Recorder appends events to an in-memory hash chain. Durable replication
// happens at the content-addressed store boundary; the chain here is the
// tamper-evidence for the node's own view.
type Recorder struct {
	mu       sync.RWMutex
	entries  []ChainEntry
	headHash string
	clock    func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{
		entries:  make([]ChainEntry, 0),
		headHash: "genesis",
		clock:    time.Now,
	}
}

// WithClock overrides clock for testing.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	r.clock = clock
	return r
}

// Record builds the EconomicEvent for an approved transition and appends it.
// provider/receiver follow the action: for transfers the requesting agent is
// the provider and the target custodian the receiver; otherwise the agent
// acts against the commons itself.
func (r *Recorder) Record(req contracts.TransitionRequest, quantityDelta float64) (*contracts.EconomicEvent, error) {
	receiver := req.Context.TargetCustodian
	if receiver == "" {
		receiver = req.Resource.Custodian
	}

	event := contracts.EconomicEvent{
		ID:            uuid.New().String(),
		Action:        req.Action,
		Provider:      req.AgentID,
		Receiver:      receiver,
		ResourceID:    req.Resource.ID,
		QuantityDelta: quantityDelta,
		Timestamp:     r.clock(),
		Note:          req.Context.Note,
	}

	if err := r.append(event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *Recorder) append(event contracts.EconomicEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := uint64(len(r.entries)) + 1
	contentHash, err := entryHash(seq, r.headHash, event)
	if err != nil {
		return err
	}

	r.entries = append(r.entries, ChainEntry{
		Sequence:    seq,
		ContentHash: contentHash,
		PrevHash:    r.headHash,
		Event:       event,
	})
	r.headHash = contentHash
	return nil
}

func entryHash(seq uint64, prevHash string, event contracts.EconomicEvent) (string, error) {
	hashInput := struct {
		Seq      uint64                  `json:"seq"`
		Prev     string                  `json:"prev"`
		Event    contracts.EconomicEvent `json:"event"`
	}{seq, prevHash, event}

	digest, err := canonicalize.CanonicalHash(hashInput)
	if err != nil {
		return "", fmt.Errorf("failed to hash ledger entry: %w", err)
	}
	return "sha256:" + digest, nil
}

// Get retrieves an entry by sequence number.
func (r *Recorder) Get(seq uint64) (*ChainEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if seq == 0 || seq > uint64(len(r.entries)) {
		return nil, fmt.Errorf("ledger entry %d: %w", seq, contracts.ErrNotFound)
	}
	entry := r.entries[seq-1]
	return &entry, nil
}

// ByResource returns every event touching a resource, oldest first.
func (r *Recorder) ByResource(resourceID string) []contracts.EconomicEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []contracts.EconomicEvent
	for _, e := range r.entries {
		if e.Event.ResourceID == resourceID {
			out = append(out, e.Event)
		}
	}
	return out
}

// Custodians returns every identity that has ever provided or received the
// resource, which is the notification set for retirement declarations.
func (r *Recorder) Custodians(resourceID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, e := range r.entries {
		if e.Event.ResourceID != resourceID {
			continue
		}
		for _, id := range []string{e.Event.Provider, e.Event.Receiver} {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// Head returns the current head hash.
func (r *Recorder) Head() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.headHash
}

// Length returns the number of entries.
func (r *Recorder) Length() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Verify walks the whole chain and recomputes every hash.
func (r *Recorder) Verify() (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prevHash := "genesis"
	for i, entry := range r.entries {
		if entry.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prevHash, entry.PrevHash)
		}
		computed, err := entryHash(entry.Sequence, entry.PrevHash, entry.Event)
		if err != nil {
			return false, fmt.Sprintf("failed to rehash entry %d", i+1)
		}
		if computed != entry.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prevHash = entry.ContentHash
	}
	return true, "chain verified"
}
