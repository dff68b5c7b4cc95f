package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/commonshold/core/pkg/contracts"
)

// ResourceRegistry keeps the authoritative resource snapshots in the
// content store. Every Save appends a new addressed snapshot and advances
// the resource's link, so the full snapshot history stays reachable.
type ResourceRegistry struct {
	mu      sync.RWMutex
	content *ContentStore
	history map[string][]string
}

func NewResourceRegistry(content *ContentStore) *ResourceRegistry {
	if content == nil {
		content = NewContentStore()
	}
	return &ResourceRegistry{
		content: content,
		history: make(map[string][]string),
	}
}

func resourceLink(id string) string { return "resource/" + id }

// Save stores the snapshot and advances the latest-link.
func (r *ResourceRegistry) Save(_ context.Context, res contracts.Resource) error {
	if res.ID == "" {
		return fmt.Errorf("resource has no id")
	}
	hash, err := r.content.Put(res)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.content.Link(resourceLink(res.ID), hash); err != nil {
		return err
	}
	hist := r.history[res.ID]
	if len(hist) == 0 || hist[len(hist)-1] != hash {
		r.history[res.ID] = append(hist, hash)
	}
	return nil
}

// Resource returns the latest snapshot for the id.
func (r *ResourceRegistry) Resource(_ context.Context, id string) (*contracts.Resource, error) {
	hash, ok := r.content.Resolve(resourceLink(id))
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", id, contracts.ErrNotFound)
	}
	blob := r.content.Get(hash)
	if blob == nil {
		return nil, fmt.Errorf("resource %s: snapshot %s missing", id, hash)
	}
	var res contracts.Resource
	if err := json.Unmarshal(blob, &res); err != nil {
		return nil, fmt.Errorf("resource %s: corrupt snapshot: %w", id, err)
	}
	return &res, nil
}

// History returns the snapshot addresses for a resource, oldest first.
func (r *ResourceRegistry) History(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hist := r.history[id]
	out := make([]string, len(hist))
	copy(out, hist)
	return out
}

// Retire appends the terminal snapshot: state Retired, custody with the
// disposal custodian. The retirement coordinator calls this once a
// declaration finalizes. Retiring an already retired resource is a no-op.
func (r *ResourceRegistry) Retire(ctx context.Context, resourceID, disposalCustodian string) error {
	res, err := r.Resource(ctx, resourceID)
	if err != nil {
		return err
	}
	if res.State == contracts.StateRetired {
		return nil
	}
	res.State = contracts.StateRetired
	res.Custodian = disposalCustodian
	return r.Save(ctx, *res)
}

// At returns the snapshot stored under a specific address.
func (r *ResourceRegistry) At(hash string) (*contracts.Resource, error) {
	blob := r.content.Get(hash)
	if blob == nil {
		return nil, fmt.Errorf("snapshot %s: %w", hash, contracts.ErrNotFound)
	}
	var res contracts.Resource
	if err := json.Unmarshal(blob, &res); err != nil {
		return nil, fmt.Errorf("snapshot %s: corrupt: %w", hash, err)
	}
	return &res, nil
}
