// Package store holds the persistence layer: a content-addressed blob
// store, the resource registry on top of it, the specification registry
// with semver supersession, and the owner-scoped receipt stores (memory,
// SQLite, Postgres).
package store

import (
	"fmt"
	"sync"

	"github.com/commonshold/core/pkg/canonicalize"
)

// ContentStore is an append-only, content-addressed blob store. A blob's
// address is the sha256 of its canonical JSON, so identical snapshots
// deduplicate and a stored blob can never change under its address.
// Mutable names are modeled as links resolved at read time.
type ContentStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	links map[string]string
}

func NewContentStore() *ContentStore {
	return &ContentStore{
		blobs: make(map[string][]byte),
		links: make(map[string]string),
	}
}

// Put canonicalizes and stores the value, returning its address.
func (s *ContentStore) Put(v any) (string, error) {
	canonical, err := canonicalize.JCS(v)
	if err != nil {
		return "", fmt.Errorf("cannot canonicalize blob: %w", err)
	}
	hash := "sha256:" + canonicalize.HashBytes(canonical)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[hash]; !ok {
		s.blobs[hash] = canonical
	}
	return hash, nil
}

// Get returns the blob at the address, or nil if absent.
func (s *ContentStore) Get(hash string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[hash]
	if !ok {
		return nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out
}

// Link points a mutable name at an address. Re-linking a name is how the
// registry advances "latest" without touching history.
func (s *ContentStore) Link(name, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[hash]; !ok {
		return fmt.Errorf("cannot link %s: no blob at %s", name, hash)
	}
	s.links[name] = hash
	return nil
}

// Resolve follows a name to its current address.
func (s *ContentStore) Resolve(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.links[name]
	return hash, ok
}

// Len reports how many distinct blobs are held.
func (s *ContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
