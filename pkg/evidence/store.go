// Package evidence archives the blobs referenced by retirement declarations
// and validations: inspection photos, disposal manifests, assessment
// reports. Blobs are content-addressed by SHA-256 so a declaration's
// evidence reference can be verified against what was actually archived.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Store is the archival interface. Put is idempotent: archiving the same
// bytes twice returns the same address. Evidence is never deleted; a
// finalized retirement must stay auditable.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	Exists(ctx context.Context, hash string) (bool, error)
}

// Address computes the content address for a blob.
func Address(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func rawHash(hash string) (string, error) {
	raw, ok := strings.CutPrefix(hash, "sha256:")
	if !ok || raw == "" {
		return "", fmt.Errorf("invalid evidence hash %q", hash)
	}
	return raw, nil
}

// MemoryStore holds evidence in memory for tests and single-node use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	hash := Address(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[hash]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.blobs[hash] = stored
	}
	return hash, nil
}

func (s *MemoryStore) Get(_ context.Context, hash string) ([]byte, error) {
	if _, err := rawHash(hash); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[hash]
	if !ok {
		return nil, fmt.Errorf("evidence %s not archived", hash)
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (s *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	if _, err := rawHash(hash); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[hash]
	return ok, nil
}
