package evidence

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	blob := []byte("disposal manifest for res-001")
	hash, err := s.Put(ctx, blob)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if hash != Address(blob) {
		t.Fatalf("address mismatch: %s", hash)
	}

	again, err := s.Put(ctx, blob)
	if err != nil || again != hash {
		t.Fatalf("Put must be idempotent: %s %v", again, err)
	}

	got, err := s.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("blob corrupted: %q", got)
	}

	ok, err := s.Exists(ctx, hash)
	if err != nil || !ok {
		t.Fatalf("Exists: %v %v", ok, err)
	}
}

func TestMemoryStoreRejectsBadHash(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "md5:abc"); err == nil {
		t.Fatal("non-sha256 hash must be rejected")
	}
	if _, err := s.Get(ctx, "sha256:"); err == nil {
		t.Fatal("empty hash must be rejected")
	}
	if _, err := s.Get(ctx, Address([]byte("never stored"))); err == nil {
		t.Fatal("missing blob must return an error")
	}
}
