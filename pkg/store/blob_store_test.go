package store

import (
	"testing"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/types"
)

func wasmBytes(extra ...byte) []byte {
	b := append([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, extra...)
	return b
}

func TestBlobStoreSetGetRoundTrip(t *testing.T) {
	s := NewBlobStore(newTestDB(t))
	b := wasmBytes('x', 'y', 'z')

	digest, err := s.Set(b)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(digest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(b) {
		t.Fatalf("expected round-tripped bytes to match")
	}
}

func TestBlobStoreSetRejectsNonWasm(t *testing.T) {
	s := NewBlobStore(newTestDB(t))
	_, err := s.Set([]byte("not a wasm component"))
	if err == nil {
		t.Fatalf("expected an error for non-wasm bytes")
	}
	if !wavserr.Is(err, wavserr.InvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestBlobStoreSetIsContentAddressed(t *testing.T) {
	s := NewBlobStore(newTestDB(t))
	b := wasmBytes('a')

	d1, err := s.Set(b)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	d2, err := s.Set(b)
	if err != nil {
		t.Fatalf("Set (again): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected identical digests for identical bytes")
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected storing identical bytes twice to dedupe, got %d entries", len(list))
	}
}

func TestBlobStoreGetMissingReturnsNotFound(t *testing.T) {
	s := NewBlobStore(newTestDB(t))
	_, err := s.Get(types.DigestOf([]byte("never stored")))
	if !wavserr.Is(err, wavserr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
