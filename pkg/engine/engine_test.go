package engine

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/store"
	"github.com/certen/wavs/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *store.BlobStore) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	blobs := store.NewBlobStore(db)
	eng, err := New(context.Background(), Config{Blobs: blobs, CacheCapacity: 8})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close(context.Background()) })
	return eng, blobs
}

func digestComponent(t *testing.T, blobs *store.BlobStore, wasm []byte, fuelLimit *uint64) (types.Component, types.Digest) {
	t.Helper()
	digest, err := blobs.Set(wasm)
	if err != nil {
		t.Fatalf("BlobStore.Set: %v", err)
	}
	c := types.Component{
		Source:      types.ComponentSource{Kind: types.SourceDigest, Digest: digest},
		Permissions: types.Permissions{HTTPHosts: types.PermissionNone},
		FuelLimit:   fuelLimit,
	}
	return c, digest
}

func TestEngineExecuteEchoRoundTrip(t *testing.T) {
	eng, blobs := newTestEngine(t)
	component, digest := digestComponent(t, blobs, echoModuleWASM(), nil)

	input := []byte("hello wavs")
	result, err := eng.Execute(context.Background(), component, digest, input, &HostContext{Permissions: component.Permissions})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(result.Output) != string(input) {
		t.Fatalf("expected echoed output %q, got %q", input, result.Output)
	}
}

func TestEngineExecuteOutOfFuel(t *testing.T) {
	eng, blobs := newTestEngine(t)
	limit := uint64(1)
	component, digest := digestComponent(t, blobs, echoModuleWASM(), &limit)

	_, err := eng.Execute(context.Background(), component, digest, []byte("x"), &HostContext{Permissions: component.Permissions})
	if err == nil {
		t.Fatalf("expected an OutOfFuel error, got nil")
	}
	if !wavserr.Is(err, wavserr.ResourceExhausted) {
		t.Fatalf("expected a ResourceExhausted error, got %v", err)
	}
}

func TestEngineExecuteKVAtomicIncrement(t *testing.T) {
	eng, blobs := newTestEngine(t)
	component, digest := digestComponent(t, blobs, kvIncrementModuleWASM(), nil)

	kvDB, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { kvDB.Close() })
	kv, err := store.NewKVStore(kvDB).Open("svc-1", "counters")
	if err != nil {
		t.Fatalf("KVStore.Open: %v", err)
	}
	host := &HostContext{Permissions: component.Permissions, KV: kv}

	result, err := eng.Execute(context.Background(), component, digest, nil, host)
	if err != nil {
		t.Fatalf("Execute (first): %v", err)
	}
	if len(result.Output) != 8 {
		t.Fatalf("expected an 8-byte counter, got %d bytes", len(result.Output))
	}
	if got := binary.LittleEndian.Uint64(result.Output); got != 1 {
		t.Fatalf("expected counter 1 after first execute, got %d", got)
	}

	result, err = eng.Execute(context.Background(), component, digest, nil, host)
	if err != nil {
		t.Fatalf("Execute (second): %v", err)
	}
	if got := binary.LittleEndian.Uint64(result.Output); got != 2 {
		t.Fatalf("expected counter 2 after second execute through the same KV context, got %d", got)
	}

	stored, err := kv.Read([]byte("ctr"))
	if err != nil {
		t.Fatalf("KV.Read: %v", err)
	}
	if got := binary.LittleEndian.Uint64(stored); got != 2 {
		t.Fatalf("expected the KV store itself to hold 2, got %d", got)
	}
}
