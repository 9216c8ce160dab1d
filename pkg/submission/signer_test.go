package submission

import (
	"testing"

	"github.com/certen/wavs/pkg/types"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestSignerPoolAssignsMonotonicIndices(t *testing.T) {
	pool, err := NewSignerPool(testMnemonic)
	if err != nil {
		t.Fatalf("NewSignerPool: %v", err)
	}

	svcA := types.ServiceID{0x01}
	svcB := types.ServiceID{0x02}

	signerA, err := pool.AddService(svcA)
	if err != nil {
		t.Fatalf("AddService A: %v", err)
	}
	signerB, err := pool.AddService(svcB)
	if err != nil {
		t.Fatalf("AddService B: %v", err)
	}
	if signerA.Address == signerB.Address {
		t.Fatalf("expected distinct addresses for distinct services")
	}
}

func TestSignerPoolAddServiceIsIdempotent(t *testing.T) {
	pool, err := NewSignerPool(testMnemonic)
	if err != nil {
		t.Fatalf("NewSignerPool: %v", err)
	}
	svc := types.ServiceID{0x03}

	s1, err := pool.AddService(svc)
	if err != nil {
		t.Fatalf("AddService (first): %v", err)
	}
	s2, err := pool.AddService(svc)
	if err != nil {
		t.Fatalf("AddService (second): %v", err)
	}
	if s1.Address != s2.Address {
		t.Fatalf("expected re-adding the same service to return the same signer")
	}
}

func TestSignerPoolDerivationIsDeterministic(t *testing.T) {
	svc := types.ServiceID{0x04}

	pool1, err := NewSignerPool(testMnemonic)
	if err != nil {
		t.Fatalf("NewSignerPool (1): %v", err)
	}
	pool2, err := NewSignerPool(testMnemonic)
	if err != nil {
		t.Fatalf("NewSignerPool (2): %v", err)
	}

	s1, err := pool1.AddService(svc)
	if err != nil {
		t.Fatalf("AddService (pool1): %v", err)
	}
	s2, err := pool2.AddService(svc)
	if err != nil {
		t.Fatalf("AddService (pool2): %v", err)
	}
	if s1.Address != s2.Address {
		t.Fatalf("expected the same mnemonic to derive the same first address across pool instances")
	}
}

func TestSigningDigestDiffersByKind(t *testing.T) {
	envelope := types.Envelope{
		EventID:  types.EventID{0xAA},
		Ordering: types.OrderingFromUint64(1),
		Payload:  []byte("hello"),
	}

	rawDigest, err := SigningDigest(envelope, types.SignatureRaw)
	if err != nil {
		t.Fatalf("SigningDigest(raw): %v", err)
	}
	eip191Digest, err := SigningDigest(envelope, types.SignatureEIP191)
	if err != nil {
		t.Fatalf("SigningDigest(eip191): %v", err)
	}
	if rawDigest == eip191Digest {
		t.Fatalf("expected raw and EIP-191 digests to differ")
	}
}

func TestSigningDigestIsDeterministic(t *testing.T) {
	envelope := types.Envelope{
		EventID:  types.EventID{0xBB},
		Ordering: types.OrderingFromUint64(7),
		Payload:  []byte("payload"),
	}
	d1, err := SigningDigest(envelope, types.SignatureEIP191)
	if err != nil {
		t.Fatalf("SigningDigest (1): %v", err)
	}
	d2, err := SigningDigest(envelope, types.SignatureEIP191)
	if err != nil {
		t.Fatalf("SigningDigest (2): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected identical envelopes to produce identical signing digests")
	}
}
