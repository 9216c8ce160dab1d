// Package submission holds the per-service signer pool and the two
// submission paths of spec §4.7: direct on-chain EVM contract calls and
// HTTP delivery to an aggregator.
package submission

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	bip39 "github.com/FactomProject/go-bip39"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/wavs/pkg/types"
)

// baseDerivationPath mirrors go-ethereum accounts.DefaultBaseDerivationPath
// (m/44'/60'/0'/0), with the per-service hd_index appended as the final
// non-hardened component (spec §4.7, §9).
var baseDerivationPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
}

// Signer wraps one derived secp256k1 keypair.
type Signer struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// Sign produces a 65-byte (r||s||v) signature over digest. Callers apply
// the EIP-191 prefix (or not) before calling, per the workflow's
// SignatureKind (spec §6).
func (s *Signer) Sign(digest [32]byte) (types.Signature, error) {
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return types.Signature{}, err
	}
	var out types.Signature
	copy(out[:], sig)
	return out, nil
}

// SignerPool derives one signer per service from a master mnemonic and a
// monotonically increasing hd_index, per spec §4.7: "add_service assigns
// the next hd_index... remove_service is a no-op (keys retained for
// idempotence; the counter never rewinds)".
type SignerPool struct {
	mu       sync.Mutex
	master   *hdkeychain.ExtendedKey
	nextIdx  uint32
	signers  map[types.ServiceID]*Signer
}

func NewSignerPool(mnemonic string) (*SignerPool, error) {
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("submission: derive master key: %w", err)
	}
	return &SignerPool{master: master, signers: make(map[types.ServiceID]*Signer)}, nil
}

// AddService assigns the next hd_index to serviceID, idempotently: calling
// it again for a serviceID that already has a signer returns the existing
// one instead of burning another index.
func (p *SignerPool) AddService(serviceID types.ServiceID) (*Signer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.signers[serviceID]; ok {
		return s, nil
	}

	idx := p.nextIdx
	p.nextIdx++

	signer, err := p.derive(idx)
	if err != nil {
		return nil, err
	}
	p.signers[serviceID] = signer
	return signer, nil
}

// RemoveService is a no-op: the derived key and its hd_index are retained
// so re-adding the same service later is idempotent rather than reusing
// an index another service may already hold.
func (p *SignerPool) RemoveService(types.ServiceID) {}

// Get returns the signer for serviceID, if one has been assigned.
func (p *SignerPool) Get(serviceID types.ServiceID) (*Signer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.signers[serviceID]
	return s, ok
}

func (p *SignerPool) derive(index uint32) (*Signer, error) {
	key := p.master
	path := append(append([]uint32{}, baseDerivationPath...), index)
	for _, c := range path {
		var err error
		key, err = key.Derive(c)
		if err != nil {
			return nil, fmt.Errorf("submission: derive path component %d: %w", c, err)
		}
	}
	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("submission: extract private key: %w", err)
	}
	priv, err := crypto.ToECDSA(ecPriv.Serialize())
	if err != nil {
		return nil, fmt.Errorf("submission: convert to ecdsa: %w", err)
	}
	return &Signer{Address: crypto.PubkeyToAddress(priv.PublicKey), key: priv}, nil
}
