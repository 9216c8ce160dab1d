package submission

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/wavs/pkg/types"
)

var envelopeArgs = mustEnvelopeArgs()

func mustEnvelopeArgs() abi.Arguments {
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		panic(err)
	}
	bytes12Ty, err := abi.NewType("bytes12", "", nil)
	if err != nil {
		panic(err)
	}
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Type: bytes32Ty},
		{Type: bytes12Ty},
		{Type: bytesTy},
	}
}

// SigningDigest returns the digest a Signer.Sign call should be given for
// envelope e, applying the EIP-191 prefix when kind says to (spec §6:
// `keccak256("\x19Ethereum Signed Message:\n32" || keccak256(abi_encode(...)))`).
func SigningDigest(e types.Envelope, kind types.SignatureKind) ([32]byte, error) {
	packed, err := envelopeArgs.Pack([32]byte(e.EventID), e.Ordering, e.Payload)
	if err != nil {
		return [32]byte{}, err
	}
	inner := crypto.Keccak256Hash(packed)

	if kind == types.SignatureRaw {
		return inner, nil
	}
	return crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), inner.Bytes()), nil
}
