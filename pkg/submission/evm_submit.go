package submission

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/certen/wavs/pkg/store"
	wavstypes "github.com/certen/wavs/pkg/types"
)

func orderedSubmissions(subs []wavstypes.Submission) []wavstypes.Submission {
	return store.OrderedSubmissions(subs)
}

// submitFunctionSignature is the on-chain entry point spec §6 describes:
// `submit(envelope, SignatureData)` where `SignatureData = (sorted_signatures[],
// sorted_signer_addresses[], reference_block_number)`, flattened here into
// a single parameter list since the spec gives field shapes, not a
// contract ABI JSON to import.
const submitFunctionSignature = "submit(bytes32,bytes12,bytes,bytes[],address[],uint64)"

var submitSelector = crypto.Keccak256([]byte(submitFunctionSignature))[:4]

var submitArgs = mustSubmitArgs()

func mustSubmitArgs() abi.Arguments {
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	bytes12Ty, _ := abi.NewType("bytes12", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	bytesArrTy, _ := abi.NewType("bytes[]", "", nil)
	addrArrTy, _ := abi.NewType("address[]", "", nil)
	uint64Ty, _ := abi.NewType("uint64", "", nil)
	return abi.Arguments{
		{Type: bytes32Ty},
		{Type: bytes12Ty},
		{Type: bytesTy},
		{Type: bytesArrTy},
		{Type: addrArrTy},
		{Type: uint64Ty},
	}
}

// evmSubmitPath builds the on-chain signature payload from subs (already
// ordered per spec §3's ascending-ordering invariant) and sends a
// transaction, signed with signer's key, to contract on chain (spec §4.7
// "Direct EVM path").
func (m *Manager) evmSubmitPath(ctx context.Context, chain wavstypes.ChainKey, contract common.Address, maxGas *uint64, gasPriceOverride *uint64, subs []wavstypes.Submission, referenceBlock uint64, signer *Signer) (common.Hash, error) {
	client, err := m.evmClient(ctx, chain)
	if err != nil {
		return common.Hash{}, err
	}

	signatures := make([][]byte, len(subs))
	signers := make([]common.Address, len(subs))
	for i, s := range subs {
		signatures[i] = append([]byte(nil), s.Signature[:]...)
		signers[i] = s.OperatorAddr
	}

	var event0 wavstypes.EventID
	var ordering0 [12]byte
	var payload0 []byte
	if len(subs) > 0 {
		event0 = subs[0].EventID
		ordering0 = subs[0].Envelope.Ordering
		payload0 = subs[0].Envelope.Payload
	}

	packed, err := submitArgs.Pack([32]byte(event0), ordering0, payload0, signatures, signers, referenceBlock)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submission: pack submit calldata: %w", err)
	}
	data := append(append([]byte(nil), submitSelector...), packed...)

	unlock := m.lockChain(chain)
	defer unlock()

	nonce, err := client.PendingNonceAt(ctx, signer.Address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submission: fetch nonce: %w", err)
	}
	var gasPrice *big.Int
	if gasPriceOverride != nil {
		gasPrice = new(big.Int).SetUint64(*gasPriceOverride)
	} else {
		gasPrice, err = client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("submission: fetch gas price: %w", err)
		}
	}
	gasLimit := uint64(3_000_000)
	if maxGas != nil {
		gasLimit = *maxGas
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submission: fetch chain id: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), signer.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submission: sign tx: %w", err)
	}
	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("submission: send tx: %w", err)
	}
	return signedTx.Hash(), nil
}

// SubmitOnChain implements pkg/aggregator.OnChainSubmitter: assembles the
// ascending-ordered signature payload (spec §3) for a quorum queue's
// submissions and sends the on-chain transaction. The contract is the
// only source of truth for quorum; a revert reason containing
// "insufficient quorum" is the one case this repo recognizes and turns
// into OutcomeInsufficientQuorum, everything else is OutcomeError.
func (m *Manager) SubmitOnChain(ctx context.Context, serviceID wavstypes.ServiceID, chain wavstypes.ChainKey, target wavstypes.SubmitTarget, gasPrice *uint64, subs []wavstypes.Submission) (wavstypes.SubmitOutcome, error) {
	signer, ok := m.signers.Get(serviceID)
	if !ok {
		var err error
		signer, err = m.signers.AddService(serviceID)
		if err != nil {
			return wavstypes.SubmitOutcome{}, err
		}
	}

	ordered := orderedSubmissions(subs)

	height, err := m.blockHeight(ctx, chain)
	if err != nil {
		return wavstypes.SubmitOutcome{Kind: wavstypes.OutcomeError, Err: err}, nil
	}

	txHash, err := m.evmSubmitPath(ctx, chain, target.Address, nil, gasPrice, ordered, height, signer)
	if err != nil {
		if strings.Contains(err.Error(), "insufficient quorum") {
			return wavstypes.SubmitOutcome{Kind: wavstypes.OutcomeInsufficientQuorum}, nil
		}
		return wavstypes.SubmitOutcome{Kind: wavstypes.OutcomeError, Err: err}, nil
	}
	return wavstypes.SubmitOutcome{Kind: wavstypes.OutcomeOK, TxHash: txHash}, nil
}

func (m *Manager) blockHeight(ctx context.Context, chain wavstypes.ChainKey) (uint64, error) {
	client, err := m.evmClient(ctx, chain)
	if err != nil {
		return 0, err
	}
	return client.BlockNumber(ctx)
}

func (m *Manager) evmClient(ctx context.Context, chain wavstypes.ChainKey) (*ethclient.Client, error) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	if c, ok := m.clients[chain]; ok {
		return c, nil
	}
	url, ok := m.chainRPC[chain]
	if !ok || url == "" {
		return nil, fmt.Errorf("submission: no RPC endpoint configured for chain %s", chain)
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("submission: dial %s: %w", chain, err)
	}
	m.clients[chain] = client
	return client, nil
}
