package submission

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/certen/wavs/internal/wavslog"
	"github.com/certen/wavs/pkg/types"
)

// Config wires a Manager's dependencies.
type Config struct {
	Mnemonic string
	ChainRPC map[types.ChainKey]string
}

// Manager implements pkg/dispatcher.Submitter: the per-service signer
// pool, lazy per-chain client pool, and the two submission paths of
// spec §4.7.
type Manager struct {
	signers  *SignerPool
	chainRPC map[types.ChainKey]string

	clientsMu sync.Mutex
	clients   map[types.ChainKey]*ethclient.Client

	chainLocksMu sync.Mutex
	chainLocks   map[types.ChainKey]*sync.Mutex

	log zerolog.Logger
}

func New(cfg Config) (*Manager, error) {
	pool, err := NewSignerPool(cfg.Mnemonic)
	if err != nil {
		return nil, err
	}
	return &Manager{
		signers:    pool,
		chainRPC:   cfg.ChainRPC,
		clients:    make(map[types.ChainKey]*ethclient.Client),
		chainLocks: make(map[types.ChainKey]*sync.Mutex),
		log:        wavslog.WithComponent("submission"),
	}, nil
}

// AddService derives (or reuses) a per-service signer (spec §4.7).
func (m *Manager) AddService(ctx context.Context, serviceID types.ServiceID) error {
	_, err := m.signers.AddService(serviceID)
	return err
}

// RemoveService is a no-op: the signer and its hd_index are retained.
func (m *Manager) RemoveService(ctx context.Context, serviceID types.ServiceID) error {
	m.signers.RemoveService(serviceID)
	return nil
}

// SignerAddress returns the service's signing address, if one has been
// assigned yet (spec §4.9 `GET /service/{id}/key`).
func (m *Manager) SignerAddress(serviceID types.ServiceID) (common.Address, bool) {
	signer, ok := m.signers.Get(serviceID)
	if !ok {
		return common.Address{}, false
	}
	return signer.Address, true
}

// Submit routes envelope to the workflow's declared submit target
// (spec §4.6 step 4, §4.7). Direct EVM submissions are spawned so a slow
// chain does not stall the dispatcher's workflow lock; aggregator
// submissions are awaited inline since the caller needs the HTTP result.
func (m *Manager) Submit(ctx context.Context, serviceID types.ServiceID, workflowID types.WorkflowID, target types.Submit, envelope types.Envelope, triggerData []byte) error {
	switch target.Kind {
	case types.SubmitNone:
		return nil

	case types.SubmitEVMContract:
		go func() {
			bgCtx := context.Background()
			if err := m.submitEVMDirect(bgCtx, serviceID, workflowID, target, envelope, triggerData); err != nil {
				m.log.Warn().Err(err).Str("service_id", serviceID.String()).Str("workflow_id", string(workflowID)).Msg("direct evm submission failed")
			}
		}()
		return nil

	case types.SubmitAggregator:
		return m.submitAggregator(ctx, serviceID, workflowID, target, envelope, triggerData)

	default:
		return nil
	}
}

func (m *Manager) submitEVMDirect(ctx context.Context, serviceID types.ServiceID, workflowID types.WorkflowID, target types.Submit, envelope types.Envelope, triggerData []byte) error {
	signer, ok := m.signers.Get(serviceID)
	if !ok {
		var err error
		signer, err = m.signers.AddService(serviceID)
		if err != nil {
			return err
		}
	}

	digest, err := SigningDigest(envelope, types.SignatureEIP191)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return err
	}

	height, err := m.blockHeight(ctx, target.EVMChain)
	if err != nil {
		return err
	}

	sub := types.Submission{
		ServiceID:    serviceID,
		WorkflowID:   workflowID,
		EventID:      envelope.EventID,
		Envelope:     envelope,
		Signature:    sig,
		OperatorAddr: signer.Address,
		TriggerData:  triggerData,
	}

	txHash, err := m.evmSubmitPath(ctx, target.EVMChain, target.EVMAddress, target.MaxGas, nil, []types.Submission{sub}, height, signer)
	if err != nil {
		return err
	}
	m.log.Info().Str("service_id", serviceID.String()).Str("tx_hash", txHash.Hex()).Msg("direct evm submission sent")
	return nil
}

func (m *Manager) lockChain(chain types.ChainKey) func() {
	m.chainLocksMu.Lock()
	lock, ok := m.chainLocks[chain]
	if !ok {
		lock = &sync.Mutex{}
		m.chainLocks[chain] = lock
	}
	m.chainLocksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}
