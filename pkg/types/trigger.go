package types

import "github.com/ethereum/go-ethereum/common"

// TriggerKind tags the closed set of trigger variants.
type TriggerKind string

const (
	TriggerEVMEvent      TriggerKind = "evm_event"
	TriggerCosmosEvent   TriggerKind = "cosmos_event"
	TriggerBlockInterval TriggerKind = "block_interval"
	TriggerCron          TriggerKind = "cron"
	TriggerManual        TriggerKind = "manual"
)

// Trigger is a closed tagged union over the trigger variants in spec §3.
// Only the fields relevant to Kind are populated; callers must switch
// exhaustively over Kind rather than relying on zero values.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// TriggerEVMEvent
	EVMChain     ChainKey       `json:"evmChain,omitempty"`
	EVMAddress   common.Address `json:"evmAddress,omitempty"`
	EVMEventHash common.Hash    `json:"evmEventHash,omitempty"`

	// TriggerCosmosEvent
	CosmosChain     ChainKey `json:"cosmosChain,omitempty"`
	CosmosAddress   string   `json:"cosmosAddress,omitempty"`
	CosmosEventType string   `json:"cosmosEventType,omitempty"`

	// TriggerBlockInterval
	IntervalChain ChainKey `json:"intervalChain,omitempty"`
	NBlocks       uint64   `json:"nBlocks,omitempty"`
	StartBlock    *uint64  `json:"startBlock,omitempty"`
	EndBlock      *uint64  `json:"endBlock,omitempty"`

	// TriggerCron
	CronSchedule  string `json:"cronSchedule,omitempty"`
	CronStartTime *int64 `json:"cronStartTime,omitempty"` // unix seconds
	CronEndTime   *int64 `json:"cronEndTime,omitempty"`
}

// SubmitKind tags the closed set of submit-target variants.
type SubmitKind string

const (
	SubmitNone       SubmitKind = "none"
	SubmitEVMContract SubmitKind = "evm_contract"
	SubmitAggregator SubmitKind = "aggregator"
)

// SignatureKind selects how an envelope digest is prefixed before signing.
type SignatureKind string

const (
	SignatureEIP191 SignatureKind = "eip191"
	SignatureRaw    SignatureKind = "raw"
)

// Submit is a closed tagged union over the three submission targets a
// workflow may declare.
type Submit struct {
	Kind SubmitKind `json:"kind"`

	// SubmitEVMContract
	EVMChain   ChainKey       `json:"evmChain,omitempty"`
	EVMAddress common.Address `json:"evmAddress,omitempty"`
	MaxGas     *uint64        `json:"maxGas,omitempty"`

	// SubmitAggregator
	AggregatorURL         string        `json:"aggregatorUrl,omitempty"`
	AggregationComponent  Component     `json:"aggregationComponent,omitempty"`
	SignatureKind         SignatureKind `json:"signatureKind,omitempty"`
}

// Workflow binds a trigger to a component and a submission target.
type Workflow struct {
	Trigger   Trigger   `json:"trigger"`
	Component Component `json:"component"`
	Submit    Submit    `json:"submit"`
}

// WorkflowID identifies a workflow within its owning service.
type WorkflowID string
