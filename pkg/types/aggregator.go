package types

import "github.com/ethereum/go-ethereum/common"

// AggregatorActionKind is the closed set of actions an aggregation
// component may return.
type AggregatorActionKind string

const (
	ActionSubmit AggregatorActionKind = "submit"
	ActionTimer  AggregatorActionKind = "timer"
)

// AggregatorAction is a closed tagged union over {Submit, Timer}, returned
// by an aggregation component invocation (spec §4.5, §4.8).
type AggregatorAction struct {
	Kind AggregatorActionKind

	// ActionSubmit
	Chain          ChainKey
	ContractAddr   common.Address
	GasPrice       *uint64

	// ActionTimer
	DelaySeconds uint64
}

// AggregatorExecuteKind tags why the dispatcher is asked to run an
// aggregation component.
type AggregatorExecuteKind string

const (
	ExecuteStandard      AggregatorExecuteKind = "standard"
	ExecuteTimerCallback AggregatorExecuteKind = "timer_callback"
)

// SubmitOutcomeKind tags the result delivered back to an aggregation
// component after an on-chain submit attempt.
type SubmitOutcomeKind string

const (
	OutcomeOK                  SubmitOutcomeKind = "ok"
	OutcomeInsufficientQuorum  SubmitOutcomeKind = "insufficient_quorum"
	OutcomeError               SubmitOutcomeKind = "error"
)

// SubmitOutcome is the SubmitCallback payload of spec §4.8.
type SubmitOutcome struct {
	Kind   SubmitOutcomeKind
	TxHash common.Hash // OutcomeOK

	SignerWeight    uint64 // OutcomeInsufficientQuorum
	ThresholdWeight uint64
	TotalWeight     uint64

	Err error // OutcomeError
}

// AddPacketRequest is the POST /packet request body (spec §6).
type AddPacketRequest struct {
	Packet Packet `json:"packet"`
}

// Packet is a submission plus the service context the aggregator needs
// to validate it.
type Packet struct {
	ServiceID   ServiceID  `json:"serviceId"`
	WorkflowID  WorkflowID `json:"workflowId"`
	Submission  Submission `json:"submission"`
}

// AddPacketResponseType is the closed set of outcomes an aggregator
// reports for one accepted packet.
type AddPacketResponseType string

const (
	RespSent       AddPacketResponseType = "sent"
	RespAggregated AddPacketResponseType = "aggregated"
	RespBurned     AddPacketResponseType = "burned"
	RespError      AddPacketResponseType = "error"
)

// AddPacketResponse is one entry of the array POST /packet returns.
type AddPacketResponse struct {
	Type   AddPacketResponseType `json:"type"`
	Count  int                   `json:"count,omitempty"`
	TxHash string                `json:"txHash,omitempty"`
	Reason string                `json:"reason,omitempty"`
}
