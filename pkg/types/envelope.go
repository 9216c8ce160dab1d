package types

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Envelope is the canonical signed unit of work: (event_id, ordering, payload).
type Envelope struct {
	EventID  EventID `json:"eventId"`
	Ordering [12]byte `json:"ordering"`
	Payload  []byte   `json:"payload"`
}

// OrderingFromUint64 packs a monotonic counter into the 12-byte ordering
// tiebreaker (high 4 bytes zero, low 8 bytes the counter), matching the
// ascending-ordering invariant of spec §3.
func OrderingFromUint64(n uint64) [12]byte {
	var o [12]byte
	binary.BigEndian.PutUint64(o[4:], n)
	return o
}

// Signature is a 65-byte secp256k1 signature (r || s || v).
type Signature [65]byte

// Submission is the peer message exchanged between operators and the
// aggregator (spec §3): one operator's signed envelope for one event.
type Submission struct {
	ServiceID     ServiceID      `json:"serviceId"`
	WorkflowID    WorkflowID     `json:"workflowId"`
	EventID       EventID        `json:"eventId"`
	Envelope      Envelope       `json:"envelope"`
	Signature     Signature      `json:"signature"`
	OperatorAddr  common.Address `json:"operatorAddress"`
	TriggerData   []byte         `json:"triggerData,omitempty"`
}

// SubmitTarget identifies the ultimate on-chain destination a quorum
// queue accumulates signatures for.
type SubmitTarget struct {
	Chain   ChainKey       `json:"chain"`
	Address common.Address `json:"address"`
}

// QuorumQueueID = {event_id, submit_target}.
type QuorumQueueID struct {
	EventID EventID
	Target  SubmitTarget
}

// QuorumQueueState is the closed Active/Burned state of a quorum queue.
type QuorumQueueState string

const (
	QueueActive QuorumQueueState = "active"
	QueueBurned QuorumQueueState = "burned"
)
