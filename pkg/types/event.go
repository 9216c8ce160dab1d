package types

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// EventID is the deterministic 32-byte identifier of a chain or temporal
// event, derived per spec §6 so that every operator observing the same
// event computes the identical ID.
type EventID [32]byte

func (e EventID) String() string { return Digest(e).String() }
func (e EventID) IsZero() bool   { return e == EventID{} }

// TriggerDataKind mirrors TriggerKind but describes an *observed* event
// rather than a registered trigger configuration.
type TriggerDataKind string

const (
	DataEVMLog          TriggerDataKind = "evm_log"
	DataCosmosEvent     TriggerDataKind = "cosmos_event"
	DataBlockInterval   TriggerDataKind = "block_interval"
	DataCron            TriggerDataKind = "cron"
	DataManual          TriggerDataKind = "manual"
)

// TriggerData carries the concrete, observed values of a fired trigger —
// the raw material event_id and the engine's guest payload are built
// from. Only the fields relevant to Kind are populated.
type TriggerData struct {
	Kind TriggerDataKind

	// DataEVMLog
	EVMChain   ChainKey
	EVMAddress common.Address
	TxHash     common.Hash
	LogIndex   uint32
	RawLog     []byte // ABI-decoded payload handed to the component

	// DataCosmosEvent
	CosmosChain   ChainKey
	CosmosAddress string
	BlockHeight   uint64
	EventIndex    uint32
	RawEvent      []byte

	// DataBlockInterval (also reuses BlockHeight, and either chain field)
	IntervalChain ChainKey

	// DataCron
	CronSchedule string
	TriggerTime  int64 // unix seconds

	// DataManual
	ManualPayload []byte
}

// canonicalBytes returns the canonical_trigger_bytes for the event per
// spec §6. Any implementation must reproduce these bytes exactly for
// cross-operator event_id agreement, so the encoding here is fixed-width
// and order-sensitive rather than delegating to JSON.
func (d TriggerData) canonicalBytes() []byte {
	switch d.Kind {
	case DataEVMLog:
		buf := make([]byte, 0, len(d.EVMChain.String())+20+32+4)
		buf = append(buf, []byte(d.EVMChain.String())...)
		buf = append(buf, d.EVMAddress.Bytes()...)
		buf = append(buf, d.TxHash.Bytes()...)
		buf = binary.BigEndian.AppendUint32(buf, d.LogIndex)
		return buf
	case DataCosmosEvent:
		buf := make([]byte, 0, len(d.CosmosChain.String())+len(d.CosmosAddress)+8+4)
		buf = append(buf, []byte(d.CosmosChain.String())...)
		buf = append(buf, []byte(d.CosmosAddress)...)
		buf = binary.BigEndian.AppendUint64(buf, d.BlockHeight)
		buf = binary.BigEndian.AppendUint32(buf, d.EventIndex)
		return buf
	case DataBlockInterval:
		buf := make([]byte, 0, len(d.IntervalChain.String())+8)
		buf = append(buf, []byte(d.IntervalChain.String())...)
		buf = binary.BigEndian.AppendUint64(buf, d.BlockHeight)
		return buf
	case DataCron:
		buf := make([]byte, 0, len(d.CronSchedule)+8)
		buf = append(buf, []byte(d.CronSchedule)...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(d.TriggerTime))
		return buf
	case DataManual:
		return append([]byte("manual:"), d.ManualPayload...)
	default:
		return nil
	}
}

// DeriveEventID computes event_id = keccak256(canonical_trigger_bytes).
func DeriveEventID(d TriggerData) EventID {
	return EventID(DigestOf(d.canonicalBytes()))
}

// TriggerAction is the unit of work emitted on the trigger subsystem's
// outbound channel (spec §4.4).
type TriggerAction struct {
	ServiceID  ServiceID
	WorkflowID WorkflowID
	Data       TriggerData
}
