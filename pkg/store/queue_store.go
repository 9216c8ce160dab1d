package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/types"
)

// ActionLog is one entry of a quorum queue's recent-action diagnostic
// ring buffer — a feature present in original_source/.../aggregator.rs
// that the distilled spec dropped; see SPEC_FULL.md §4.8.
type ActionLog struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

const recentActionsCap = 16

// queueRecord is the persisted representation of a quorum queue: its
// state, the submissions received so far, and a bounded action history.
type queueRecord struct {
	State       types.QuorumQueueState `json:"state"`
	Submissions []types.Submission     `json:"submissions"`
	Recent      []ActionLog            `json:"recent"`
}

// QueueStore is the durable per-(event_id,submit_target) set of received
// signed submissions (spec §4.8, §3). Grounded on the teacher's
// pkg/batch/collector.go per-batch accumulation shape, generalized from
// "batch of pending transactions" to "quorum queue of submissions", and
// on pkg/batch/processor.go's per-resource mutex map for the
// queue_transaction lock (held by the caller — see pkg/aggregator).
type QueueStore struct {
	db *DB
}

func NewQueueStore(db *DB) *QueueStore {
	return &QueueStore{db: db}
}

func queueKey(id types.QuorumQueueID) []byte {
	buf := make([]byte, 0, 32+len(id.Target.Chain.String())+20)
	buf = append(buf, id.EventID[:]...)
	buf = append(buf, []byte(id.Target.Chain.String())...)
	buf = append(buf, id.Target.Address.Bytes()...)
	return buf
}

// Load returns the queue's current state and submissions. An unknown ID
// is reported as a fresh Active queue with no submissions rather than
// NotFound: per spec §3, "a quorum queue is created on first submission",
// so there is no error state for "doesn't exist yet".
func (s *QueueStore) Load(id types.QuorumQueueID) (types.QuorumQueueState, []types.Submission, error) {
	rec, err := s.load(id)
	if err != nil {
		return "", nil, err
	}
	if rec == nil {
		return types.QueueActive, nil, nil
	}
	return rec.State, rec.Submissions, nil
}

func (s *QueueStore) load(id types.QuorumQueueID) (*queueRecord, error) {
	var rec *queueRecord
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketQueues).Get(queueKey(id))
		if raw == nil {
			return nil
		}
		rec = &queueRecord{}
		return json.Unmarshal(raw, rec)
	})
	return rec, err
}

// Insert adds submission to the queue, deduplicating by operator address
// (spec §3 "each operator address appears at most once"). Inserting into
// a Burned queue is a no-op that returns the Burned state so callers can
// detect it without a separate Load.
func (s *QueueStore) Insert(id types.QuorumQueueID, sub types.Submission) (types.QuorumQueueState, error) {
	var state types.QuorumQueueState
	err := s.db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueues)
		key := queueKey(id)
		rec := &queueRecord{State: types.QueueActive}
		if raw := b.Get(key); raw != nil {
			if err := json.Unmarshal(raw, rec); err != nil {
				return err
			}
		}
		state = rec.State
		if rec.State == types.QueueBurned {
			return nil // Burned is terminal; silently drop further signatures.
		}
		for _, existing := range rec.Submissions {
			if bytes.Equal(existing.OperatorAddr.Bytes(), sub.OperatorAddr.Bytes()) {
				return nil // at-most-once per operator
			}
		}
		rec.Submissions = append(rec.Submissions, sub)
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
	return state, err
}

// Burn transitions the queue Active->Burned. Burning an already-Burned
// or not-yet-created queue is a no-op (monotonicity: no sequence of
// operations moves a queue back to Active for the same id).
func (s *QueueStore) Burn(id types.QuorumQueueID) error {
	return s.db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueues)
		key := queueKey(id)
		rec := &queueRecord{State: types.QueueActive}
		if raw := b.Get(key); raw != nil {
			if err := json.Unmarshal(raw, rec); err != nil {
				return err
			}
		}
		rec.State = types.QueueBurned
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
}

// OrderedSubmissions returns the queue's submissions sorted ascending by
// (ordering, operator_address), the order consumers must assemble
// on-chain signature arrays in (spec §3).
func OrderedSubmissions(subs []types.Submission) []types.Submission {
	out := append([]types.Submission(nil), subs...)
	sort.Slice(out, func(i, j int) bool {
		oi, oj := out[i].Envelope.Ordering, out[j].Envelope.Ordering
		if c := bytes.Compare(oi[:], oj[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].OperatorAddr.Bytes(), out[j].OperatorAddr.Bytes()) < 0
	})
	return out
}

// AppendAction records an entry in the queue's bounded recent-action
// history (capacity recentActionsCap, oldest dropped first).
func (s *QueueStore) AppendAction(id types.QuorumQueueID, entry ActionLog) error {
	return s.db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueues)
		key := queueKey(id)
		rec := &queueRecord{State: types.QueueActive}
		if raw := b.Get(key); raw != nil {
			if err := json.Unmarshal(raw, rec); err != nil {
				return err
			}
		}
		rec.Recent = append(rec.Recent, entry)
		if len(rec.Recent) > recentActionsCap {
			rec.Recent = rec.Recent[len(rec.Recent)-recentActionsCap:]
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
}

// RecentActions returns the queue's recent-action diagnostic history.
func (s *QueueStore) RecentActions(id types.QuorumQueueID) ([]ActionLog, error) {
	rec, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, wavserr.New(wavserr.NotFound, "QueueStore.RecentActions", fmt.Errorf("queue not found"))
	}
	return rec.Recent, nil
}
