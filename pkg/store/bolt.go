// Package store implements the embedded, transactional persistence layer
// behind the service store, blob store, key-value store and quorum-queue
// store (spec §4.1-§4.3). It is grounded on the bucket-per-resource bbolt
// idiom in the sibling example repo's pkg/storage/boltdb.go: a single
// *bolt.DB, one bucket per logical resource, db.Update/db.View
// transactions, JSON-encoded values. bbolt's single-writer/multi-reader
// MVCC transactions are exactly the "readers see committed snapshots"
// semantics spec §4.1 calls for.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketServices     = []byte("services")
	bucketServiceNames = []byte("services_by_name")
	bucketBlobs        = []byte("blobs")
	bucketQueues       = []byte("queues")
)

// DB is the shared embedded database backing every store in this package.
// Opening it once per data directory and handing out narrow store
// wrappers mirrors the teacher's sibling repo's single *bolt.DB shared
// across BoltStore's resource-specific methods.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if absent) the bbolt database file under dataDir.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "db"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "db", "wavs.db")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketServices, bucketServiceNames, bucketBlobs, bucketQueues} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{bolt: db}, nil
}

func (d *DB) Close() error { return d.bolt.Close() }

// kvBucketName derives the bbolt bucket name for one (service_id, bucket)
// key-value context, so distinct contexts are distinct real buckets
// rather than distinct key prefixes within one bucket — cross-context
// lookups structurally cannot see foreign data (spec §4.3 isolation
// invariant), grounded on pkg/kvdb.KVAdapter's narrow Get/Set wrapper and
// pkg/ledger.LedgerStore's prefixed key layout, adapted to "many buckets".
func kvBucketName(serviceID, bucket string) []byte {
	return []byte("kv:" + serviceID + ":" + bucket)
}
