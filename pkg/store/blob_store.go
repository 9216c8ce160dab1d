package store

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/types"
)

// wasmPreamble is the magic bytes every WebAssembly binary (core module
// or component) begins with: "\0asm" followed by a version field. The
// component-model layer encodes a non-zero version in the high half of
// that field; this store only needs to reject obviously-non-wasm bytes,
// not fully validate component-model structure.
var wasmPreamble = []byte{0x00, 0x61, 0x73, 0x6d}

// BlobStore is the content-addressed store for raw component bytecode
// (spec §4.2).
type BlobStore struct {
	db *DB
}

func NewBlobStore(db *DB) *BlobStore {
	return &BlobStore{db: db}
}

// Set validates bytes look like a WebAssembly component and stores them,
// returning their content digest. Writes are a single bbolt transaction,
// satisfying the "temp file + rename, or single DB transaction" atomicity
// requirement of spec §4.2 via the latter.
func (s *BlobStore) Set(b []byte) (types.Digest, error) {
	if len(b) < 8 || !bytes.Equal(b[:4], wasmPreamble) {
		return types.Digest{}, wavserr.New(wavserr.InvalidInput, "BlobStore.Set", fmt.Errorf("invalid component: missing wasm preamble"))
	}
	digest := types.DigestOf(b)
	err := s.db.bolt.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBlobs)
		if existing := bucket.Get(digest[:]); existing != nil {
			return nil // content-addressed: identical bytes already stored
		}
		return bucket.Put(digest[:], b)
	})
	if err != nil {
		return types.Digest{}, err
	}
	return digest, nil
}

// Get returns the bytes stored under digest, or NotFound.
func (s *BlobStore) Get(digest types.Digest) ([]byte, error) {
	var out []byte
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlobs).Get(digest[:])
		if raw == nil {
			return wavserr.New(wavserr.NotFound, "BlobStore.Get", fmt.Errorf("digest %s not found", digest))
		}
		out = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every digest currently stored.
func (s *BlobStore) List() ([]types.Digest, error) {
	var out []types.Digest
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).ForEach(func(k, _ []byte) error {
			var d types.Digest
			copy(d[:], k)
			out = append(out, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
