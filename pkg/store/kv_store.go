package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/certen/wavs/internal/wavserr"
)

// KVStore backs the component key-value capability (spec §4.3). Every
// operation is scoped by a (serviceID, bucket) context; the host attaches
// that context once per component instantiation and every call below is
// structurally confined to the one bbolt bucket it maps to.
type KVStore struct {
	db *DB
}

func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Context binds a KVStore to one (serviceID, bucket) pair.
type Context struct {
	store    *KVStore
	bucket   []byte
}

// Open returns a Context scoped to (serviceID, bucket), creating the
// underlying bbolt bucket if this is the first access.
func (s *KVStore) Open(serviceID, bucket string) (*Context, error) {
	name := kvBucketName(serviceID, bucket)
	err := s.db.bolt.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Context{store: s, bucket: name}, nil
}

var ErrMissingKey = fmt.Errorf("missing key")

// Read returns the value for key, or ErrMissingKey (including when this
// context's bucket doesn't exist at all, e.g. a foreign context: isolation
// falls out of the fact that a foreign (service_id,bucket) pair maps to a
// bbolt bucket this Context was never opened against).
func (c *Context) Read(key []byte) ([]byte, error) {
	var out []byte
	err := c.store.db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return wavserr.New(wavserr.NotFound, "KV.Read", ErrMissingKey)
		}
		v := b.Get(key)
		if v == nil {
			return wavserr.New(wavserr.NotFound, "KV.Read", ErrMissingKey)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write sets key to value, unconditionally.
func (c *Context) Write(key, value []byte) error {
	return c.store.db.bolt.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Context) Delete(key []byte) error {
	return c.store.db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// AtomicIncrement adds delta to the signed 64-bit little-endian value
// stored at key (absent key treated as 0), stores and returns the result,
// all inside one bbolt transaction so concurrent increments serialize.
func (c *Context) AtomicIncrement(key []byte, delta int64) (int64, error) {
	var result int64
	err := c.store.db.bolt.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		var cur int64
		if v := b.Get(key); v != nil {
			if len(v) != 8 {
				return wavserr.New(wavserr.InvalidInput, "KV.AtomicIncrement", fmt.Errorf("stored value is not an 8-byte counter"))
			}
			cur = int64(binary.LittleEndian.Uint64(v))
		}
		result = cur + delta
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(result))
		return b.Put(key, buf)
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// AtomicSwap unconditionally replaces key's value, returning the prior
// value (nil if the key was absent), inside one transaction.
func (c *Context) AtomicSwap(key, value []byte) ([]byte, error) {
	var prior []byte
	err := c.store.db.bolt.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		if v := b.Get(key); v != nil {
			prior = append([]byte(nil), v...)
		}
		return b.Put(key, value)
	})
	if err != nil {
		return nil, err
	}
	return prior, nil
}

// BatchRead reads many keys in one read transaction. Missing keys are
// omitted from the result map rather than erroring, matching the
// best-effort batch semantics components expect.
func (c *Context) BatchRead(keys [][]byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	err := c.store.db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if v := b.Get(k); v != nil {
				out[string(k)] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BatchWrite writes many key/value pairs in one transaction.
func (c *Context) BatchWrite(kvs map[string][]byte) error {
	return c.store.db.bolt.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		for k, v := range kvs {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchDelete removes many keys in one transaction.
func (c *Context) BatchDelete(keys [][]byte) error {
	return c.store.db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
