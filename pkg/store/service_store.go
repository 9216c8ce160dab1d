package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/types"
)

// ServiceStore is the durable catalog of services described in spec §4.1.
type ServiceStore struct {
	db *DB
}

func NewServiceStore(db *DB) *ServiceStore {
	return &ServiceStore{db: db}
}

// Save is idempotent in the service ID: storing the same bytes twice is a
// no-op. Saving a different-bytes service whose Name collides with an
// existing, differently-identified service returns AlreadyExists.
func (s *ServiceStore) Save(svc types.Service) (types.ServiceID, error) {
	id, err := svc.ID()
	if err != nil {
		return types.ServiceID{}, wavserr.New(wavserr.InvalidInput, "ServiceStore.Save", err)
	}
	canonical, err := svc.CanonicalBytes()
	if err != nil {
		return types.ServiceID{}, wavserr.New(wavserr.InvalidInput, "ServiceStore.Save", err)
	}

	err = s.db.bolt.Update(func(tx *bolt.Tx) error {
		services := tx.Bucket(bucketServices)
		names := tx.Bucket(bucketServiceNames)

		if existing := services.Get(id[:]); existing != nil {
			if bytes.Equal(existing, canonical) {
				return nil // idempotent no-op
			}
			// Same content hash can't disagree in content; unreachable
			// in practice, but guard rather than silently overwrite.
			return wavserr.New(wavserr.Fatal, "ServiceStore.Save", fmt.Errorf("service id collision with different bytes"))
		}

		if nameOwner := names.Get([]byte(svc.Name)); nameOwner != nil && !bytes.Equal(nameOwner, id[:]) {
			return wavserr.New(wavserr.InvalidInput, "ServiceStore.Save", fmt.Errorf("%w: name %q already used by a different service", errAlreadyExists, svc.Name))
		}

		if err := services.Put(id[:], canonical); err != nil {
			return err
		}
		return names.Put([]byte(svc.Name), id[:])
	})
	if err != nil {
		return types.ServiceID{}, err
	}
	return id, nil
}

// Get returns the service stored under id, or NotFound.
func (s *ServiceStore) Get(id types.ServiceID) (types.Service, error) {
	var svc types.Service
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketServices).Get(id[:])
		if raw == nil {
			return wavserr.New(wavserr.NotFound, "ServiceStore.Get", fmt.Errorf("service %s not found", id))
		}
		return json.Unmarshal(raw, &svc)
	})
	if err != nil {
		return types.Service{}, err
	}
	return svc, nil
}

// List returns every stored service alongside its ID.
func (s *ServiceStore) List() (map[types.ServiceID]types.Service, error) {
	out := make(map[types.ServiceID]types.Service)
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketServices).ForEach(func(k, v []byte) error {
			var svc types.Service
			if err := json.Unmarshal(v, &svc); err != nil {
				return err
			}
			var id types.ServiceID
			copy(id[:], k)
			out[id] = svc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes the service and its name index entry. Removing an
// unknown ID is not an error (delete is idempotent).
func (s *ServiceStore) Remove(id types.ServiceID) error {
	return s.db.bolt.Update(func(tx *bolt.Tx) error {
		services := tx.Bucket(bucketServices)
		raw := services.Get(id[:])
		if raw == nil {
			return nil
		}
		var svc types.Service
		if err := json.Unmarshal(raw, &svc); err != nil {
			return err
		}
		if err := services.Delete(id[:]); err != nil {
			return err
		}
		return tx.Bucket(bucketServiceNames).Delete([]byte(svc.Name))
	})
}

var errAlreadyExists = fmt.Errorf("already exists")
