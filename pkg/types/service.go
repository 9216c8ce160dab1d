package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// ServiceStatus is the closed set of service lifecycle states.
type ServiceStatus string

const (
	ServiceActive ServiceStatus = "active"
	ServicePaused ServiceStatus = "paused"
)

// ServiceManager identifies the on-chain contract that records operator
// membership for a service.
type ServiceManager struct {
	Chain   ChainKey       `json:"chain"`
	Address common.Address `json:"address"`
}

// WorkflowEntry is one (id, workflow) pair. Service.Workflows is a slice
// of these, not a Go map, so that insertion order — part of a service's
// canonical byte encoding — is preserved.
type WorkflowEntry struct {
	ID       WorkflowID `json:"id"`
	Workflow Workflow   `json:"workflow"`
}

// Service is the durable catalog record described in spec §3. Its ID is
// derived from its canonical byte encoding, so any mutation of a Service
// value yields a different ServiceID; Service values should be treated as
// immutable once saved.
type Service struct {
	Name      string          `json:"name"`
	Workflows []WorkflowEntry `json:"workflows"`
	Status    ServiceStatus   `json:"status"`
	Manager   ServiceManager  `json:"manager"`
}

// ServiceID is the content hash of a Service's canonical bytes.
type ServiceID Digest

func (id ServiceID) String() string { return Digest(id).String() }
func (id ServiceID) IsZero() bool   { return Digest(id).IsZero() }

func ParseServiceID(s string) (ServiceID, error) {
	d, err := ParseDigest(s)
	if err != nil {
		return ServiceID{}, err
	}
	return ServiceID(d), nil
}

// Workflow looks up a workflow by ID, preserving the "ordered map" lookup
// semantics of spec §3 without actually using a Go map.
func (s Service) Workflow(id WorkflowID) (Workflow, bool) {
	for _, e := range s.Workflows {
		if e.ID == id {
			return e.Workflow, true
		}
	}
	return Workflow{}, false
}

// CanonicalBytes returns the deterministic byte encoding of the service
// used to derive its ServiceID. Workflows is an explicitly ordered slice,
// and Go's encoding/json writes the only maps Service carries (component
// Config) with sorted keys, so a plain json.Marshal of the struct is
// already canonical: identical field values in identical order always
// produce identical bytes.
func (s Service) CanonicalBytes() ([]byte, error) {
	return json.Marshal(s)
}

// ID computes the content-addressed identity of the service.
func (s Service) ID() (ServiceID, error) {
	b, err := s.CanonicalBytes()
	if err != nil {
		return ServiceID{}, err
	}
	return ServiceID(DigestOf(b)), nil
}
