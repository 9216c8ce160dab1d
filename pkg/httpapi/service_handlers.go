package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/dispatcher"
	"github.com/certen/wavs/pkg/types"
)

// addServiceRequest is the POST /service body.
type addServiceRequest struct {
	Service types.Service `json:"service"`
}

type addServiceResponse struct {
	ServiceID string `json:"serviceId"`
}

type listServicesResponse struct {
	Services map[string]types.Service `json:"services"`
}

type serviceKeyResponse struct {
	ServiceID string `json:"serviceId"`
	Address   string `json:"address,omitempty"`
	Assigned  bool   `json:"assigned"`
}

// handleServiceCollection handles POST /service and GET /service (spec §4.9).
func (s *Server) handleServiceCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.addService(w, r)
	case http.MethodGet:
		s.listServices(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleServiceItem handles DELETE /service/{id} and GET /service/{id}/key.
func (s *Server) handleServiceItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/service/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "missing service id")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	idStr := parts[0]
	id, err := types.ParseServiceID(idStr)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	if len(parts) == 2 && parts[1] == "key" {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.serviceKey(w, id)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.removeService(w, r, id)
		return
	}

	s.writeError(w, http.StatusNotFound, "unknown endpoint")
}

func (s *Server) addService(w http.ResponseWriter, r *http.Request) {
	var req addServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.contractExists(r.Context(), req.Service.Manager.Chain, req.Service.Manager.Address) {
		s.writeError(w, http.StatusBadRequest, "manager address does not exist on-chain")
		return
	}
	for _, entry := range req.Service.Workflows {
		if entry.Workflow.Trigger.Kind == types.TriggerEVMEvent {
			if !s.contractExists(r.Context(), entry.Workflow.Trigger.EVMChain, entry.Workflow.Trigger.EVMAddress) {
				s.writeError(w, http.StatusBadRequest, "trigger contract does not exist on-chain")
				return
			}
		}
		if entry.Workflow.Submit.Kind == types.SubmitAggregator && entry.Workflow.Submit.AggregatorURL == "" {
			s.writeError(w, http.StatusBadRequest, "aggregator submit target missing url")
			return
		}
	}

	svc, err := req.Service.ID()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid service")
		return
	}

	select {
	case s.dispatcher.Commands() <- dispatcher.Command{Kind: dispatcher.CommandAddService, Service: &req.Service}:
	case <-r.Context().Done():
		s.writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}

	s.writeJSON(w, http.StatusOK, addServiceResponse{ServiceID: svc.String()})
}

func (s *Server) removeService(w http.ResponseWriter, r *http.Request, id types.ServiceID) {
	select {
	case s.dispatcher.Commands() <- dispatcher.Command{Kind: dispatcher.CommandRemoveService, ServiceID: id}:
	case <-r.Context().Done():
		s.writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.services.List()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	out := make(map[string]types.Service, len(services))
	for id, svc := range services {
		out[id.String()] = svc
	}
	s.writeJSON(w, http.StatusOK, listServicesResponse{Services: out})
}

func (s *Server) serviceKey(w http.ResponseWriter, id types.ServiceID) {
	if _, err := s.services.Get(id); err != nil {
		s.writeStoreError(w, wavserr.New(wavserr.NotFound, "httpapi.serviceKey", err))
		return
	}
	addr, ok := s.signers.SignerAddress(id)
	resp := serviceKeyResponse{ServiceID: id.String(), Assigned: ok}
	if ok {
		resp.Address = addr.Hex()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
