package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/certen/wavs/pkg/dispatcher"
)

type uploadBlobResponse struct {
	Digest string `json:"digest"`
}

// handleAdminBlob implements the admin-only raw component blob upload of
// spec §4.9, gated behind Config.AdminMode.
func (s *Server) handleAdminBlob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	digest, err := s.blobs.Set(body)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, uploadBlobResponse{Digest: digest.String()})
}

// handleAdminServiceInject implements direct in-process service injection
// for dev/testing (spec §4.9), bypassing the manager/trigger-contract
// existence checks POST /service performs.
func (s *Server) handleAdminServiceInject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req addServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
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
