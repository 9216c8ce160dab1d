package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/certen/wavs/pkg/types"
)

// handlePacket implements POST /packet (spec §4.8 inbound, §6 "200 on
// successfully enqueued... 4xx for malformed or unknown-service").
func (s *Server) handlePacket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req types.AddPacketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.aggregator.AddPacket(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
