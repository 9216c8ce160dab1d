package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/certen/wavs/pkg/types"
)

// submitAggregator signs envelope and POSTs it to the workflow's
// aggregator URL (spec §4.7 "Aggregator path"), awaited inline per
// spec §4.7's parallelism note.
func (m *Manager) submitAggregator(ctx context.Context, serviceID types.ServiceID, workflowID types.WorkflowID, target types.Submit, envelope types.Envelope, triggerData []byte) error {
	signer, ok := m.signers.Get(serviceID)
	if !ok {
		var err error
		signer, err = m.signers.AddService(serviceID)
		if err != nil {
			return err
		}
	}

	kind := target.SignatureKind
	if kind == "" {
		kind = types.SignatureEIP191
	}
	digest, err := SigningDigest(envelope, kind)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return err
	}

	req := types.AddPacketRequest{
		Packet: types.Packet{
			ServiceID:  serviceID,
			WorkflowID: workflowID,
			Submission: types.Submission{
				ServiceID:    serviceID,
				WorkflowID:   workflowID,
				EventID:      envelope.EventID,
				Envelope:     envelope,
				Signature:    sig,
				OperatorAddr: signer.Address,
				TriggerData:  triggerData,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("submission: marshal packet: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.AggregatorURL+"/packet", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submission: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submission: post packet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("submission: aggregator rejected packet: status %d", resp.StatusCode)
	}

	var responses []types.AddPacketResponse
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		return fmt.Errorf("submission: decode aggregator response: %w", err)
	}
	for _, r := range responses {
		if r.Type == types.RespError {
			m.log.Warn().Str("service_id", serviceID.String()).Str("reason", r.Reason).Msg("aggregator reported error for packet")
		}
	}
	return nil
}
