package engine

import (
	"context"
	"encoding/json"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/types"
)

// AggregationInput is the packet handed to an aggregation component: the
// newly-arrived submission plus the queue's current accumulated state
// (spec §4.5, §4.8).
type AggregationInput struct {
	Packet      types.Packet        `json:"packet"`
	QueueState  types.QuorumQueueState `json:"queueState"`
	Submissions []types.Submission  `json:"submissions"`
}

// ExecuteAggregation runs an aggregation component's guest export against
// input, reusing the same fuel/deadline machinery as the operator-variant
// Execute. The host-world interface differs only in which host functions
// the component is expected to call (aggregation components have no
// reason to touch the KV or chain-query capabilities, but nothing in the
// wazero wiring prevents it — capability checks are still enforced by
// HostContext either way).
func (e *Engine) ExecuteAggregation(ctx context.Context, component types.Component, digest types.Digest, input AggregationInput, host *HostContext) ([]types.AggregatorAction, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, wavserr.New(wavserr.InvalidInput, "Engine.ExecuteAggregation", err)
	}

	result, err := e.Execute(ctx, component, digest, payload, host)
	if err != nil {
		return nil, err
	}

	var actions []types.AggregatorAction
	if err := json.Unmarshal(result.Output, &actions); err != nil {
		return nil, wavserr.New(wavserr.InvalidInput, "Engine.ExecuteAggregation", err)
	}
	return actions, nil
}
