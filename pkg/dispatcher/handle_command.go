package dispatcher

import (
	"context"
	"fmt"

	"github.com/certen/wavs/internal/wavslog"
	"github.com/certen/wavs/pkg/engine"
	"github.com/certen/wavs/pkg/types"
)

func (d *Dispatcher) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CommandAddService:
		d.handleAddService(ctx, cmd)
	case CommandRemoveService:
		d.handleRemoveService(ctx, cmd)
	case CommandAggregatorExecute:
		d.handleAggregatorExecute(ctx, cmd)
	case CommandSubmitCallback:
		d.handleSubmitCallback(cmd)
	}
}

func (d *Dispatcher) handleAddService(ctx context.Context, cmd Command) {
	if cmd.Service == nil {
		return
	}
	serviceID, err := d.store.Save(*cmd.Service)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to save service")
		return
	}
	if err := d.submitter.AddService(ctx, serviceID); err != nil {
		d.log.Error().Err(err).Msg("failed to register service with submission manager")
	}
	for _, entry := range cmd.Service.Workflows {
		d.trigger.AddWorkflow(serviceID, entry.ID, entry.Workflow, nil)
	}
	d.log.Info().Str("service_id", serviceID.String()).Msg("service added")
}

func (d *Dispatcher) handleRemoveService(ctx context.Context, cmd Command) {
	d.trigger.RemoveService(cmd.ServiceID)
	if err := d.submitter.RemoveService(ctx, cmd.ServiceID); err != nil {
		d.log.Error().Err(err).Msg("failed to remove service from submission manager")
	}
	if err := d.store.Remove(cmd.ServiceID); err != nil {
		d.log.Error().Err(err).Msg("failed to remove service from store")
		return
	}
	d.log.Info().Str("service_id", cmd.ServiceID.String()).Msg("service removed")
}

// RunAggregation executes a workflow's aggregation component against the
// given packet/queue state and returns the resulting action batch. It does
// not post the batch anywhere: callers decide whether to run it inline
// (the aggregator's synchronous AddPacket path) or hand the result to the
// async aggregatorOut channel (handleAggregatorExecute's timer-callback
// path, below).
func (d *Dispatcher) RunAggregation(ctx context.Context, serviceID types.ServiceID, workflowID types.WorkflowID, packet types.Packet, queueState types.QuorumQueueState, submissions []types.Submission) (AggregatorActionBatch, error) {
	log := wavslog.WithService(wavslog.WithWorkflow(d.log, string(workflowID)), serviceID.String())

	svc, err := d.store.Get(serviceID)
	if err != nil {
		return AggregatorActionBatch{}, fmt.Errorf("dispatcher: service no longer registered")
	}
	workflow, ok := svc.Workflow(workflowID)
	if !ok || workflow.Submit.Kind != types.SubmitAggregator {
		return AggregatorActionBatch{}, fmt.Errorf("dispatcher: workflow is not an aggregator submit target")
	}

	host, err := d.hostContextFor(serviceID, workflow, log)
	if err != nil {
		return AggregatorActionBatch{}, fmt.Errorf("dispatcher: build host context: %w", err)
	}

	input := engine.AggregationInput{
		Packet:      packet,
		QueueState:  queueState,
		Submissions: submissions,
	}
	actions, err := d.engine.ExecuteAggregation(ctx, workflow.Submit.AggregationComponent, workflow.Submit.AggregationComponent.Source.Digest, input, host)
	if err != nil {
		return AggregatorActionBatch{}, fmt.Errorf("dispatcher: aggregation component execution failed: %w", err)
	}

	return AggregatorActionBatch{
		ServiceID:  serviceID,
		WorkflowID: workflowID,
		EventID:    packet.Submission.EventID,
		Target: types.SubmitTarget{
			Chain:   workflow.Submit.EVMChain,
			Address: workflow.Submit.EVMAddress,
		},
		Actions: actions,
	}, nil
}

func (d *Dispatcher) handleAggregatorExecute(ctx context.Context, cmd Command) {
	log := wavslog.WithService(wavslog.WithWorkflow(d.log, string(cmd.WorkflowID)), cmd.ServiceID.String())

	packet := types.Packet{}
	if cmd.Packet != nil {
		packet = *cmd.Packet
	}
	batch, err := d.RunAggregation(ctx, cmd.ServiceID, cmd.WorkflowID, packet, cmd.QueueState, cmd.Submissions)
	if err != nil {
		log.Info().Err(err).Msg("dropping aggregator execute")
		return
	}
	if len(batch.Actions) == 0 {
		return
	}
	select {
	case d.aggregatorOut <- batch:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) handleSubmitCallback(cmd Command) {
	d.log.Info().
		Str("service_id", cmd.ServiceID.String()).
		Str("workflow_id", string(cmd.WorkflowID)).
		Str("outcome", string(cmd.Outcome.Kind)).
		Msg("submission outcome")
}
