package dispatcher

import "github.com/certen/wavs/pkg/types"

// CommandKind tags the dispatcher's inbound command channel variants
// (spec §4.6: "AggregatorExecute, service add/remove, and shutdown").
type CommandKind string

const (
	CommandAggregatorExecute CommandKind = "aggregator_execute"
	CommandAddService        CommandKind = "add_service"
	CommandRemoveService     CommandKind = "remove_service"
	CommandSubmitCallback    CommandKind = "submit_callback"
	CommandShutdown          CommandKind = "shutdown"
)

// Command is a closed tagged union over the dispatcher's command channel.
type Command struct {
	Kind CommandKind

	// CommandAggregatorExecute
	ServiceID    types.ServiceID
	WorkflowID   types.WorkflowID
	ExecuteKind  types.AggregatorExecuteKind
	Packet       *types.Packet
	QueueState   types.QuorumQueueState
	Submissions  []types.Submission
	TimerPayload []byte

	// CommandAddService
	Service *types.Service

	// CommandSubmitCallback
	Outcome types.SubmitOutcome
}
