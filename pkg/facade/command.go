// Package facade implements the command/response façade: a single Execute
// entry point dispatching on a closed set of command structs,
// fanning out to auth, management, servicebus, bulk, and stats, and tracking
// in-flight bulk operations so they can be cancelled by id.
package facade

import (
	"github.com/dawidpereira/quetty/pkg/bulk"
	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// Command is the closed set of operations Execute accepts, one struct per
// variant instead of a sum type.
type Command interface{ isCommand() }

type SwitchQueueCommand struct {
	QueueName string
	QueueType servicebus.QueueType
}

type GetCurrentQueueCommand struct{}

// GetQueueStatisticsCommand asks for the (active, dead-letter) count pair for
// a queue. The lookup uses QueueName only; QueueType does not change the result.
type GetQueueStatisticsCommand struct {
	QueueName string
	QueueType servicebus.QueueType
}

type PeekMessagesCommand struct {
	MaxCount     int
	FromSequence *int64
}

type ReceiveMessagesCommand struct {
	MaxCount int
}

// CompleteMessageCommand, AbandonMessageCommand, and DeadLetterMessageCommand
// carry a full MessageIdentifier rather than a bare message id:
// ConsumerManager.FindMessage needs both id and sequence to disambiguate a
// redelivered message with a reused id.
type CompleteMessageCommand struct {
	Identifier servicebus.MessageIdentifier
}

type AbandonMessageCommand struct {
	Identifier servicebus.MessageIdentifier
}

type DeadLetterMessageCommand struct {
	Identifier  servicebus.MessageIdentifier
	Reason      *string
	Description *string
}

// BulkCompleteCommand and BulkDeleteCommand both route to bulk.Engine.Delete:
// completing a message and deleting it have the same broker-level effect.
// MaxPosition is carried for callers that want a progress-bar bound; it does
// not affect how many messages the engine actually processes.
type BulkCompleteCommand struct {
	MessageIDs []string
}

type BulkDeleteCommand struct {
	MessageIDs  []string
	MaxPosition *int
}

type BulkAbandonCommand struct {
	MessageIDs []string
}

type BulkDeadLetterCommand struct {
	MessageIDs  []string
	Reason      *string
	Description *string
}

// BulkSendCommand implements move (ShouldDeleteSource=true) or copy
// (ShouldDeleteSource=false) of collected messages to TargetQueue.
// RepeatCount > 1 is only honored for copies: a move consumes its source set
// on the first pass, so repeating it would find nothing left to collect.
type BulkSendCommand struct {
	MessageIDs         []string
	TargetQueue        string
	ShouldDeleteSource bool
	RepeatCount        int
	MaxPosition        *int
}

// BulkSendPeekedCommand resends pre-fetched (peeked, never locked) message
// bodies without touching the source queue at all. RepeatCount sends each
// body that many times.
type BulkSendPeekedCommand struct {
	Messages    []bulk.PeekedMessage
	TargetQueue string
	RepeatCount int
}

type SendMessageCommand struct {
	QueueName string
	Message   servicebus.MessageData
}

type SendMessagesCommand struct {
	QueueName string
	Messages  []servicebus.MessageData
}

type GetConnectionStatusCommand struct{}

// GetQueueStatsCommand is a shorthand for GetQueueStatisticsCommand, kept as
// a distinct command for callers that only hold a queue name.
type GetQueueStatsCommand struct {
	QueueName string
}

type DisposeConsumerCommand struct{}

type DisposeAllResourcesCommand struct{}

type ResetConnectionCommand struct{}

// CancelOperationCommand cancels an in-flight bulk operation by id, via the
// façade's CancellationRegistry, so Execute's single entry point can drive
// cancellation too.
type CancelOperationCommand struct {
	OperationID string
}

func (SwitchQueueCommand) isCommand()         {}
func (GetCurrentQueueCommand) isCommand()     {}
func (GetQueueStatisticsCommand) isCommand()  {}
func (PeekMessagesCommand) isCommand()        {}
func (ReceiveMessagesCommand) isCommand()     {}
func (CompleteMessageCommand) isCommand()     {}
func (AbandonMessageCommand) isCommand()      {}
func (DeadLetterMessageCommand) isCommand()   {}
func (BulkCompleteCommand) isCommand()        {}
func (BulkDeleteCommand) isCommand()          {}
func (BulkAbandonCommand) isCommand()         {}
func (BulkDeadLetterCommand) isCommand()      {}
func (BulkSendCommand) isCommand()            {}
func (BulkSendPeekedCommand) isCommand()      {}
func (SendMessageCommand) isCommand()         {}
func (SendMessagesCommand) isCommand()        {}
func (GetConnectionStatusCommand) isCommand() {}
func (GetQueueStatsCommand) isCommand()       {}
func (DisposeConsumerCommand) isCommand()     {}
func (DisposeAllResourcesCommand) isCommand() {}
func (ResetConnectionCommand) isCommand()     {}
func (CancelOperationCommand) isCommand()     {}
