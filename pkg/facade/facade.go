package facade

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/dawidpereira/quetty/pkg/bulk"
	"github.com/dawidpereira/quetty/pkg/management"
	"github.com/dawidpereira/quetty/pkg/quettyerr"
	"github.com/dawidpereira/quetty/pkg/servicebus"
	"github.com/dawidpereira/quetty/pkg/stats"
)

// Facade is the single entry point the UI layer talks to: Execute accepts
// one Command and returns one Response, fanning out to the consumer,
// producers, the bulk engine, and the statistics service as needed. It owns
// no authentication itself; callers are expected to have already obtained a
// usable *azservicebus.Client and management client through pkg/auth.
type Facade struct {
	client     *azservicebus.Client
	consumer   *servicebus.ConsumerManager
	management *management.CachingClient
	stats      *stats.Service
	engine     *bulk.Engine
	cancels    *CancellationRegistry
	config     bulk.BatchConfig
	logger     logr.Logger
}

// New builds a Facade wiring every dependency explicitly: client creates
// producers on demand, consumer owns the single active receiver, management
// backs the statistics service, and config tunes the bulk engine.
func New(client *azservicebus.Client, consumer *servicebus.ConsumerManager, managementClient *management.CachingClient, statsService *stats.Service, config bulk.BatchConfig, logger logr.Logger) *Facade {
	newProducer := func(ctx context.Context, queueName string) (*servicebus.Producer, error) {
		return servicebus.NewProducerForQueue(ctx, client, queueName)
	}
	return &Facade{
		client:     client,
		consumer:   consumer,
		management: managementClient,
		stats:      statsService,
		engine:     bulk.NewEngine(consumer, newProducer, config, logger),
		cancels:    NewCancellationRegistry(),
		config:     config,
		logger:     logger,
	}
}

// Execute dispatches cmd to its handler and returns the matching Response.
func (f *Facade) Execute(ctx context.Context, cmd Command) (Response, error) {
	switch c := cmd.(type) {
	case SwitchQueueCommand:
		return f.switchQueue(ctx, c)
	case GetCurrentQueueCommand:
		return CurrentQueueResponse{Queue: f.consumer.CurrentQueue()}, nil
	case GetQueueStatisticsCommand:
		result, available := f.stats.GetQueueStats(ctx, c.QueueName)
		return QueueStatisticsResponse{Stats: result, Available: available}, nil
	case GetQueueStatsCommand:
		result, available := f.stats.GetQueueStats(ctx, c.QueueName)
		return QueueStatisticsResponse{Stats: result, Available: available}, nil
	case PeekMessagesCommand:
		messages, err := f.consumer.PeekMessages(ctx, c.MaxCount, c.FromSequence)
		if err != nil {
			return nil, err
		}
		return MessagesPeekedResponse{Messages: messages}, nil
	case ReceiveMessagesCommand:
		messages, err := f.consumer.ReceiveMessages(ctx, c.MaxCount)
		if err != nil {
			return nil, err
		}
		return MessagesReceivedResponse{Messages: messages}, nil
	case CompleteMessageCommand:
		return f.singleDisposition(ctx, c.Identifier, f.consumer.CompleteMessage, MessageCompletedResponse{})
	case AbandonMessageCommand:
		return f.singleDisposition(ctx, c.Identifier, f.consumer.AbandonMessage, MessageAbandonedResponse{})
	case DeadLetterMessageCommand:
		return f.singleDisposition(ctx, c.Identifier, func(ctx context.Context, msg *azservicebus.ReceivedMessage) error {
			return f.consumer.DeadLetterMessage(ctx, msg, c.Reason, c.Description)
		}, MessageDeadLetteredResponse{})
	case BulkCompleteCommand:
		return f.runBulk(ctx, c.MessageIDs, f.engine.Delete)
	case BulkDeleteCommand:
		return f.runBulk(ctx, c.MessageIDs, f.engine.Delete)
	case BulkAbandonCommand:
		return f.runBulk(ctx, c.MessageIDs, f.engine.Abandon)
	case BulkDeadLetterCommand:
		return f.bulkDeadLetter(ctx, c)
	case BulkSendCommand:
		return f.bulkSend(ctx, c)
	case BulkSendPeekedCommand:
		return f.bulkSendPeeked(ctx, c)
	case SendMessageCommand:
		return f.sendMessage(ctx, c)
	case SendMessagesCommand:
		return f.sendMessages(ctx, c)
	case GetConnectionStatusCommand:
		return ConnectionStatusResponse{ConsumerReady: f.consumer.IsConsumerReady(), CurrentQueue: f.consumer.CurrentQueue()}, nil
	case DisposeConsumerCommand:
		if err := f.consumer.DisposeConsumer(ctx); err != nil {
			return nil, err
		}
		return ConsumerDisposedResponse{}, nil
	case DisposeAllResourcesCommand:
		if err := f.consumer.DisposeConsumer(ctx); err != nil {
			return nil, err
		}
		f.management.InvalidateAll()
		return AllResourcesDisposedResponse{}, nil
	case ResetConnectionCommand:
		if err := f.consumer.DisposeConsumer(ctx); err != nil {
			return nil, err
		}
		f.management.InvalidateAll()
		return ConnectionResetResponse{}, nil
	case CancelOperationCommand:
		id, err := uuid.Parse(c.OperationID)
		if err != nil {
			return nil, &quettyerr.InternalError{Debug: fmt.Sprintf("invalid operation id %q: %v", c.OperationID, err)}
		}
		if err := f.cancels.Cancel(id); err != nil {
			return nil, err
		}
		return OperationCancelledResponse{}, nil
	default:
		return nil, &quettyerr.Unsupported{Message: fmt.Sprintf("unrecognized command %T", cmd)}
	}
}

func (f *Facade) switchQueue(ctx context.Context, c SwitchQueueCommand) (Response, error) {
	var info servicebus.QueueInfo
	if c.QueueType == servicebus.DeadLetter {
		info = servicebus.NewDeadLetterQueue(c.QueueName)
	} else {
		info = servicebus.NewMainQueue(c.QueueName)
	}
	if err := f.consumer.SwitchQueue(ctx, info); err != nil {
		return nil, err
	}
	return QueueSwitchedResponse{Queue: info}, nil
}

func (f *Facade) singleDisposition(ctx context.Context, identifier servicebus.MessageIdentifier, apply func(context.Context, *azservicebus.ReceivedMessage) error, ok Response) (Response, error) {
	msg, err := f.consumer.FindMessage(ctx, identifier.ID, identifier.Sequence)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, &quettyerr.InternalError{Debug: fmt.Sprintf("message %s not found in current receive window", identifier.ID)}
	}
	if err := apply(ctx, msg); err != nil {
		return nil, err
	}
	return ok, nil
}

// runBulk registers a fresh BulkOperationContext for op's duration, so
// CancelOperationCommand can reach it by id while it runs.
func (f *Facade) runBulk(ctx context.Context, messageIDs []string, op func(*bulk.BulkOperationContext, []servicebus.MessageIdentifier) (*bulk.BulkOperationResult, error)) (Response, error) {
	opCtx := bulk.NewBulkOperationContext(ctx)
	f.cancels.Register(opCtx.OperationID, opCtx.Cancel)
	defer f.cancels.Unregister(opCtx.OperationID)

	ids := toIdentifiers(messageIDs)
	result, err := op(opCtx, ids)
	if err != nil {
		return nil, err
	}
	return BulkOperationResponse{OperationID: opCtx.OperationID, Result: result, OrderWarned: len(ids) > 1}, nil
}

func (f *Facade) bulkDeadLetter(ctx context.Context, c BulkDeadLetterCommand) (Response, error) {
	opCtx := bulk.NewBulkOperationContext(ctx)
	f.cancels.Register(opCtx.OperationID, opCtx.Cancel)
	defer f.cancels.Unregister(opCtx.OperationID)

	result, warned, err := f.engine.DeadLetter(opCtx, toIdentifiers(c.MessageIDs), c.Reason, c.Description)
	if err != nil {
		return nil, err
	}
	return BulkOperationResponse{OperationID: opCtx.OperationID, Result: result, OrderWarned: warned}, nil
}

func (f *Facade) bulkSend(ctx context.Context, c BulkSendCommand) (Response, error) {
	opCtx := bulk.NewBulkOperationContext(ctx)
	f.cancels.Register(opCtx.OperationID, opCtx.Cancel)
	defer f.cancels.Unregister(opCtx.OperationID)

	ids := toIdentifiers(c.MessageIDs)
	repeats := c.RepeatCount
	if repeats < 1 {
		repeats = 1
	}
	if c.ShouldDeleteSource && repeats > 1 {
		f.logger.Info("repeat_count > 1 ignored for move: source is consumed on first pass", "requested", repeats)
		repeats = 1
	}

	merged := bulk.NewBulkOperationResult(0)
	var warned bool
	for i := 0; i < repeats; i++ {
		result, w, err := f.engine.Send(opCtx, c.TargetQueue, c.ShouldDeleteSource, ids)
		if err != nil {
			return nil, err
		}
		mergeResult(merged, result)
		warned = warned || w
	}
	return BulkOperationResponse{OperationID: opCtx.OperationID, Result: merged, OrderWarned: warned}, nil
}

func (f *Facade) bulkSendPeeked(ctx context.Context, c BulkSendPeekedCommand) (Response, error) {
	opCtx := bulk.NewBulkOperationContext(ctx)
	f.cancels.Register(opCtx.OperationID, opCtx.Cancel)
	defer f.cancels.Unregister(opCtx.OperationID)

	repeats := c.RepeatCount
	if repeats < 1 {
		repeats = 1
	}

	merged := bulk.NewBulkOperationResult(0)
	var warned bool
	for i := 0; i < repeats; i++ {
		result, w, err := f.engine.SendPeeked(opCtx, c.TargetQueue, c.Messages)
		if err != nil {
			return nil, err
		}
		mergeResult(merged, result)
		warned = warned || w
	}
	return BulkOperationResponse{OperationID: opCtx.OperationID, Result: merged, OrderWarned: warned}, nil
}

func (f *Facade) sendMessage(ctx context.Context, c SendMessageCommand) (Response, error) {
	producer, err := servicebus.NewProducerForQueue(ctx, f.client, c.QueueName)
	if err != nil {
		return nil, &quettyerr.ConnectionFailed{Reason: err.Error()}
	}
	defer func() {
		if cerr := producer.Dispose(ctx); cerr != nil {
			f.logger.Error(cerr, "failed to dispose producer, continuing")
		}
	}()
	if err := producer.SendMessage(ctx, c.Message); err != nil {
		return nil, &quettyerr.ConnectionFailed{Reason: err.Error()}
	}
	return MessageSentResponse{}, nil
}

func (f *Facade) sendMessages(ctx context.Context, c SendMessagesCommand) (Response, error) {
	producer, err := servicebus.NewProducerForQueue(ctx, f.client, c.QueueName)
	if err != nil {
		return nil, &quettyerr.ConnectionFailed{Reason: err.Error()}
	}
	defer func() {
		if cerr := producer.Dispose(ctx); cerr != nil {
			f.logger.Error(cerr, "failed to dispose producer, continuing")
		}
	}()
	if err := producer.SendMessages(ctx, c.Messages); err != nil {
		return nil, &quettyerr.ConnectionFailed{Reason: err.Error()}
	}
	return MessagesSentResponse{}, nil
}

func toIdentifiers(ids []string) []servicebus.MessageIdentifier {
	out := make([]servicebus.MessageIdentifier, len(ids))
	for i, id := range ids {
		out[i] = servicebus.MessageIdentifier{ID: id}
	}
	return out
}

// mergeResult folds src's counters and details into dst, used to combine
// BulkSendCommand/BulkSendPeekedCommand's repeated passes into one response.
func mergeResult(dst, src *bulk.BulkOperationResult) {
	dst.TotalRequested += src.TotalRequested
	dst.Successful += src.Successful
	dst.Failed += src.Failed
	dst.NotFound += src.NotFound
	dst.ErrorDetails = append(dst.ErrorDetails, src.ErrorDetails...)
	dst.SuccessfulIDs = append(dst.SuccessfulIDs, src.SuccessfulIDs...)
}
