package bulk

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// unsupportedCopyToDLQMessage is returned whenever a caller asks for a copy
// (should_delete=false) to a dead-letter queue target: DLQ can only be
// written to via the broker-native dead-letter disposition, which always
// removes the message from its source queue.
const unsupportedCopyToDLQMessage = "copy to the dead-letter queue is not supported by Azure Service Bus: " +
	"the broker accepts dead-letter writes only through the native dead-letter disposition, which always " +
	"removes the message from its source queue; use move (with deletion) instead"

// producerFactory creates a Producer bound to queueName, used on demand and
// disposed after each send. Production code wires this to
// servicebus.NewProducerForQueue; tests wire it to a fake.
type producerFactory func(ctx context.Context, queueName string) (sender, error)

// sender is the narrow slice of *servicebus.Producer the bulk sender
// depends on.
type sender interface {
	SendMessages(ctx context.Context, messages []servicebus.MessageData) error
	Dispose(ctx context.Context) error
}

// Sender implements bulk move, copy, move-to-dead-letter, and resend.
type Sender struct {
	collector   *Collector
	consumer    consumerOps
	newProducer producerFactory
	config      BatchConfig
	logger      logr.Logger
}

// NewSender builds a Sender over consumer, creating producers via
// newProducer on demand.
func NewSender(consumer consumerOps, newProducer producerFactory, config BatchConfig, logger logr.Logger) *Sender {
	return &Sender{
		collector:   NewCollector(config, logger),
		consumer:    consumer,
		newProducer: newProducer,
		config:      config,
		logger:      logger,
	}
}

// SendCollected implements move (shouldDelete=true) and copy
// (shouldDelete=false) to another queue (main or dead-letter): it collects
// the target set from the currently bound consumer, sends/dead-letters the
// targets, and disposes the non-targets.
// Copy (shouldDelete=false) to a dead-letter target is rejected up front
// with Unsupported and touches neither the consumer nor any sender.
func (s *Sender) SendCollected(ctx context.Context, targetQueue string, shouldDelete bool, ids []servicebus.MessageIdentifier) (*BulkOperationResult, error) {
	toDLQ := servicebus.QueueTypeFromName(targetQueue) == servicebus.DeadLetter
	if toDLQ && !shouldDelete {
		return nil, &quettyerr.Unsupported{Message: unsupportedCopyToDLQMessage}
	}

	result := NewBulkOperationResult(len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	batchSize := minInt(s.config.BulkChunkSize, len(ids)*2)
	if batchSize <= 0 {
		batchSize = s.config.BulkChunkSize
	}
	collected, err := s.collector.CollectTargets(ctx, s.consumer, ids, batchSize)
	if err != nil {
		return nil, err
	}

	targetMap := make(map[string]servicebus.MessageIdentifier, len(ids))
	for _, id := range ids {
		targetMap[id.ID] = id
	}

	if len(collected.NonTargetMessages) > 0 {
		s.consumer.AbandonMessages(ctx, collected.NonTargetMessages)
	}
	result.NotFound = len(collected.NotFound)

	if len(collected.TargetMessages) == 0 {
		return result, nil
	}

	if toDLQ {
		// Move to dead-letter queue: broker-native disposition, no sender
		// involved, messages are consumed and dead-lettered atomically.
		reason := "Bulk dead letter operation"
		description := "Message sent to DLQ via bulk operation"
		for _, msg := range collected.TargetMessages {
			identifier, ok := targetMap[messageID(msg.MessageID)]
			if !ok {
				continue
			}
			if err := s.consumer.DeadLetterMessage(ctx, msg, &reason, &description); err != nil {
				result.AddFailure(err.Error())
				continue
			}
			result.AddSuccessfulMessage(identifier)
		}
		s.logger.Info("bulk move to dead-letter queue complete", "successful", result.Successful, "failed", result.Failed)
		return result, nil
	}

	if err := s.sendAndDispose(ctx, targetQueue, shouldDelete, collected.TargetMessages, targetMap, result); err != nil {
		return nil, err
	}
	return result, nil
}

// sendAndDispose builds MessageData from each target's body (headers are
// intentionally not copied), sends it to targetQueue in
// chunks of BulkChunkSize, and on success either completes (move) or
// abandons (copy) the source messages, tracking per-message success.
func (s *Sender) sendAndDispose(ctx context.Context, targetQueue string, shouldDelete bool, targets []*azservicebus.ReceivedMessage, targetMap map[string]servicebus.MessageIdentifier, result *BulkOperationResult) error {
	producer, err := s.newProducer(ctx, targetQueue)
	if err != nil {
		return &quettyerr.ConnectionFailed{Reason: err.Error()}
	}
	defer func() {
		if cerr := producer.Dispose(ctx); cerr != nil {
			s.logger.Error(cerr, "failed to dispose producer, continuing")
		}
	}()

	messages := make([]servicebus.MessageData, len(targets))
	for i, msg := range targets {
		messages[i] = servicebus.MessageData{Body: msg.Body}
	}

	chunkSize := s.config.BulkChunkSize
	if len(messages) > chunkSize {
		s.logger.Info("splitting messages into chunks", "total", len(messages), "chunk_size", chunkSize, "queue", targetQueue)
		for start := 0; start < len(messages); start += chunkSize {
			end := minInt(start+chunkSize, len(messages))
			if err := producer.SendMessages(ctx, messages[start:end]); err != nil {
				return &quettyerr.ConnectionFailed{Reason: err.Error()}
			}
		}
	} else if err := producer.SendMessages(ctx, messages); err != nil {
		return &quettyerr.ConnectionFailed{Reason: err.Error()}
	}

	for _, msg := range targets {
		identifier, ok := targetMap[messageID(msg.MessageID)]
		if !ok {
			continue
		}
		var disposeErr error
		if shouldDelete {
			disposeErr = s.consumer.CompleteMessage(ctx, msg)
		} else {
			disposeErr = s.consumer.AbandonMessage(ctx, msg)
		}
		if disposeErr != nil {
			result.AddFailure(disposeErr.Error())
			continue
		}
		result.AddSuccessfulMessage(identifier)
	}
	return nil
}

// PeekedMessage is one pre-fetched (peeked, never receive-locked) message
// supplied by the caller for the resend-without-delete path: identifier and
// raw body, with no receiver interaction at all.
type PeekedMessage struct {
	Identifier servicebus.MessageIdentifier
	Body       []byte
}

// SendPeeked implements resend-from-DLQ without delete: it sends copies of
// pre-fetched message data to targetQueue without taking a
// receive-lock on the source and without any source-side disposition,
// preserving DLQ contents verbatim. Like SendCollected, a dead-letter
// target is rejected as Unsupported since this path never deletes the
// source, making it a copy in every case that matters.
func (s *Sender) SendPeeked(ctx context.Context, targetQueue string, peeked []PeekedMessage) (*BulkOperationResult, error) {
	if servicebus.QueueTypeFromName(targetQueue) == servicebus.DeadLetter {
		return nil, &quettyerr.Unsupported{Message: unsupportedCopyToDLQMessage}
	}

	result := NewBulkOperationResult(len(peeked))
	if len(peeked) == 0 {
		return result, nil
	}

	producer, err := s.newProducer(ctx, targetQueue)
	if err != nil {
		return nil, &quettyerr.ConnectionFailed{Reason: err.Error()}
	}
	defer func() {
		if cerr := producer.Dispose(ctx); cerr != nil {
			s.logger.Error(cerr, "failed to dispose producer, continuing")
		}
	}()

	chunkSize := s.config.BulkChunkSize
	for start := 0; start < len(peeked); start += chunkSize {
		if ctx.Err() != nil {
			break
		}
		end := minInt(start+chunkSize, len(peeked))
		chunk := peeked[start:end]

		messages := make([]servicebus.MessageData, len(chunk))
		for i, p := range chunk {
			messages[i] = servicebus.MessageData{Body: p.Body}
		}

		if err := producer.SendMessages(ctx, messages); err != nil {
			for range chunk {
				result.AddFailure(err.Error())
			}
			continue
		}
		for _, p := range chunk {
			result.AddSuccessfulMessage(p.Identifier)
		}
	}

	s.logger.Info("bulk resend-without-delete complete", "successful", result.Successful, "failed", result.Failed)
	return result, nil
}
