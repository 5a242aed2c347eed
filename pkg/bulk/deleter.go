package bulk

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// consumerOps is the slice of *servicebus.ConsumerManager the bulk engine's
// deleter/sender depend on for per-message dispositions, beyond the plain
// receive already captured by messageReceiver.
type consumerOps interface {
	messageReceiver
	CompleteMessage(ctx context.Context, msg *azservicebus.ReceivedMessage) error
	AbandonMessage(ctx context.Context, msg *azservicebus.ReceivedMessage) error
	AbandonMessages(ctx context.Context, msgs []*azservicebus.ReceivedMessage)
	DeadLetterMessage(ctx context.Context, msg *azservicebus.ReceivedMessage, reason, description *string) error
}

// Deleter implements bulk delete and the closely related bulk
// abandon/dead-letter operations that, like delete, act on a collected
// target set without sending messages anywhere.
type Deleter struct {
	collector *Collector
	consumer  consumerOps
	config    BatchConfig
	logger    logr.Logger
}

// NewDeleter builds a Deleter over consumer.
func NewDeleter(consumer consumerOps, config BatchConfig, logger logr.Logger) *Deleter {
	return &Deleter{
		collector: NewCollector(config, logger),
		consumer:  consumer,
		config:    config,
		logger:    logger,
	}
}

// dispositionFunc applies one broker disposition to a single message.
type dispositionFunc func(ctx context.Context, msg *azservicebus.ReceivedMessage) error

// collectAndDispose is the shared core of Delete/Abandon/DeadLetter: collect
// the target set, apply dispose to each collected target independently,
// continuing past per-message failures, and abandon non-targets in a single
// best-effort call.
func (d *Deleter) collectAndDispose(ctx context.Context, ids []servicebus.MessageIdentifier, dispose dispositionFunc) (*BulkOperationResult, error) {
	result := NewBulkOperationResult(len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	batchSize := minInt(10, len(ids))
	collected, err := d.collector.CollectTargets(ctx, d.consumer, ids, batchSize)
	if err != nil {
		return nil, err
	}

	targetMap := make(map[string]servicebus.MessageIdentifier, len(ids))
	for _, id := range ids {
		targetMap[id.ID] = id
	}

	for _, msg := range collected.TargetMessages {
		id := messageID(msg.MessageID)
		identifier, ok := targetMap[id]
		if !ok {
			continue
		}
		if err := dispose(ctx, msg); err != nil {
			result.AddFailure(err.Error())
			continue
		}
		result.AddSuccessfulMessage(identifier)
	}

	if len(collected.NonTargetMessages) > 0 {
		d.consumer.AbandonMessages(ctx, collected.NonTargetMessages)
	}

	result.NotFound = len(collected.NotFound)
	d.logger.Info("bulk disposition complete",
		"total_requested", result.TotalRequested,
		"successful", result.Successful,
		"failed", result.Failed,
		"not_found", result.NotFound)
	return result, nil
}

// Delete completes every collected target and abandons every collected
// non-target. The façade's BulkComplete command routes here too: completing
// a message removes it from the queue, the same broker-level effect as
// delete.
func (d *Deleter) Delete(ctx context.Context, ids []servicebus.MessageIdentifier) (*BulkOperationResult, error) {
	return d.collectAndDispose(ctx, ids, d.consumer.CompleteMessage)
}

// Abandon releases every collected target back to the queue instead of
// completing it, while still tracking per-message success/failure.
func (d *Deleter) Abandon(ctx context.Context, ids []servicebus.MessageIdentifier) (*BulkOperationResult, error) {
	return d.collectAndDispose(ctx, ids, d.consumer.AbandonMessage)
}

// DeadLetter moves every collected target to the dead-letter queue with
// reason/description, per message. Non-targets are abandoned.
func (d *Deleter) DeadLetter(ctx context.Context, ids []servicebus.MessageIdentifier, reason, description *string) (*BulkOperationResult, error) {
	return d.collectAndDispose(ctx, ids, func(ctx context.Context, msg *azservicebus.ReceivedMessage) error {
		return d.consumer.DeadLetterMessage(ctx, msg, reason, description)
	})
}
