package bulk

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// messageReceiver is the narrow slice of *servicebus.ConsumerManager the
// collector depends on, so tests can substitute a fake without a real
// ConsumerManager.
type messageReceiver interface {
	ReceiveMessages(ctx context.Context, maxCount int) ([]*azservicebus.ReceivedMessage, error)
}

// CollectionResult is the outcome of one CollectTargets call: the messages
// classified as targets, the messages classified as non-targets, and
// whichever targets were never found.
type CollectionResult struct {
	TargetMessages    []*azservicebus.ReceivedMessage
	NonTargetMessages []*azservicebus.ReceivedMessage
	NotFound          map[string]servicebus.MessageIdentifier
	Cancelled         bool
}

// Collector implements the collection phase shared across every bulk
// operation: receive messages in chunks, classify each as target or
// non-target, stop on any of five conditions.
type Collector struct {
	config BatchConfig
	logger logr.Logger
}

// NewCollector builds a Collector over config.
func NewCollector(config BatchConfig, logger logr.Logger) *Collector {
	return &Collector{config: config, logger: logger}
}

// CollectTargets receives from receiver in chunks sized by
// min(batchSize - targetsFoundSoFar, len(targets)*2), classifying each
// message by id against targets, until T is empty, the processed-message
// budget (len(targets) * MaxMessagesMultiplier, clamped) is exhausted,
// more than MaxEmptyBatches consecutive empty batches are seen, ctx is cancelled, or
// BulkProcessingTime elapses.
func (c *Collector) CollectTargets(ctx context.Context, receiver messageReceiver, targets []servicebus.MessageIdentifier, batchSize int) (*CollectionResult, error) {
	remaining := make(map[string]servicebus.MessageIdentifier, len(targets))
	for _, t := range targets {
		remaining[t.ID] = t
	}
	targetCount := len(remaining)

	maxToProcess := clampInt(targetCount*c.config.MaxMessagesMultiplier, c.config.MinMessagesToProcess, c.config.MaxMessagesToProcess)

	result := &CollectionResult{}
	seen := make(map[string]struct{})
	processed := 0
	emptyBatches := 0
	deadline := time.Now().Add(c.config.BulkProcessingTime)

	c.logger.Info("starting bulk collection", "targets", targetCount, "batch_size", batchSize, "max_to_process", maxToProcess)

	for len(remaining) > 0 && processed < maxToProcess {
		if ctx.Err() != nil {
			c.logger.Info("bulk collection cancelled", "processed", processed, "targets_found", len(result.TargetMessages))
			result.Cancelled = true
			break
		}
		if time.Now().After(deadline) {
			c.logger.Info("bulk collection wall-clock budget exceeded", "processed", processed)
			break
		}

		maxCount := minInt(batchSize-len(result.TargetMessages), targetCount*2)
		if maxCount <= 0 {
			c.logger.V(1).Info("skipping batch: computed max_count is 0")
			break
		}

		batch, err := receiver.ReceiveMessages(ctx, maxCount)
		if err != nil {
			return nil, err
		}

		if len(batch) == 0 {
			emptyBatches++
			c.logger.V(1).Info("empty batch", "consecutive_empty", emptyBatches)
			if emptyBatches > c.config.MaxEmptyBatches {
				c.logger.Info("queue appears drained for scan horizon", "empty_batches", emptyBatches)
				break
			}
			continue
		}
		emptyBatches = 0

		newTargets := 0
		for _, msg := range batch {
			id := messageID(msg.MessageID)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			processed++

			if id != unknownMessageID {
				if _, ok := remaining[id]; ok {
					delete(remaining, id)
					result.TargetMessages = append(result.TargetMessages, msg)
					newTargets++
					continue
				}
			}
			result.NonTargetMessages = append(result.NonTargetMessages, msg)
		}

		c.logger.V(1).Info("batch processed", "batch_size", len(batch), "new_targets", newTargets)
	}

	result.NotFound = remaining
	c.logger.Info("bulk collection complete",
		"targets_found", len(result.TargetMessages),
		"non_target", len(result.NonTargetMessages),
		"processed", processed,
		"not_found", len(remaining))
	if len(remaining) > 0 {
		c.logger.Info("could not find all target messages", "missing", len(remaining), "processed", processed)
	}
	return result, nil
}
