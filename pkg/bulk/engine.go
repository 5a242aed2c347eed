package bulk

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// warningThreshold is the message count above which the
// order-is-not-guaranteed warning applies: any operation moving more than
// one message between queues.
const warningThreshold = 1

// Engine plans and drives bulk move/copy/delete/dead-letter/resend across
// batches. It owns no consumer or producer itself; both are supplied by the
// caller (the command façade) so the consumer's single-receiver-at-a-time
// discipline stays centralized there.
type Engine struct {
	deleter *Deleter
	sender  *Sender
	config  BatchConfig
	logger  logr.Logger

	mu        sync.Mutex
	lastStats servicebus.OperationStats
}

// NewEngine builds an Engine over consumer, creating destination producers
// via newProducer on demand.
func NewEngine(consumer consumerOps, newProducer func(ctx context.Context, queueName string) (*servicebus.Producer, error), config BatchConfig, logger logr.Logger) *Engine {
	adaptedFactory := func(ctx context.Context, queueName string) (sender, error) {
		return newProducer(ctx, queueName)
	}
	return &Engine{
		deleter: NewDeleter(consumer, config, logger),
		sender:  NewSender(consumer, adaptedFactory, config, logger),
		config:  config,
		logger:  logger,
	}
}

// LastStats returns successful/failed/total counters for the most recently
// completed operation.
func (e *Engine) LastStats() servicebus.OperationStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}

func (e *Engine) recordStats(result *BulkOperationResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastStats = servicebus.OperationStats{
		Successful: uint64(result.Successful),
		Failed:     uint64(result.Failed),
		Total:      uint64(result.TotalRequested),
	}
}

// warns reports whether the total requested count crosses the
// order-is-not-guaranteed warning threshold.
func warns(totalRequested int) bool {
	return totalRequested > warningThreshold
}

// Delete runs the Collecting -> Dispatching -> Finalizing state machine for
// bulk delete/complete: completes every collected target, abandons every
// collected non-target.
func (e *Engine) Delete(opCtx *BulkOperationContext, ids []servicebus.MessageIdentifier) (*BulkOperationResult, error) {
	return e.runTargetOperation(opCtx, ids, e.deleter.Delete)
}

// Abandon releases every collected target back to the source queue instead
// of completing it.
func (e *Engine) Abandon(opCtx *BulkOperationContext, ids []servicebus.MessageIdentifier) (*BulkOperationResult, error) {
	return e.runTargetOperation(opCtx, ids, e.deleter.Abandon)
}

// DeadLetter moves every collected target to the dead-letter queue with the
// given reason/description.
func (e *Engine) DeadLetter(opCtx *BulkOperationContext, ids []servicebus.MessageIdentifier, reason, description *string) (*BulkOperationResult, bool, error) {
	opCtx.transition(Collecting)
	result, err := e.deleter.DeadLetter(opCtx.Context(), ids, reason, description)
	if err != nil {
		opCtx.transition(Failed)
		return nil, false, err
	}
	opCtx.transition(Dispatching)
	opCtx.transition(Finalizing)
	if opCtx.IsCancelled() {
		opCtx.transition(Cancelled)
	} else {
		opCtx.transition(Complete)
	}
	e.recordStats(result)
	return result, warns(result.TotalRequested), nil
}

func (e *Engine) runTargetOperation(opCtx *BulkOperationContext, ids []servicebus.MessageIdentifier, op func(ctx context.Context, ids []servicebus.MessageIdentifier) (*BulkOperationResult, error)) (*BulkOperationResult, error) {
	opCtx.transition(Collecting)
	result, err := op(opCtx.Context(), ids)
	if err != nil {
		opCtx.transition(Failed)
		return nil, err
	}
	opCtx.transition(Dispatching)
	opCtx.transition(Finalizing)
	if opCtx.IsCancelled() {
		opCtx.transition(Cancelled)
	} else {
		opCtx.transition(Complete)
	}
	e.recordStats(result)
	return result, nil
}

// Send runs move (shouldDelete=true) or copy (shouldDelete=false) to
// targetQueue. Returns the result and whether the order-is-not-guaranteed
// warning applies.
func (e *Engine) Send(opCtx *BulkOperationContext, targetQueue string, shouldDelete bool, ids []servicebus.MessageIdentifier) (*BulkOperationResult, bool, error) {
	opCtx.transition(Collecting)
	result, err := e.sender.SendCollected(opCtx.Context(), targetQueue, shouldDelete, ids)
	if err != nil {
		opCtx.transition(Failed)
		return nil, false, err
	}
	opCtx.transition(Dispatching)
	opCtx.transition(Finalizing)
	if opCtx.IsCancelled() {
		opCtx.transition(Cancelled)
	} else {
		opCtx.transition(Complete)
	}
	e.recordStats(result)
	return result, warns(result.TotalRequested), nil
}

// SendPeeked runs resend-from-DLQ without delete: no collection phase, no
// receive lock on the source, send-only.
func (e *Engine) SendPeeked(opCtx *BulkOperationContext, targetQueue string, peeked []PeekedMessage) (*BulkOperationResult, bool, error) {
	opCtx.transition(Dispatching)
	result, err := e.sender.SendPeeked(opCtx.Context(), targetQueue, peeked)
	if err != nil {
		opCtx.transition(Failed)
		return nil, false, err
	}
	opCtx.transition(Finalizing)
	if opCtx.IsCancelled() {
		opCtx.transition(Cancelled)
	} else {
		opCtx.transition(Complete)
	}
	e.recordStats(result)
	return result, warns(result.TotalRequested), nil
}
