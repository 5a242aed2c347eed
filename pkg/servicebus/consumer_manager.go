package servicebus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

// defaultLockTimeout bounds how long a caller waits to acquire the receiver
// lock before giving up.
const defaultLockTimeout = 5 * time.Second

// receiverClient is the narrow slice of *azservicebus.Receiver this package
// depends on, so tests can substitute a fake without standing up a broker.
type receiverClient interface {
	PeekMessages(ctx context.Context, maxCount int, opts *azservicebus.PeekMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	ReceiveMessages(ctx context.Context, maxCount int, opts *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, opts *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, opts *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, opts *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

// receiverFactory creates a receiverClient bound to queueInfo. Production
// code wires this to azservicebus.Client.NewReceiverForQueue; tests wire it
// to a fake.
type receiverFactory func(ctx context.Context, info QueueInfo) (receiverClient, error)

// ConsumerManager owns the single active receiver bound to one QueueInfo at a
// time. switch_queue is a no-op when already bound to the same queue;
// otherwise it best-effort disposes the current receiver and creates a new
// one. Broker operations are serialized through recvLock because AMQP links
// do not tolerate interleaved operations; acquisition is bounded by
// lockTimeout so a stuck broker call cannot wedge every other caller
// indefinitely. The struct mutex mu guards only the receiver/queue pointer
// swaps and is never held across a broker call.
type ConsumerManager struct {
	mu          sync.Mutex
	recvLock    chan struct{}
	lockTimeout time.Duration

	newReceiver receiverFactory
	logger      logr.Logger

	currentConsumer receiverClient
	currentQueue    *QueueInfo
}

// NewConsumerManager builds a ConsumerManager bound to client for receiver
// creation. lockTimeout <= 0 selects the 5s default.
func NewConsumerManager(client *azservicebus.Client, lockTimeout time.Duration, logger logr.Logger) *ConsumerManager {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &ConsumerManager{
		recvLock:    make(chan struct{}, 1),
		lockTimeout: lockTimeout,
		logger:      logger,
		newReceiver: func(ctx context.Context, info QueueInfo) (receiverClient, error) {
			opts := &azservicebus.ReceiverOptions{ReceiveMode: azservicebus.ReceiveModePeekLock}
			if info.Type == DeadLetter {
				opts.SubQueue = azservicebus.SubQueueDeadLetter
			}
			return client.NewReceiverForQueue(info.BaseName(), opts)
		},
	}
}

// acquire takes the receiver lock, failing with OperationTimeout once
// lockTimeout elapses. The returned release func must be called exactly once.
func (c *ConsumerManager) acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(c.lockTimeout)
	defer timer.Stop()
	select {
	case c.recvLock <- struct{}{}:
		return func() { <-c.recvLock }, nil
	case <-ctx.Done():
		return nil, &quettyerr.ConnectionFailed{Reason: ctx.Err().Error()}
	case <-timer.C:
		return nil, &quettyerr.OperationTimeout{Operation: "acquire receiver lock"}
	}
}

// SwitchQueue binds the manager to queueInfo, disposing any previously bound
// receiver. Switching to the queue already bound is a no-op.
func (c *ConsumerManager) SwitchQueue(ctx context.Context, queueInfo QueueInfo) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	current, currentQueue := c.snapshot()
	if currentQueue != nil && currentQueue.Name == queueInfo.Name && currentQueue.Type == queueInfo.Type {
		c.logger.V(1).Info("already connected to queue", "queue", queueInfo.Name)
		return nil
	}

	if current != nil {
		if err := current.Close(ctx); err != nil {
			c.logger.Error(err, "failed to dispose existing consumer, continuing anyway")
		}
	}

	consumer, err := c.newReceiver(ctx, queueInfo)
	if err != nil {
		c.setBound(nil, nil)
		return &quettyerr.ConnectionFailed{Reason: fmt.Sprintf("failed to create consumer for queue %s: %v", queueInfo.Name, err)}
	}

	c.setBound(consumer, &queueInfo)
	c.logger.Info("switched queue", "queue", queueInfo.Name, "type", queueInfo.Type.String())
	return nil
}

func (c *ConsumerManager) snapshot() (receiverClient, *QueueInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentConsumer, c.currentQueue
}

func (c *ConsumerManager) setBound(consumer receiverClient, queue *QueueInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentConsumer = consumer
	c.currentQueue = queue
}

// CurrentQueue returns the queue the manager is currently bound to, if any.
func (c *ConsumerManager) CurrentQueue() *QueueInfo {
	_, queue := c.snapshot()
	return queue
}

// IsConsumerReady reports whether a receiver is currently bound.
func (c *ConsumerManager) IsConsumerReady() bool {
	consumer, _ := c.snapshot()
	return consumer != nil
}

// withConsumer acquires the receiver lock and runs op against the bound
// receiver, holding the lock for exactly the duration of the broker call.
func (c *ConsumerManager) withConsumer(ctx context.Context, op func(receiverClient) error) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	consumer, _ := c.snapshot()
	if consumer == nil {
		return &quettyerr.ConsumerNotFound{}
	}
	return op(consumer)
}

// PeekMessages non-destructively reads up to maxCount messages with
// sequence >= fromSequence (nil means from the start of the queue).
func (c *ConsumerManager) PeekMessages(ctx context.Context, maxCount int, fromSequence *int64) ([]Message, error) {
	var models []Message
	err := c.withConsumer(ctx, func(consumer receiverClient) error {
		opts := &azservicebus.PeekMessagesOptions{}
		if fromSequence != nil {
			opts.FromSequenceNumber = fromSequence
		}
		raw, err := consumer.PeekMessages(ctx, maxCount, opts)
		if err != nil {
			return &quettyerr.MessageReceiveFailed{Reason: err.Error()}
		}
		models = convertMessages(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

// ReceiveMessages performs a locked receive of up to maxCount messages.
// Returned messages must be completed, abandoned, or dead-lettered before
// their broker-side lock expires.
func (c *ConsumerManager) ReceiveMessages(ctx context.Context, maxCount int) ([]*azservicebus.ReceivedMessage, error) {
	var raw []*azservicebus.ReceivedMessage
	err := c.withConsumer(ctx, func(consumer receiverClient) error {
		messages, err := consumer.ReceiveMessages(ctx, maxCount, nil)
		if err != nil {
			return &quettyerr.MessageReceiveFailed{Reason: err.Error()}
		}
		raw = messages
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// CompleteMessage acknowledges a locked message, removing it from the queue.
func (c *ConsumerManager) CompleteMessage(ctx context.Context, msg *azservicebus.ReceivedMessage) error {
	return c.withConsumer(ctx, func(consumer receiverClient) error {
		if err := consumer.CompleteMessage(ctx, msg, nil); err != nil {
			return &quettyerr.MessageCompleteFailed{Reason: err.Error()}
		}
		return nil
	})
}

// CompleteMessages completes msgs one at a time, fail-fast: it stops and
// returns at the first failure, leaving the remainder locked to expire
// naturally.
func (c *ConsumerManager) CompleteMessages(ctx context.Context, msgs []*azservicebus.ReceivedMessage) error {
	return c.withConsumer(ctx, func(consumer receiverClient) error {
		for _, msg := range msgs {
			if err := consumer.CompleteMessage(ctx, msg, nil); err != nil {
				return &quettyerr.MessageCompleteFailed{Reason: err.Error()}
			}
		}
		return nil
	})
}

// AbandonMessage releases a locked message, making it immediately redeliverable.
func (c *ConsumerManager) AbandonMessage(ctx context.Context, msg *azservicebus.ReceivedMessage) error {
	return c.withConsumer(ctx, func(consumer receiverClient) error {
		if err := consumer.AbandonMessage(ctx, msg, nil); err != nil {
			return &quettyerr.MessageAbandonFailed{Reason: err.Error()}
		}
		return nil
	})
}

// AbandonMessages abandons msgs in a single call's worth of sequential
// attempts; individual failures are logged but do not abort the remainder
// and do not count against the caller's operation.
func (c *ConsumerManager) AbandonMessages(ctx context.Context, msgs []*azservicebus.ReceivedMessage) {
	err := c.withConsumer(ctx, func(consumer receiverClient) error {
		for _, msg := range msgs {
			if err := consumer.AbandonMessage(ctx, msg, nil); err != nil {
				c.logger.Error(err, "failed to abandon message, ignoring")
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error(err, "cannot abandon messages")
	}
}

// DeadLetterMessage moves a locked message to the dead-letter queue atomically.
func (c *ConsumerManager) DeadLetterMessage(ctx context.Context, msg *azservicebus.ReceivedMessage, reason, description *string) error {
	return c.withConsumer(ctx, func(consumer receiverClient) error {
		opts := &azservicebus.DeadLetterOptions{Reason: reason, ErrorDescription: description}
		if err := consumer.DeadLetterMessage(ctx, msg, opts); err != nil {
			return &quettyerr.MessageDeadLetterFailed{Reason: err.Error()}
		}
		return nil
	})
}

// FindMessage scans one receive batch (at most 100 messages) looking for a
// message matching id and sequence. This is a best-effort, single-batch
// scan used by single-message operations, not a retrying search.
func (c *ConsumerManager) FindMessage(ctx context.Context, id string, sequence int64) (*azservicebus.ReceivedMessage, error) {
	messages, err := c.ReceiveMessages(ctx, 100)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if msg.MessageID == id && msg.SequenceNumber != nil && *msg.SequenceNumber == sequence {
			return msg, nil
		}
	}
	return nil, nil
}

// DisposeConsumer closes and clears the currently bound receiver, if any.
func (c *ConsumerManager) DisposeConsumer(ctx context.Context) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	consumer, _ := c.snapshot()
	if consumer == nil {
		return nil
	}
	closeErr := consumer.Close(ctx)
	c.setBound(nil, nil)
	if closeErr != nil {
		return &quettyerr.InternalError{Debug: fmt.Sprintf("failed to dispose consumer: %v", closeErr)}
	}
	return nil
}

func convertMessages(raw []*azservicebus.ReceivedMessage) []Message {
	models := make([]Message, 0, len(raw))
	for _, msg := range raw {
		m, ok := convertMessage(msg)
		if ok {
			models = append(models, m)
		}
	}
	return models
}

// convertMessage filters out messages that fail to convert (missing id)
// rather than propagating an error, since a single malformed message should
// not fail an entire page.
func convertMessage(msg *azservicebus.ReceivedMessage) (Message, bool) {
	if msg.MessageID == "" {
		return Message{}, false
	}
	enqueued := time.Time{}
	if msg.EnqueuedTime != nil {
		enqueued = *msg.EnqueuedTime
	}
	var seq int64
	if msg.SequenceNumber != nil {
		seq = *msg.SequenceNumber
	}
	return Message{
		Sequence:      seq,
		ID:            msg.MessageID,
		EnqueuedAt:    enqueued,
		DeliveryCount: msg.DeliveryCount,
		State:         Active,
		Body:          ParseBody(msg.Body),
	}, true
}
