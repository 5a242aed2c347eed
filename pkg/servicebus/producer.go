package servicebus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// senderClient is the narrow slice of *azservicebus.Sender Producer depends
// on, so tests can substitute a fake.
type senderClient interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, opts *azservicebus.SendMessageOptions) error
	NewMessageBatch(ctx context.Context, opts *azservicebus.MessageBatchOptions) (*azservicebus.MessageBatch, error)
	SendMessageBatch(ctx context.Context, batch *azservicebus.MessageBatch, opts *azservicebus.SendMessageBatchOptions) error
	Close(ctx context.Context) error
}

// Producer is a thread-safe wrapper around a single Azure Service Bus
// sender. The underlying sender is protected by a mutex; after Dispose all
// further sends return an error rather than panicking.
type Producer struct {
	mu     sync.Mutex
	sender senderClient
}

// NewProducer wraps an already-created sender.
func NewProducer(sender senderClient) *Producer {
	return &Producer{sender: sender}
}

// NewProducerForQueue creates a sender for queueName on client and wraps it
// in a Producer.
func NewProducerForQueue(ctx context.Context, client *azservicebus.Client, queueName string) (*Producer, error) {
	sender, err := client.NewSender(queueName, nil)
	if err != nil {
		return nil, fmt.Errorf("creating sender for queue %s: %w", queueName, err)
	}
	return NewProducer(sender), nil
}

// SendMessage sends a single message to the queue.
func (p *Producer) SendMessage(ctx context.Context, message MessageData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sender == nil {
		return fmt.Errorf("sender already disposed")
	}
	return p.sender.SendMessage(ctx, toAzMessage(message), nil)
}

// SendMessages sends messages as AMQP batches, flushing and starting a new
// batch whenever the current one fills up.
func (p *Producer) SendMessages(ctx context.Context, messages []MessageData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sender == nil {
		return fmt.Errorf("sender already disposed")
	}

	batch, err := p.sender.NewMessageBatch(ctx, nil)
	if err != nil {
		return fmt.Errorf("creating message batch: %w", err)
	}

	for _, m := range messages {
		az := toAzMessage(m)
		if err := batch.AddMessage(az, nil); err != nil {
			if !errors.Is(err, azservicebus.ErrMessageTooLarge) || batch.NumMessages() == 0 {
				return fmt.Errorf("adding message to batch: %w", err)
			}
			if err := p.sender.SendMessageBatch(ctx, batch, nil); err != nil {
				return err
			}
			batch, err = p.sender.NewMessageBatch(ctx, nil)
			if err != nil {
				return fmt.Errorf("creating message batch: %w", err)
			}
			if err := batch.AddMessage(az, nil); err != nil {
				return fmt.Errorf("adding message to batch: %w", err)
			}
		}
	}

	if batch.NumMessages() == 0 {
		return nil
	}
	return p.sender.SendMessageBatch(ctx, batch, nil)
}

// Dispose releases the underlying sender. After disposal, all further sends
// fail. Dispose is idempotent.
func (p *Producer) Dispose(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sender == nil {
		return nil
	}
	err := p.sender.Close(ctx)
	p.sender = nil
	return err
}

func toAzMessage(m MessageData) *azservicebus.Message {
	msg := &azservicebus.Message{Body: m.Body}
	if len(m.Properties) > 0 {
		msg.ApplicationProperties = m.Properties
	}
	return msg
}
