package servicebus

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

type fakeSender struct {
	sent       []*azservicebus.Message
	batchCalls int
	batchErr   error
	closed     bool
}

func (f *fakeSender) SendMessage(_ context.Context, message *azservicebus.Message, _ *azservicebus.SendMessageOptions) error {
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSender) NewMessageBatch(context.Context, *azservicebus.MessageBatchOptions) (*azservicebus.MessageBatch, error) {
	f.batchCalls++
	return nil, f.batchErr
}

func (f *fakeSender) SendMessageBatch(context.Context, *azservicebus.MessageBatch, *azservicebus.SendMessageBatchOptions) error {
	return nil
}

func (f *fakeSender) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestProducerSendAndDispose(t *testing.T) {
	sender := &fakeSender{}
	producer := NewProducer(sender)

	if err := producer.SendMessage(context.Background(), NewTextMessage("hello")); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(sender.sent))
	}

	if err := producer.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if !sender.closed {
		t.Errorf("expected sender to be closed")
	}

	if err := producer.SendMessage(context.Background(), NewTextMessage("too late")); err == nil {
		t.Errorf("expected error sending after dispose")
	}
	if err := producer.SendMessages(context.Background(), []MessageData{NewTextMessage("too late")}); err == nil {
		t.Errorf("expected error batch-sending after dispose")
	}

	// Dispose is idempotent.
	if err := producer.Dispose(context.Background()); err != nil {
		t.Errorf("second Dispose should be a no-op, got %v", err)
	}
}

func TestProducerSendMessagesPropagatesBatchCreationFailure(t *testing.T) {
	sender := &fakeSender{batchErr: errors.New("link detached")}
	producer := NewProducer(sender)

	err := producer.SendMessages(context.Background(), []MessageData{NewTextMessage("a"), NewTextMessage("b")})
	if err == nil {
		t.Fatal("expected batch creation failure to surface")
	}
	if sender.batchCalls != 1 {
		t.Errorf("expected a single batch creation attempt, got %d", sender.batchCalls)
	}
	if len(sender.sent) != 0 {
		t.Errorf("no individual sends should happen on the batch path, got %d", len(sender.sent))
	}
}
