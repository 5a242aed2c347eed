package bulk

import (
	"context"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// fakeSender is a sender double recording every send and whether it was
// disposed.
type fakeSender struct {
	sent      [][]servicebus.MessageData
	disposed  bool
	targetErr error
}

func (f *fakeSender) SendMessages(ctx context.Context, messages []servicebus.MessageData) error {
	if f.targetErr != nil {
		return f.targetErr
	}
	f.sent = append(f.sent, messages)
	return nil
}

func (f *fakeSender) Dispose(ctx context.Context) error {
	f.disposed = true
	return nil
}

func newSenderUnderTest(consumer *fakeConsumer, produced *fakeSender, config BatchConfig) *Sender {
	factory := func(ctx context.Context, queueName string) (sender, error) {
		return produced, nil
	}
	return NewSender(consumer, factory, config, logr.Discard())
}

func TestSenderSendCollectedMoveCompletesSource(t *testing.T) {
	consumer := &fakeConsumer{batchReceiver: batchReceiver{batches: [][]*azservicebus.ReceivedMessage{{msg("a")}}}}
	produced := &fakeSender{}
	config := DefaultBatchConfig()
	s := newSenderUnderTest(consumer, produced, config)

	result, err := s.SendCollected(context.Background(), "other-queue", true, []servicebus.MessageIdentifier{{ID: "a"}})
	if err != nil {
		t.Fatalf("SendCollected: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("expected 1 successful send, got %+v", result)
	}
	if len(produced.sent) != 1 {
		t.Fatalf("expected one send call, got %d", len(produced.sent))
	}
	if len(consumer.completed) != 1 {
		t.Fatal("move must complete the source message after a successful send")
	}
	if !produced.disposed {
		t.Fatal("expected the producer to be disposed after sending")
	}
}

func TestSenderSendCollectedCopyAbandonsSource(t *testing.T) {
	consumer := &fakeConsumer{batchReceiver: batchReceiver{batches: [][]*azservicebus.ReceivedMessage{{msg("a")}}}}
	produced := &fakeSender{}
	s := newSenderUnderTest(consumer, produced, DefaultBatchConfig())

	result, err := s.SendCollected(context.Background(), "other-queue", false, []servicebus.MessageIdentifier{{ID: "a"}})
	if err != nil {
		t.Fatalf("SendCollected: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("expected 1 successful send, got %+v", result)
	}
	if len(consumer.completed) != 0 {
		t.Fatal("copy must never complete the source message")
	}
	if len(consumer.abandoned) != 1 {
		t.Fatal("copy must abandon the source message so it remains available")
	}
}

func TestSenderCopyToDeadLetterQueueIsUnsupported(t *testing.T) {
	consumer := &fakeConsumer{}
	produced := &fakeSender{}
	s := newSenderUnderTest(consumer, produced, DefaultBatchConfig())

	_, err := s.SendCollected(context.Background(), "orders/$deadletterqueue", false, []servicebus.MessageIdentifier{{ID: "a"}})
	if err == nil {
		t.Fatal("expected an error for copy-to-DLQ")
	}
	var unsupported *quettyerr.Unsupported
	if !isUnsupported(err, &unsupported) {
		t.Fatalf("expected a quettyerr.Unsupported, got %T: %v", err, err)
	}
	if consumer.calls != 0 {
		t.Fatal("copy-to-DLQ must never touch the consumer")
	}
	if len(produced.sent) != 0 {
		t.Fatal("copy-to-DLQ must never touch a sender")
	}
}

func TestSenderMoveToDeadLetterQueueUsesNativeDisposition(t *testing.T) {
	consumer := &fakeConsumer{batchReceiver: batchReceiver{batches: [][]*azservicebus.ReceivedMessage{{msg("a")}}}}
	produced := &fakeSender{}
	s := newSenderUnderTest(consumer, produced, DefaultBatchConfig())

	result, err := s.SendCollected(context.Background(), "orders/$deadletterqueue", true, []servicebus.MessageIdentifier{{ID: "a"}})
	if err != nil {
		t.Fatalf("SendCollected: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("expected 1 successful move-to-dlq, got %+v", result)
	}
	if len(consumer.deadLetter) != 1 {
		t.Fatal("move-to-dlq must dead-letter the source message")
	}
	if len(produced.sent) != 0 {
		t.Fatal("move-to-dlq must never create a sender")
	}
}

func TestSenderSendPeekedNeverLocksSource(t *testing.T) {
	consumer := &fakeConsumer{}
	produced := &fakeSender{}
	s := newSenderUnderTest(consumer, produced, DefaultBatchConfig())

	peeked := []PeekedMessage{{Identifier: servicebus.MessageIdentifier{ID: "a"}, Body: []byte("payload")}}
	result, err := s.SendPeeked(context.Background(), "other-queue", peeked)
	if err != nil {
		t.Fatalf("SendPeeked: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("expected 1 successful resend, got %+v", result)
	}
	if consumer.calls != 0 {
		t.Fatal("resend-without-delete must never call the consumer")
	}
}

func TestSenderSendPeekedToDeadLetterQueueIsUnsupported(t *testing.T) {
	consumer := &fakeConsumer{}
	produced := &fakeSender{}
	s := newSenderUnderTest(consumer, produced, DefaultBatchConfig())

	_, err := s.SendPeeked(context.Background(), "orders/$deadletterqueue", []PeekedMessage{{Identifier: servicebus.MessageIdentifier{ID: "a"}, Body: []byte("x")}})
	if err == nil {
		t.Fatal("expected an error for resend-to-DLQ")
	}
}

// isUnsupported reports whether err itself is a *quettyerr.Unsupported (a
// direct type assertion, wrapped errors are not unwrapped), storing it in target.
func isUnsupported(err error, target **quettyerr.Unsupported) bool {
	u, ok := err.(*quettyerr.Unsupported)
	if ok {
		*target = u
	}
	return ok
}
