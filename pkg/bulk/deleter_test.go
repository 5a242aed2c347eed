package bulk

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// fakeConsumer is a consumerOps double recording every disposition call.
type fakeConsumer struct {
	batchReceiver
	completed  []string
	abandoned  []string
	deadLetter []string
	failID     string
}

func (f *fakeConsumer) CompleteMessage(ctx context.Context, m *azservicebus.ReceivedMessage) error {
	id := messageID(m.MessageID)
	if id == f.failID {
		return errors.New("broker rejected complete")
	}
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeConsumer) AbandonMessage(ctx context.Context, m *azservicebus.ReceivedMessage) error {
	f.abandoned = append(f.abandoned, messageID(m.MessageID))
	return nil
}

func (f *fakeConsumer) AbandonMessages(ctx context.Context, msgs []*azservicebus.ReceivedMessage) {
	for _, m := range msgs {
		f.abandoned = append(f.abandoned, messageID(m.MessageID))
	}
}

func (f *fakeConsumer) DeadLetterMessage(ctx context.Context, m *azservicebus.ReceivedMessage, reason, description *string) error {
	f.deadLetter = append(f.deadLetter, messageID(m.MessageID))
	return nil
}

func TestDeleterDeleteCompletesTargetsAndAbandonsNonTargets(t *testing.T) {
	consumer := &fakeConsumer{batchReceiver: batchReceiver{batches: [][]*azservicebus.ReceivedMessage{
		{msg("a"), msg("x"), msg("b")},
	}}}
	config := DefaultBatchConfig()
	d := NewDeleter(consumer, config, logr.Discard())

	result, err := d.Delete(context.Background(), []servicebus.MessageIdentifier{{ID: "a"}, {ID: "b"}})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if result.Successful != 2 || result.Failed != 0 || result.NotFound != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(consumer.completed) != 2 {
		t.Fatalf("expected 2 completed messages, got %v", consumer.completed)
	}
	if len(consumer.abandoned) != 1 || consumer.abandoned[0] != "x" {
		t.Fatalf("expected non-target x abandoned, got %v", consumer.abandoned)
	}
}

func TestDeleterDeleteTracksPerMessageFailure(t *testing.T) {
	consumer := &fakeConsumer{
		batchReceiver: batchReceiver{batches: [][]*azservicebus.ReceivedMessage{{msg("a"), msg("b")}}},
		failID:        "b",
	}
	config := DefaultBatchConfig()
	d := NewDeleter(consumer, config, logr.Discard())

	result, err := d.Delete(context.Background(), []servicebus.MessageIdentifier{{ID: "a"}, {ID: "b"}})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if result.Successful != 1 || result.Failed != 1 {
		t.Fatalf("expected one success and one failure, got %+v", result)
	}
	if len(result.ErrorDetails) != 1 {
		t.Fatalf("expected one error detail recorded, got %v", result.ErrorDetails)
	}
}

func TestDeleterAbandonReleasesTargets(t *testing.T) {
	consumer := &fakeConsumer{batchReceiver: batchReceiver{batches: [][]*azservicebus.ReceivedMessage{{msg("a")}}}}
	config := DefaultBatchConfig()
	d := NewDeleter(consumer, config, logr.Discard())

	result, err := d.Abandon(context.Background(), []servicebus.MessageIdentifier{{ID: "a"}})
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("expected 1 successful abandon, got %+v", result)
	}
	if len(consumer.abandoned) != 1 || consumer.abandoned[0] != "a" {
		t.Fatalf("expected target a abandoned, got %v", consumer.abandoned)
	}
	if len(consumer.completed) != 0 {
		t.Fatal("abandon must never complete a target")
	}
}

func TestDeleterDeadLetterMovesTargets(t *testing.T) {
	consumer := &fakeConsumer{batchReceiver: batchReceiver{batches: [][]*azservicebus.ReceivedMessage{{msg("a")}}}}
	config := DefaultBatchConfig()
	d := NewDeleter(consumer, config, logr.Discard())

	reason := "bad poison message"
	result, err := d.DeadLetter(context.Background(), []servicebus.MessageIdentifier{{ID: "a"}}, &reason, nil)
	if err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("expected 1 successful dead-letter, got %+v", result)
	}
	if len(consumer.deadLetter) != 1 || consumer.deadLetter[0] != "a" {
		t.Fatalf("expected target a dead-lettered, got %v", consumer.deadLetter)
	}
}

func TestDeleterDeleteEmptyRequestIsNoOp(t *testing.T) {
	consumer := &fakeConsumer{}
	d := NewDeleter(consumer, DefaultBatchConfig(), logr.Discard())
	result, err := d.Delete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if result.TotalRequested != 0 || result.Successful != 0 {
		t.Fatalf("expected a zero-value result for an empty request, got %+v", result)
	}
}
