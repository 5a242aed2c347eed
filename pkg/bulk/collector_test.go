package bulk

import (
	"context"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// batchReceiver serves a fixed sequence of batches, one per call, then empty
// batches forever after.
type batchReceiver struct {
	batches [][]*azservicebus.ReceivedMessage
	calls   int
}

func (b *batchReceiver) ReceiveMessages(ctx context.Context, maxCount int) ([]*azservicebus.ReceivedMessage, error) {
	defer func() { b.calls++ }()
	if b.calls >= len(b.batches) {
		return nil, nil
	}
	return b.batches[b.calls], nil
}

func msg(id string) *azservicebus.ReceivedMessage {
	return &azservicebus.ReceivedMessage{MessageID: id}
}

func TestCollectTargetsClassifiesTargetAndNonTarget(t *testing.T) {
	receiver := &batchReceiver{batches: [][]*azservicebus.ReceivedMessage{
		{msg("a"), msg("x"), msg("b")},
	}}
	config := DefaultBatchConfig()
	c := NewCollector(config, logr.Discard())

	targets := []servicebus.MessageIdentifier{{ID: "a"}, {ID: "b"}}
	result, err := c.CollectTargets(context.Background(), receiver, targets, 10)
	if err != nil {
		t.Fatalf("CollectTargets: %v", err)
	}
	if len(result.TargetMessages) != 2 {
		t.Fatalf("expected 2 target messages, got %d", len(result.TargetMessages))
	}
	if len(result.NonTargetMessages) != 1 {
		t.Fatalf("expected 1 non-target message, got %d", len(result.NonTargetMessages))
	}
	if len(result.NotFound) != 0 {
		t.Fatalf("expected all targets found, got %d missing", len(result.NotFound))
	}
}

func TestCollectTargetsStopsWhenTargetsExhausted(t *testing.T) {
	receiver := &batchReceiver{batches: [][]*azservicebus.ReceivedMessage{
		{msg("a")},
		{msg("never-reached")},
	}}
	config := DefaultBatchConfig()
	c := NewCollector(config, logr.Discard())

	targets := []servicebus.MessageIdentifier{{ID: "a"}}
	result, err := c.CollectTargets(context.Background(), receiver, targets, 10)
	if err != nil {
		t.Fatalf("CollectTargets: %v", err)
	}
	if len(result.TargetMessages) != 1 {
		t.Fatalf("expected 1 target message, got %d", len(result.TargetMessages))
	}
	if receiver.calls != 1 {
		t.Fatalf("expected collection to stop after the first batch, receiver was called %d times", receiver.calls)
	}
}

func TestCollectTargetsStopsOnMaxEmptyBatches(t *testing.T) {
	receiver := &batchReceiver{batches: nil}
	config := DefaultBatchConfig()
	config.MaxEmptyBatches = 2
	c := NewCollector(config, logr.Discard())

	targets := []servicebus.MessageIdentifier{{ID: "missing"}}
	result, err := c.CollectTargets(context.Background(), receiver, targets, 10)
	if err != nil {
		t.Fatalf("CollectTargets: %v", err)
	}
	if len(result.NotFound) != 1 {
		t.Fatalf("expected target to remain not found, got %d missing", len(result.NotFound))
	}
	if receiver.calls != config.MaxEmptyBatches+1 {
		t.Fatalf("expected %d receive calls before giving up, got %d", config.MaxEmptyBatches+1, receiver.calls)
	}
}

func TestCollectTargetsStopsOnCancellation(t *testing.T) {
	receiver := &batchReceiver{batches: [][]*azservicebus.ReceivedMessage{
		{msg("x")}, {msg("y")}, {msg("z")},
	}}
	config := DefaultBatchConfig()
	c := NewCollector(config, logr.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	targets := []servicebus.MessageIdentifier{{ID: "a"}}
	result, err := c.CollectTargets(ctx, receiver, targets, 10)
	if err != nil {
		t.Fatalf("CollectTargets: %v", err)
	}
	if !result.Cancelled {
		t.Fatal("expected result.Cancelled to be true")
	}
	if receiver.calls != 0 {
		t.Fatalf("expected no receive calls once already cancelled, got %d", receiver.calls)
	}
}

func TestCollectTargetsUnknownIDNeverClassifiesAsTarget(t *testing.T) {
	receiver := &batchReceiver{batches: [][]*azservicebus.ReceivedMessage{
		{{}},
	}}
	config := DefaultBatchConfig()
	config.MaxEmptyBatches = 0
	c := NewCollector(config, logr.Discard())

	targets := []servicebus.MessageIdentifier{{ID: "a"}}
	result, err := c.CollectTargets(context.Background(), receiver, targets, 10)
	if err != nil {
		t.Fatalf("CollectTargets: %v", err)
	}
	if len(result.TargetMessages) != 0 {
		t.Fatal("a message with no id must never classify as a target")
	}
	if len(result.NonTargetMessages) != 1 {
		t.Fatalf("expected the unknown-id message to be treated as non-target, got %d", len(result.NonTargetMessages))
	}
}
