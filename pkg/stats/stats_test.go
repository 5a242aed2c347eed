package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/management"
)

type fakeManagementClient struct {
	queues []management.QueueDescription
	err    error
}

func (f *fakeManagementClient) ListQueues(ctx context.Context, subscriptionID, resourceGroup, namespace string) ([]management.QueueDescription, error) {
	return f.queues, f.err
}

func TestGetQueueStatsReturnsCountsWhenAvailable(t *testing.T) {
	client := &fakeManagementClient{queues: []management.QueueDescription{
		{Name: "orders", Properties: management.QueueProperties{CountDetails: management.QueueCountDetails{ActiveMessageCount: 5, DeadLetterMessageCount: 2}}},
	}}
	svc := NewService(client, Config{DisplayEnabled: true, UseManagementAPI: true}, logr.Discard())

	got, ok := svc.GetQueueStats(context.Background(), "orders")
	if !ok {
		t.Fatal("expected stats to be available")
	}
	if got.ActiveCount != 5 || got.DeadLetterCount != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestGetQueueStatsUnavailableWhenDisplayDisabled(t *testing.T) {
	client := &fakeManagementClient{queues: []management.QueueDescription{{Name: "orders"}}}
	svc := NewService(client, Config{DisplayEnabled: false, UseManagementAPI: true}, logr.Discard())

	if _, ok := svc.GetQueueStats(context.Background(), "orders"); ok {
		t.Fatal("expected statistics to be unavailable when display is disabled")
	}
}

func TestGetQueueStatsUnavailableWhenManagementAPIDisabled(t *testing.T) {
	client := &fakeManagementClient{queues: []management.QueueDescription{{Name: "orders"}}}
	svc := NewService(client, Config{DisplayEnabled: true, UseManagementAPI: false}, logr.Discard())

	if _, ok := svc.GetQueueStats(context.Background(), "orders"); ok {
		t.Fatal("expected statistics to be unavailable when the management API is disabled")
	}
}

func TestGetQueueStatsGracefulOnAPIFailure(t *testing.T) {
	client := &fakeManagementClient{err: errors.New("connection refused")}
	svc := NewService(client, Config{DisplayEnabled: true, UseManagementAPI: true}, logr.Discard())

	if _, ok := svc.GetQueueStats(context.Background(), "orders"); ok {
		t.Fatal("expected statistics to be unavailable on API failure, not an error")
	}
}

func TestGetQueueStatsUnavailableWhenQueueNotFound(t *testing.T) {
	client := &fakeManagementClient{queues: []management.QueueDescription{{Name: "other-queue"}}}
	svc := NewService(client, Config{DisplayEnabled: true, UseManagementAPI: true}, logr.Discard())

	if _, ok := svc.GetQueueStats(context.Background(), "orders"); ok {
		t.Fatal("expected statistics to be unavailable for a queue outside the discovery scope")
	}
}
