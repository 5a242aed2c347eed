// Package stats implements the queue statistics service: a
// thin wrapper over the management client returning (active_count,
// dlq_count) for a queue, cached under the same TTL as other management
// data, gracefully absent when disabled or the API is unavailable.
package stats

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/management"
)

// QueueStats is the active/dead-letter message-count pair for one queue.
type QueueStats struct {
	ActiveCount     int64
	DeadLetterCount int64
}

// managementClient is the narrow slice of *management.CachingClient the
// stats service depends on.
type managementClient interface {
	ListQueues(ctx context.Context, subscriptionID, resourceGroup, namespace string) ([]management.QueueDescription, error)
}

// Config selects whether statistics are displayed at all and whether the
// Management API may be consulted to compute them.
type Config struct {
	DisplayEnabled   bool
	UseManagementAPI bool
	SubscriptionID   string
	ResourceGroup    string
	Namespace        string
}

// Service wraps a management client to answer queue statistics queries.
type Service struct {
	client managementClient
	config Config
	logger logr.Logger
}

// NewService builds a Service over client and config.
func NewService(client managementClient, config Config, logger logr.Logger) *Service {
	return &Service{client: client, config: config, logger: logger}
}

// IsAvailable reports whether statistics can be produced at all: display
// must be enabled and the Management API path must be turned on.
func (s *Service) IsAvailable() bool {
	return s.config.DisplayEnabled && s.config.UseManagementAPI
}

// Config returns the service's configuration, for callers that want to
// surface it.
func (s *Service) Config() Config {
	return s.config
}

// GetQueueStats returns (stats, true) for queueName, or (nil, false) when
// statistics are disabled, the API is unavailable, or the queue cannot be
// found in the current discovery scope. Callers must tolerate absence.
func (s *Service) GetQueueStats(ctx context.Context, queueName string) (*QueueStats, bool) {
	if !s.IsAvailable() {
		return nil, false
	}

	queues, err := s.client.ListQueues(ctx, s.config.SubscriptionID, s.config.ResourceGroup, s.config.Namespace)
	if err != nil {
		s.logger.Error(err, "failed to list queues for statistics", "queue", queueName)
		return nil, false
	}

	for _, q := range queues {
		if q.Name == queueName {
			return &QueueStats{
				ActiveCount:     q.Properties.CountDetails.ActiveMessageCount,
				DeadLetterCount: q.Properties.CountDetails.DeadLetterMessageCount,
			}, true
		}
	}
	s.logger.V(1).Info("queue not found in discovery scope for statistics", "queue", queueName)
	return nil, false
}
