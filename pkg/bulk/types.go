// Package bulk implements the bulk operation engine: planning and driving
// move, copy, delete, and dead-letter across batches of targeted messages,
// classifying received messages as target vs. non-target, and completing
// targets while abandoning non-targets under strict ordering and
// cancellation constraints.
package bulk

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dawidpereira/quetty/pkg/servicebus"
)

// unknownMessageID is the sentinel used when a received message carries no
// MessageID.
const unknownMessageID = "unknown"

// BatchConfig carries every tunable the bulk engine and collector consult.
type BatchConfig struct {
	MaxBatchSize           int
	OperationTimeout       time.Duration
	BufferPercentage       float64
	MinBufferSize          int
	BulkChunkSize          int
	BulkProcessingTime     time.Duration
	LockTimeout            time.Duration
	MaxMessagesMultiplier  int
	MinMessagesToProcess   int
	MaxMessagesToProcess   int
	BulkOperationMaxCount  int
	BulkOperationMinCount  int
	AutoReloadThreshold    int
	SmallDeletionThreshold int
	// MaxEmptyBatches is how many consecutive empty batches are tolerated;
	// one more than this means the queue appears drained for the scan horizon.
	MaxEmptyBatches int
}

// DefaultBatchConfig returns the documented defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:           2048,
		OperationTimeout:       300 * time.Second,
		BufferPercentage:       0.15,
		MinBufferSize:          30,
		BulkChunkSize:          100,
		BulkProcessingTime:     30 * time.Second,
		LockTimeout:            5 * time.Second,
		MaxMessagesMultiplier:  3,
		MinMessagesToProcess:   100,
		MaxMessagesToProcess:   1000,
		BulkOperationMaxCount:  100,
		BulkOperationMinCount:  1,
		AutoReloadThreshold:    10,
		SmallDeletionThreshold: 5,
		MaxEmptyBatches:        3,
	}
}

// BulkOperationResult reports the outcome of one bulk operation. Invariant:
// Successful == len(SuccessfulIDs), and Successful + Failed + NotFound <=
// TotalRequested.
type BulkOperationResult struct {
	TotalRequested int
	Successful     int
	Failed         int
	NotFound       int
	ErrorDetails   []string
	SuccessfulIDs  []servicebus.MessageIdentifier
}

// NewBulkOperationResult starts a result tracking totalRequested targets.
func NewBulkOperationResult(totalRequested int) *BulkOperationResult {
	return &BulkOperationResult{TotalRequested: totalRequested}
}

// AddSuccessfulMessage records id as successfully processed.
func (r *BulkOperationResult) AddSuccessfulMessage(id servicebus.MessageIdentifier) {
	r.Successful++
	r.SuccessfulIDs = append(r.SuccessfulIDs, id)
}

// AddFailure records a broker-rejected disposition.
func (r *BulkOperationResult) AddFailure(reason string) {
	r.Failed++
	r.ErrorDetails = append(r.ErrorDetails, reason)
}

// IsCompleteSuccess reports whether every requested message was processed
// with no failures and no misses.
func (r *BulkOperationResult) IsCompleteSuccess() bool {
	return r.Successful == r.TotalRequested && r.Failed == 0 && r.NotFound == 0
}

// OperationState is one state in the per-operation state machine:
// Planning -> Collecting -> Dispatching -> Finalizing -> {Complete,
// Cancelled, Failed}.
type OperationState int

const (
	Planning OperationState = iota
	Collecting
	Dispatching
	Finalizing
	Complete
	Cancelled
	Failed
)

func (s OperationState) String() string {
	switch s {
	case Collecting:
		return "Collecting"
	case Dispatching:
		return "Dispatching"
	case Finalizing:
		return "Finalizing"
	case Complete:
		return "Complete"
	case Cancelled:
		return "Cancelled"
	case Failed:
		return "Failed"
	default:
		return "Planning"
	}
}

// BulkOperationContext carries one bulk operation's cancellation handle and
// state. The façade owns construction and registers Cancel in its
// cancellation registry keyed by OperationID.
type BulkOperationContext struct {
	OperationID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state OperationState
}

// NewBulkOperationContext derives a cancellable context from parent and
// assigns a fresh operation id.
func NewBulkOperationContext(parent context.Context) *BulkOperationContext {
	ctx, cancel := context.WithCancel(parent)
	return &BulkOperationContext{
		OperationID: uuid.New(),
		ctx:         ctx,
		cancel:      cancel,
		state:       Planning,
	}
}

// Context returns the cancellable context broker calls should use.
func (c *BulkOperationContext) Context() context.Context {
	return c.ctx
}

// Cancel fires the cancellation token. Cooperative: in-flight broker calls
// complete; no new ones begin.
func (c *BulkOperationContext) Cancel() {
	c.cancel()
}

// IsCancelled reports whether Cancel has fired.
func (c *BulkOperationContext) IsCancelled() bool {
	return c.ctx.Err() != nil
}

// State returns the current state machine state.
func (c *BulkOperationContext) State() OperationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transition moves to next unless the context has already been cancelled or
// failed, in which case the terminal state wins.
func (c *BulkOperationContext) transition(next OperationState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Cancelled || c.state == Failed || c.state == Complete {
		return
	}
	if c.ctx.Err() != nil {
		c.state = Cancelled
		return
	}
	c.state = next
}

// messageID substitutes the "unknown" sentinel when a received message
// carries no id (the SDK reports an absent id as the empty string).
func messageID(id string) string {
	if id == "" {
		return unknownMessageID
	}
	return id
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
