package facade

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

// CancellationRegistry tracks the cancel func for every in-flight bulk
// operation, keyed by operation id, so CancelOperationCommand can reach an
// operation started by an earlier Execute call. sync.Map fits better here
// than a mutex-guarded map since registrations and lookups come from
// independent goroutines with no shared critical section between them.
type CancellationRegistry struct {
	cancels sync.Map // uuid.UUID -> context.CancelFunc
}

// NewCancellationRegistry returns an empty registry.
func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{}
}

// Register records cancel under id, overwriting any prior registration for
// the same id (ids are fresh per operation, so this should never happen in
// practice).
func (r *CancellationRegistry) Register(id uuid.UUID, cancel context.CancelFunc) {
	r.cancels.Store(id, cancel)
}

// Unregister drops id's entry once its operation has reached a terminal
// state. Safe to call even if id was never registered.
func (r *CancellationRegistry) Unregister(id uuid.UUID) {
	r.cancels.Delete(id)
}

// Cancel fires id's cancel func and unregisters it. Returns
// quettyerr.InternalError if id is not currently tracked (already finished,
// or never existed).
func (r *CancellationRegistry) Cancel(id uuid.UUID) error {
	value, ok := r.cancels.LoadAndDelete(id)
	if !ok {
		return &quettyerr.InternalError{Debug: "no in-flight operation with id " + id.String()}
	}
	value.(context.CancelFunc)()
	return nil
}
