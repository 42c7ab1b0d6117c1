package coordinator

import (
	"context"
	"sync"

	"github.com/stepflow/orchestrator/internal/manualinput"
)

// Handle is the process-wide RunRegistry entry for one in-flight run
// (spec §5): only the owning driver writes to it; control endpoints
// only read it to cancel or submit input.
type Handle struct {
	RunID  string
	Cancel context.CancelFunc
	Broker *manualinput.Broker
}

// RunRegistry maps runId to its Handle. The response cache is
// per-run and intentionally not part of this registry — it is owned
// by the driving goroutine alone.
type RunRegistry struct {
	mu   sync.RWMutex
	runs map[string]*Handle
}

// NewRunRegistry builds an empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*Handle)}
}

// Register adds a handle, keyed by its RunID. The calling driver owns
// this entry for the run's lifetime.
func (r *RunRegistry) Register(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[h.RunID] = h
}

// Get looks up a run's handle.
func (r *RunRegistry) Get(runID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.runs[runID]
	return h, ok
}

// Remove drops a run's entry once it reaches a terminal state.
func (r *RunRegistry) Remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

// Cancel requests cancellation of an in-flight run, idempotent: a
// second call against an already-cancelled or finished run is a no-op.
func (r *RunRegistry) Cancel(runID string) bool {
	h, ok := r.Get(runID)
	if !ok {
		return false
	}
	h.Cancel()
	return true
}

// Submit delivers manual-input values to a run's broker.
func (r *RunRegistry) Submit(runID string, values map[string]string) bool {
	h, ok := r.Get(runID)
	if !ok {
		return false
	}
	h.Broker.Submit(values)
	return true
}
