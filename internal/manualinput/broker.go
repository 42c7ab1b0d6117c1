// Package manualinput implements the Manual Input Broker: per-run
// suspend/resume for `#{name[:default]}` placeholder fields awaiting
// operator submission.
package manualinput

import (
	"context"
	"errors"
	"sync"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
)

// Broker owns one run's manual-input state: submitted values, and the
// wake-up signal for goroutines blocked in Resolve. Mutex-guarded map
// plus a replace-on-write notify channel, the same shape as the
// automation scheduler's trigger map.
type Broker struct {
	mu      sync.Mutex
	trigger domain.TriggerType
	values  map[string]string
	notify  chan struct{}
	closed  bool
}

// New builds a Broker for one run, started with the run's trigger type.
func New(trigger domain.TriggerType) *Broker {
	return &Broker{
		trigger: trigger,
		values:  make(map[string]string),
		notify:  make(chan struct{}),
	}
}

// Submit records a batch of operator-provided values, keyed by field
// name, and wakes any Resolve calls waiting on them. Submission is
// idempotent: resubmitting the same name overwrites the stored value,
// which is harmless since a field is only read once its wait is
// satisfied. Submissions after Close are ignored.
func (b *Broker) Submit(values map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for name, value := range values {
		b.values[name] = value
	}
	close(b.notify)
	b.notify = make(chan struct{})
}

// Close marks the broker's run as terminated. Any Resolve still
// waiting is released with a CANCELLED error, and further Submit
// calls are silently ignored (late submissions after step completion).
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

func (b *Broker) get(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[name]
	return v, ok
}

// Peek reports a previously submitted value for name without consuming
// or blocking, used to populate the `cachedValue` hint on a later
// `input-required` event for a field with the same name.
func (b *Broker) Peek(name string) (string, bool) {
	return b.get(name)
}

func (b *Broker) invalidate(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, name)
}

func (b *Broker) waitChan() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notify
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// EmitFunc publishes an `input-required` event for the still-pending
// fields of one step.
type EmitFunc func(fields []domain.InputField)

// Resolve collects the values for fields declared on a step.
//
// When reuse is true, a field already submitted earlier in this run is
// used silently. Otherwise any previously submitted value for that
// name is invalidated first, forcing a fresh prompt even if another
// step already asked for a field with the same name.
//
// For a MANUAL-triggered run, any field still unresolved is emitted
// via emit and Resolve blocks until every emitted field has a value or
// ctx is cancelled. For a SCHEDULED run, unresolved fields fill from
// DefaultValue when present; fields with no default bind to the empty
// string and a warning is returned.
func (b *Broker) Resolve(ctx context.Context, runID string, fields []domain.InputField, reuse bool, emit EmitFunc) (map[string]string, []string, error) {
	result := make(map[string]string, len(fields))
	var pending []domain.InputField

	for _, f := range fields {
		if reuse {
			if v, ok := b.get(f.Name); ok {
				result[f.Name] = v
				continue
			}
		} else {
			b.invalidate(f.Name)
		}
		pending = append(pending, f)
	}

	if len(pending) == 0 {
		return result, nil, nil
	}

	if b.trigger == domain.TriggerScheduled {
		var warnings []string
		for _, f := range pending {
			if f.DefaultValue != nil {
				result[f.Name] = *f.DefaultValue
				continue
			}
			result[f.Name] = ""
			warnings = append(warnings, "no default value for manual input field "+f.Name+" on a scheduled run")
		}
		return result, warnings, nil
	}

	emit(pending)

	for {
		remaining := 0
		for _, f := range pending {
			if v, ok := b.get(f.Name); ok {
				result[f.Name] = v
			} else {
				remaining++
			}
		}
		if remaining == 0 {
			return result, nil, nil
		}

		if b.isClosed() {
			return nil, nil, apierr.Cancelled(runID)
		}

		ch := b.waitChan()
		select {
		case <-ch:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, nil, apierr.Cancelled(runID)
			}
			return nil, nil, apierr.InputTimeout(pending[0].Name)
		}
	}
}
