package httpapi

import (
	"github.com/stepflow/orchestrator/internal/coordinator"
	"github.com/stepflow/orchestrator/internal/sse"
)

// sseSink relays coordinator events onto a live SSE connection. Write
// errors (a dropped client) are swallowed — the driver goroutine keeps
// running the plan to completion; the control plane only loses the
// stream, not the run, per spec.md's CANCELLED-on-transport-drop note
// being the caller's job (the request context cancels the run when the
// client actually disconnects).
type sseSink struct {
	w *sse.Writer
}

func (s *sseSink) Emit(e coordinator.Event) {
	_ = s.w.WriteEvent(string(e.Kind), e.Payload)
}
