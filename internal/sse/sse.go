// Package sse writes data-only server-sent event frames.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingUnsupported indicates the ResponseWriter cannot flush, so
// server-sent events would sit in a buffer until the handler returns.
var ErrStreamingUnsupported = errors.New("streaming unsupported: response writer does not implement http.Flusher")

// Writer emits data-only SSE frames on an http.ResponseWriter.
// Not safe for concurrent use; callers serialize writes.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for server-sent events and returns a Writer.
// It sets the SSE response headers, so it must be called before any body
// bytes are written.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Disable buffering in nginx-style reverse proxies.
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteData marshals v as JSON and writes it as a single data-only frame,
// flushing immediately so the client sees it without delay.
func (w *Writer) WriteData(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	w.flusher.Flush()
	return nil
}
