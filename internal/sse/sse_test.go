package sse_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/sse"
)

// noFlushWriter is a ResponseWriter without http.Flusher support.
type noFlushWriter struct {
	header http.Header
}

func (w *noFlushWriter) Header() http.Header        { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(int)             {}

func TestNewWriter_SetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	_, err := sse.NewWriter(rec)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestNewWriter_RequiresFlusher(t *testing.T) {
	w := &noFlushWriter{header: make(http.Header)}

	_, err := sse.NewWriter(w)
	require.ErrorIs(t, err, sse.ErrStreamingUnsupported)
}

func TestWriteData_FrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteData(map[string]string{"type": "content", "content": "hi"}))

	assert.Equal(t, "data: {\"content\":\"hi\",\"type\":\"content\"}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestWriteData_MultipleFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteData(map[string]string{"a": "1"}))
	require.NoError(t, w.WriteData(map[string]string{"b": "2"}))

	assert.Equal(t, "data: {\"a\":\"1\"}\n\ndata: {\"b\":\"2\"}\n\n", rec.Body.String())
}

func TestWriteData_MarshalError(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)

	// Channels cannot be marshaled to JSON.
	assert.Error(t, w.WriteData(make(chan int)))
	assert.Empty(t, rec.Body.String())
}
