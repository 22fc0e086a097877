package llm

// Event types for streamed completions. These are the wire values clients
// see in the SSE relay, so they are part of the public API.
const (
	EventContent = "content"
	EventDone    = "done"
	EventError   = "error"
)

// StreamEvent is a single event in a streamed completion.
//
// "content" events carry Content and Model, the terminal "done" event
// carries Model, and the terminal "error" event carries Error. Every
// stream ends with exactly one terminal event.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Usage reports token consumption for a completed generation.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Result is the outcome of a non-streaming completion.
type Result struct {
	Text  string
	Model string
	Usage Usage
}
