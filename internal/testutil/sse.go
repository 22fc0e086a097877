package testutil

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"ragchat/internal/llm"
)

// ParseStreamEvents parses a data-only SSE body into the decoded stream
// events. Each frame must be a single "data: <json>" line followed by a
// blank line; comments starting with ":" are ignored.
func ParseStreamEvents(t *testing.T, body string) []llm.StreamEvent {
	t.Helper()

	var events []llm.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			payload := strings.TrimPrefix(line, "data: ")
			var ev llm.StreamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				t.Fatalf("SSE parse error at line %d: invalid JSON payload %q: %v", lineNum, payload, err)
			}
			events = append(events, ev)

		case line == "", strings.HasPrefix(line, ":"):
			// Frame separator or comment.

		default:
			t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}

	return events
}

// ContentText joins the content of all "content" events in order.
func ContentText(events []llm.StreamEvent) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == llm.EventContent {
			sb.WriteString(ev.Content)
		}
	}
	return sb.String()
}

// TerminalEvent returns the last event and fails the test if the stream is
// empty or the last event is not terminal.
func TerminalEvent(t *testing.T, events []llm.StreamEvent) llm.StreamEvent {
	t.Helper()

	if len(events) == 0 {
		t.Fatal("stream contained no events")
	}
	last := events[len(events)-1]
	if last.Type != llm.EventDone && last.Type != llm.EventError {
		t.Fatalf("stream ended with non-terminal event %q", last.Type)
	}
	return last
}
