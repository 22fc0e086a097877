// Package relay forwards a model event stream to a client frame writer and
// persists the assembled reply when the stream completes.
package relay

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ragchat/internal/llm"
)

// State tracks relay progress, mostly for logging and tests.
type State int

const (
	StateStarted State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// FrameWriter delivers one event to the client. sse.Writer satisfies this.
type FrameWriter interface {
	WriteData(v any) error
}

// TurnCompleter persists the finished output of a turn.
// conversation.Store satisfies this.
type TurnCompleter interface {
	CompleteTurn(ctx context.Context, turnID uuid.UUID, output string) error
}

// Relay pipes model events to a client and records the outcome.
type Relay struct {
	turns  TurnCompleter
	logger *slog.Logger
}

// New creates a Relay. logger may be nil (defaults to slog.Default()).
func New(turns TurnCompleter, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{turns: turns, logger: logger}
}

// Run consumes events until the terminal event, forwarding each to w and
// accumulating content. On "done" the accumulated reply is persisted as the
// turn's output; the done frame reaches the client first, so a persistence
// failure is logged but never turns a delivered reply into a client-visible
// error. On "error" nothing is persisted and the turn keeps its empty
// output. If ctx ends first, Run stops without writing further frames.
//
// Returns the final state and the accumulated content.
func (r *Relay) Run(ctx context.Context, turnID uuid.UUID, events <-chan llm.StreamEvent, w FrameWriter) (State, string) {
	state := StateStarted
	var content strings.Builder

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("relay canceled",
				"turn_id", turnID,
				"state", state.String(),
				"partial_length", content.Len(),
			)
			return StateFailed, content.String()

		case ev, ok := <-events:
			if !ok {
				// Producer closed without a terminal event. Treat as
				// failure; the turn stays incomplete.
				r.logger.Warn("event stream closed without terminal event",
					"turn_id", turnID)
				return StateFailed, content.String()
			}

			switch ev.Type {
			case llm.EventContent:
				state = StateStreaming
				content.WriteString(ev.Content)
				if err := w.WriteData(ev); err != nil {
					r.logger.Debug("client write failed, stopping relay",
						"turn_id", turnID, "error", err)
					return StateFailed, content.String()
				}

			case llm.EventDone:
				if err := w.WriteData(ev); err != nil {
					r.logger.Debug("client write failed on done frame",
						"turn_id", turnID, "error", err)
				}
				if err := r.turns.CompleteTurn(ctx, turnID, content.String()); err != nil {
					r.logger.Error("persisting turn output",
						"turn_id", turnID, "error", err)
				}
				r.logger.Debug("relay completed",
					"turn_id", turnID,
					"output_length", content.Len(),
				)
				return StateCompleted, content.String()

			case llm.EventError:
				if err := w.WriteData(ev); err != nil {
					r.logger.Debug("client write failed on error frame",
						"turn_id", turnID, "error", err)
				}
				r.logger.Warn("relay failed",
					"turn_id", turnID,
					"error", ev.Error,
					"partial_length", content.Len(),
				)
				return StateFailed, content.String()

			default:
				r.logger.Warn("unknown event type, dropping",
					"turn_id", turnID, "type", ev.Type)
			}
		}
	}
}
