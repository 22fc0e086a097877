package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"ragchat/internal/conversation"
	"ragchat/internal/llm"
	"ragchat/internal/relay"
	"ragchat/internal/sse"
)

// maxMessageBytes caps the request body for chat endpoints.
const maxMessageBytes = 64 << 10 // 64 KiB

// PromptBuilder assembles the grounded prompt for a question.
type PromptBuilder interface {
	Build(ctx context.Context, question string, history []conversation.Turn) (string, error)
}

// Completer issues model completions. llm.Client satisfies this.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*llm.Result, error)
	CompleteStream(ctx context.Context, prompt string) <-chan llm.StreamEvent
}

type chatHandler struct {
	store   ConversationStore
	prompts PromptBuilder
	llm     Completer
	relay   *relay.Relay
	logger  *slog.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

// decodeMessage parses and validates the chat request body.
// Returns the trimmed-checked message or writes the error response itself.
func (h *chatHandler) decodeMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON with a message field", h.logger)
		return "", false
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "empty_message", "message must not be empty", h.logger)
		return "", false
	}
	return req.Message, true
}

// stream handles POST /api/conversations/{id}/stream.
//
// Validation failures are reported as plain JSON errors before the SSE
// stream opens. Once streaming has begun the status line is already sent,
// so later failures become terminal "error" frames instead.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid conversation ID", h.logger)
		return
	}

	message, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	// Resolve history before recording the turn so the new input is not
	// part of its own retrieval context.
	history, err := h.store.ListTurns(ctx, conversationID)
	if errors.Is(err, conversation.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("loading history", "conversation_id", conversationID, "error", err)
		WriteError(w, http.StatusInternalServerError, "history_failed", "failed to load conversation history", h.logger)
		return
	}

	turn, err := h.store.AppendTurn(ctx, conversationID, message)
	if err != nil {
		h.logger.Error("appending turn", "conversation_id", conversationID, "error", err)
		WriteError(w, http.StatusInternalServerError, "turn_failed", "failed to record message", h.logger)
		return
	}

	promptText, err := h.prompts.Build(ctx, message, history)
	if err != nil {
		// The turn is already recorded with an empty output; that is the
		// designed trace of a failed exchange.
		h.logger.Error("building prompt", "turn_id", turn.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, "prompt_failed", "failed to prepare prompt", h.logger)
		return
	}

	stream, err := sse.NewWriter(w)
	if err != nil {
		h.logger.Error("opening event stream", "error", err)
		WriteError(w, http.StatusInternalServerError, "stream_unsupported", "streaming not supported", h.logger)
		return
	}

	events := h.llm.CompleteStream(ctx, promptText)
	state, _ := h.relay.Run(ctx, turn.ID, events, stream)

	h.logger.Info("chat stream finished",
		"conversation_id", conversationID,
		"turn_id", turn.ID,
		"state", state.String(),
	)
}

// send handles POST /api/chat, a stateless one-shot completion that skips
// conversation persistence entirely.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	message, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	promptText, err := h.prompts.Build(ctx, message, nil)
	if err != nil {
		h.logger.Error("building prompt", "error", err)
		WriteError(w, http.StatusInternalServerError, "prompt_failed", "failed to prepare prompt", h.logger)
		return
	}

	result, err := h.llm.Complete(ctx, promptText)
	if err != nil {
		h.logger.Error("completing chat", "error", err)
		WriteError(w, http.StatusBadGateway, "completion_failed", "model request failed", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"reply": result.Text,
		"model": result.Model,
		"usage": map[string]int{
			"input_tokens":  result.Usage.InputTokens,
			"output_tokens": result.Usage.OutputTokens,
			"total_tokens":  result.Usage.TotalTokens,
		},
	})
}
