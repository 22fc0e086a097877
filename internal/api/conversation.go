package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"ragchat/internal/conversation"
)

// ConversationStore is the slice of conversation.Store the handlers need.
type ConversationStore interface {
	Create(ctx context.Context) (*conversation.Conversation, error)
	AppendTurn(ctx context.Context, conversationID uuid.UUID, input string) (*conversation.Turn, error)
	ListTurns(ctx context.Context, conversationID uuid.UUID) ([]conversation.Turn, error)
}

type conversationHandler struct {
	store  ConversationStore
	logger *slog.Logger
}

// create handles POST /api/conversations.
func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Create(r.Context())
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create conversation", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, conv)
}

// listTurns handles GET /api/conversations/{id}/turns.
func (h *conversationHandler) listTurns(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid conversation ID", h.logger)
		return
	}

	turns, err := h.store.ListTurns(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("listing turns", "conversation_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list turns", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"turns": turns})
}
