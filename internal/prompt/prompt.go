// Package prompt assembles the grounded prompt sent to the model: relevant
// document chunks are retrieved from the knowledge store and framed with
// the user's question.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragchat/internal/conversation"
	"ragchat/internal/knowledge"
)

// template frames the retrieved context and the question. The question
// placed here is always the user's verbatim message; history augmentation
// applies only to the retrieval query.
const template = `You are a chatbot that answers questions about me.
Question: %s
Context: %s
Answer: reply to the question based on the context.`

// Retriever is the slice of the knowledge store the builder needs.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Builder constructs grounded prompts.
type Builder struct {
	retriever Retriever
	topK      int
	logger    *slog.Logger
}

// New creates a Builder. topK <= 0 falls back to the retriever's default.
func New(retriever Retriever, topK int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{retriever: retriever, topK: topK, logger: logger}
}

// Build retrieves context for the question and renders the prompt.
//
// Prior turns sharpen retrieval: the query sent to the vector store is the
// conversation so far plus the question, so follow-ups like "what about the
// second one?" retrieve against the preceding exchange. The rendered prompt
// itself contains only the verbatim question.
//
// An empty knowledge store is not an error; the prompt is rendered with
// empty context and the model answers unaided.
func (b *Builder) Build(ctx context.Context, question string, history []conversation.Turn) (string, error) {
	query := retrievalQuery(question, history)

	var opts []knowledge.SearchOption
	if b.topK > 0 {
		opts = append(opts, knowledge.WithTopK(b.topK))
	}

	results, err := b.retriever.Search(ctx, query, opts...)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	chunks := make([]string, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, r.Document.Content)
	}
	contextText := strings.Join(chunks, "\n")

	b.logger.Debug("built prompt",
		"question_length", len(question),
		"history_turns", len(history),
		"retrieved_chunks", len(results),
	)

	return fmt.Sprintf(template, question, contextText), nil
}

// retrievalQuery folds completed prior turns into the search query.
// Unfinished turns (empty output) are skipped; they carry no answer to
// ground a follow-up against.
func retrievalQuery(question string, history []conversation.Turn) string {
	if len(history) == 0 {
		return question
	}

	var sb strings.Builder
	for _, t := range history {
		if t.Output == "" {
			continue
		}
		sb.WriteString(t.Input)
		sb.WriteString(": ")
		sb.WriteString(t.Output)
		sb.WriteString("\n")
	}
	sb.WriteString(question)
	return sb.String()
}
