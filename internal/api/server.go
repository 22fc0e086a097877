// Package api exposes the chat service over HTTP: conversation CRUD, the
// streaming chat endpoint, and health probes.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ragchat/internal/relay"
)

const shutdownTimeout = 10 * time.Second

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Conversations ConversationStore // Required
	Prompts       PromptBuilder     // Required
	LLM           Completer         // Required
	Relay         *relay.Relay      // Required
	Pool          *pgxpool.Pool     // Optional: nil disables pool stats in /ready
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Prompts == nil {
		return nil, errors.New("prompt builder is required")
	}
	if cfg.LLM == nil {
		return nil, errors.New("completion client is required")
	}
	if cfg.Relay == nil {
		return nil, errors.New("relay is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	convs := &conversationHandler{store: cfg.Conversations, logger: logger}
	chat := &chatHandler{
		store:   cfg.Conversations,
		prompts: cfg.Prompts,
		llm:     cfg.LLM,
		relay:   cfg.Relay,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", convs.create)
	mux.HandleFunc("GET /api/conversations/{id}/turns", convs.listTurns)
	mux.HandleFunc("POST /api/conversations/{id}/stream", chat.stream)
	mux.HandleFunc("POST /api/chat", chat.send)

	// Middleware stack (outermost first): Recovery -> Logging -> Routes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves HTTP on addr until ctx is canceled, then shuts down
// gracefully. Streaming responses in flight get shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: SSE responses are long-lived by design.
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
