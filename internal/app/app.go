// Package app wires the application together: database pool, Genkit,
// stores, completion client, and the HTTP server's dependencies.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragchat/internal/config"
	"ragchat/internal/conversation"
	"ragchat/internal/ingest"
	"ragchat/internal/knowledge"
	"ragchat/internal/llm"
	"ragchat/internal/prompt"
	"ragchat/internal/relay"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	// Domain components
	Knowledge     *knowledge.Store
	Conversations *conversation.Store
	LLM           *llm.Client
	Prompts       *prompt.Builder
	Relay         *relay.Relay
	Loader        *ingest.Loader

	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
