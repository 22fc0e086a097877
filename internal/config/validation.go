package config

import (
	"fmt"
	"os"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// The API key check is deliberately here rather than per-request: a missing
// credential is a startup failure, not something to discover mid-stream.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is read directly by the Genkit Google AI plugin; only its
	// presence is verified here so startup fails fast.
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: must be between 1 and 65,536, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}

	// overlap >= window would make the chunker's sliding window never
	// advance; reject at startup rather than loop at load time.
	if c.ChunkMaxTokens < 1 {
		return fmt.Errorf("%w: chunk_max_tokens must be positive, got %d", ErrInvalidChunking, c.ChunkMaxTokens)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxTokens {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_max_tokens), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	return nil
}
