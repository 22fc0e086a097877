package knowledge

import (
	"fmt"
	"time"
)

// VectorDimension is the embedding dimensionality of the documents table.
// Must match the vector(N) column in db/migrations and the configured
// embedder's output size.
const VectorDimension = 768

// Document represents an embedded document chunk in the vector store.
type Document struct {
	ID        string            // Unique identifier, e.g. "doc_0_chunk_2"
	Content   string            // Chunk text content
	Metadata  map[string]string // Source tagging (source id, chunk index)
	CreatedAt time.Time
}

// Result is a single search result with its similarity score.
type Result struct {
	Document   Document
	Similarity float32 // Cosine similarity (0-1)
}

// ChunkID derives the stable document id for a chunk of a source document.
// Identity is {source, chunk index}, so re-loading the same source upserts
// the same rows instead of duplicating them.
func ChunkID(sourceIndex, chunkIndex int) string {
	return fmt.Sprintf("doc_%d_chunk_%d", sourceIndex, chunkIndex)
}

// SourceID derives the source tag for a document by load position.
func SourceID(sourceIndex int) string {
	return fmt.Sprintf("doc_%d", sourceIndex)
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int
	source string
}

// WithTopK sets the maximum number of results to return. Default is 3.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithSource restricts results to chunks of a single source document.
func WithSource(source string) SearchOption {
	return func(c *searchConfig) {
		c.source = source
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 3}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
