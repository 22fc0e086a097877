// Package knowledge implements the vector store client: document chunks are
// embedded via the configured embedder and stored in PostgreSQL + pgvector
// for similarity search.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// searchTimeout bounds vector search queries so a slow index cannot block a
// request indefinitely.
const searchTimeout = 10 * time.Second

// ErrEmbedding indicates the external embedding call failed. Retrieval
// failures of this kind are surfaced to callers rather than silently
// returning zero results.
var ErrEmbedding = errors.New("embedding failed")

// DB is the subset of pgxpool.Pool the store depends on.
// Defined by the consumer so integration tests can pass a pool and unit
// tests can exercise embedding-failure paths without a database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages document chunks with vector search.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db       DB
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(db DB, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// Add embeds the document's content and upserts it.
// Re-adding an existing id overwrites the previous row (ON CONFLICT DO
// UPDATE), so loading the same source twice never duplicates chunks.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`,
		doc.ID, doc.Content, embedding, metadataJSON, createdAt)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search returns the documents most similar to the query text, ordered by
// descending cosine similarity.
//
// An embedding failure returns an error wrapping ErrEmbedding, never an
// empty result set, so callers can distinguish "nothing relevant" from
// "the retrieval pipeline is down".
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var rows pgx.Rows
	if cfg.source != "" {
		rows, err = s.db.Query(queryCtx, `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			WHERE metadata->>'source' = $2
			ORDER BY embedding <=> $1
			LIMIT $3`,
			embedding, cfg.source, cfg.topK)
	} else {
		rows, err = s.db.Query(queryCtx, `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			ORDER BY embedding <=> $1
			LIMIT $2`,
			embedding, cfg.topK)
	}
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			similarity   float32
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "document_id", doc.ID, "error", err)
			doc.Metadata = map[string]string{}
		}
		results = append(results, Result{Document: doc, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	return results, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Delete removes a document by id.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	return nil
}

// embed generates the embedding vector for a single text.
//
// gemini-embedding-001 outputs 3072 dimensions by default but supports
// truncation via OutputDimensionality, so the request pins the schema's
// vector(768) width. The length check catches embedders that ignore the
// option before pgvector rejects the insert.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := int32(VectorDimension)
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("%w: empty embedding returned", ErrEmbedding)
	}
	if got := len(resp.Embeddings[0].Embedding); got != VectorDimension {
		return pgvector.Vector{}, fmt.Errorf("%w: embedder returned %d dimensions, want %d",
			ErrEmbedding, got, VectorDimension)
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
