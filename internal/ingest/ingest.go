// Package ingest loads source documents into the knowledge store: each
// document is chunked and every chunk is embedded and upserted.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"ragchat/internal/chunk"
	"ragchat/internal/knowledge"
)

// Adder is the slice of the knowledge store the loader needs.
type Adder interface {
	Add(ctx context.Context, doc knowledge.Document) error
}

// Stats summarizes a load run.
type Stats struct {
	Documents int
	Chunks    int
}

// Loader chunks documents and writes them to the knowledge store.
type Loader struct {
	chunker *chunk.Chunker
	store   Adder
	logger  *slog.Logger
}

// New creates a Loader. logger may be nil (defaults to slog.Default()).
func New(chunker *chunk.Chunker, store Adder, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{chunker: chunker, store: store, logger: logger}
}

// Load chunks each document and upserts every chunk. Chunk ids are derived
// from the document's position, so loading the same slice again overwrites
// rather than duplicates.
//
// Documents whose text chunks to nothing (empty or whitespace-only input)
// are skipped and still counted in Stats.Documents.
func (l *Loader) Load(ctx context.Context, docs []string) (Stats, error) {
	stats := Stats{Documents: len(docs)}

	for i, text := range docs {
		chunks := l.chunker.Chunk(text)
		if len(chunks) == 0 {
			l.logger.Debug("skipping empty document", "index", i)
			continue
		}

		for j, content := range chunks {
			doc := knowledge.Document{
				ID:      knowledge.ChunkID(i, j),
				Content: content,
				Metadata: map[string]string{
					"source":      knowledge.SourceID(i),
					"chunk_index": strconv.Itoa(j),
				},
			}
			if err := l.store.Add(ctx, doc); err != nil {
				return stats, fmt.Errorf("loading document %d chunk %d: %w", i, j, err)
			}
			stats.Chunks++
		}

		l.logger.Info("loaded document", "index", i, "chunks", len(chunks))
	}

	return stats, nil
}

// LoadFiles reads each path and loads the contents as one document per file.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) (Stats, error) {
	if len(paths) == 0 {
		return Stats{}, errors.New("no files given")
	}

	docs := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return Stats{}, fmt.Errorf("reading %s: %w", path, err)
		}
		docs = append(docs, string(data))
	}

	return l.Load(ctx, docs)
}

// SampleDocuments returns a small built-in corpus for trying the system
// without preparing source material.
func SampleDocuments() []string {
	return []string{
		"My name is Alex Chen and I am a software engineer based in Taipei. " +
			"I have been writing backend services in Go for eight years, " +
			"with a focus on data infrastructure and streaming systems. " +
			"Before that I worked on distributed storage at a cloud provider.",

		"I maintain several open source projects. The largest is a PostgreSQL " +
			"connection pooler used in production by a handful of companies. " +
			"I also contribute to vector database tooling and occasionally " +
			"write about database internals on my blog.",

		"Outside of work I enjoy long distance cycling and film photography. " +
			"I ride a steel frame touring bike and develop my own black and " +
			"white film at home. My favorite route follows the northeast coast " +
			"from Keelung to Yilan.",
	}
}
