package knowledge_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ragchat/internal/knowledge"
	"ragchat/internal/testutil"
)

// stubDB accepts writes and rejects reads, for tests that only exercise
// the embedding path of Add.
type stubDB struct{}

func (stubDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (stubDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("stub: no queries")
}

func (stubDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

// unitVec returns a 768-dim unit vector along the given axis.
func unitVec(axis int) []float32 {
	v := make([]float32, knowledge.VectorDimension)
	v[axis] = 1
	return v
}

// blend returns the normalized weighted sum a*va + b*vb of two axes.
func blend(axisA int, a float32, axisB int, b float32) []float32 {
	v := make([]float32, knowledge.VectorDimension)
	norm := float32(math.Sqrt(float64(a*a + b*b)))
	v[axisA] = a / norm
	v[axisB] = b / norm
	return v
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc_0_chunk_0", knowledge.ChunkID(0, 0))
	assert.Equal(t, "doc_3_chunk_12", knowledge.ChunkID(3, 12))
	assert.Equal(t, "doc_2", knowledge.SourceID(2))
}

func TestStore_EmbeddingFailure(t *testing.T) {
	mock := testutil.NewMockEmbedder(knowledge.VectorDimension)
	g := genkit.Init(context.Background())
	embedder := mock.RegisterEmbedder(g)
	mock.FailWith(errors.New("quota exhausted"))

	// The embedder fails before any query runs, so no database is needed.
	store := knowledge.New(nil, embedder, testutil.DiscardLogger())
	ctx := context.Background()

	err := store.Add(ctx, knowledge.Document{ID: "doc_0_chunk_0", Content: "text"})
	require.ErrorIs(t, err, knowledge.ErrEmbedding)

	_, err = store.Search(ctx, "query")
	require.ErrorIs(t, err, knowledge.ErrEmbedding,
		"a broken retrieval pipeline must surface an error, not empty results")
}

func TestStore_RequestsSchemaDimensions(t *testing.T) {
	mock := testutil.NewMockEmbedder(knowledge.VectorDimension)
	g := genkit.Init(context.Background())
	store := knowledge.New(stubDB{}, mock.RegisterEmbedder(g), testutil.DiscardLogger())

	err := store.Add(context.Background(), knowledge.Document{ID: "doc_0_chunk_0", Content: "text"})
	require.NoError(t, err)

	// gemini-embedding-001 returns 3072 dimensions unless truncation is
	// requested, so every embed call must pin the schema width.
	req := mock.LastRequest()
	require.NotNil(t, req)
	cfg, ok := req.Options.(*genai.EmbedContentConfig)
	require.True(t, ok, "embed request must carry an EmbedContentConfig")
	require.NotNil(t, cfg.OutputDimensionality)
	assert.EqualValues(t, knowledge.VectorDimension, *cfg.OutputDimensionality)
}

func TestStore_RejectsMismatchedEmbeddingWidth(t *testing.T) {
	// An embedder that ignores the truncation request and returns its
	// native width must fail loudly before the database rejects the row.
	mock := testutil.NewMockEmbedder(3072)
	g := genkit.Init(context.Background())
	store := knowledge.New(stubDB{}, mock.RegisterEmbedder(g), testutil.DiscardLogger())
	ctx := context.Background()

	err := store.Add(ctx, knowledge.Document{ID: "doc_0_chunk_0", Content: "text"})
	require.ErrorIs(t, err, knowledge.ErrEmbedding)
	assert.ErrorContains(t, err, "3072")

	_, err = store.Search(ctx, "query")
	require.ErrorIs(t, err, knowledge.ErrEmbedding)
}

func TestStore_AddRequiresID(t *testing.T) {
	mock := testutil.NewMockEmbedder(knowledge.VectorDimension)
	g := genkit.Init(context.Background())
	store := knowledge.New(nil, mock.RegisterEmbedder(g), testutil.DiscardLogger())

	err := store.Add(context.Background(), knowledge.Document{Content: "no id"})
	require.Error(t, err)
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mock := testutil.NewMockEmbedder(knowledge.VectorDimension)
	g := genkit.Init(ctx)
	embedder := mock.RegisterEmbedder(g)
	store := knowledge.New(db.Pool, embedder, testutil.DiscardLogger())

	t.Run("add and count", func(t *testing.T) {
		db.TruncateAll(t)

		err := store.Add(ctx, knowledge.Document{
			ID:       "doc_0_chunk_0",
			Content:  "I live in Taipei.",
			Metadata: map[string]string{"source": "doc_0", "chunk_index": "0"},
		})
		require.NoError(t, err)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("add is an upsert", func(t *testing.T) {
		db.TruncateAll(t)

		doc := knowledge.Document{
			ID:       "doc_0_chunk_0",
			Content:  "original content",
			Metadata: map[string]string{"source": "doc_0"},
		}
		require.NoError(t, store.Add(ctx, doc))

		doc.Content = "updated content"
		require.NoError(t, store.Add(ctx, doc))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count, "re-adding the same id must not duplicate")

		results, err := store.Search(ctx, "updated content", knowledge.WithTopK(1))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "updated content", results[0].Document.Content)
	})

	t.Run("search orders by cosine similarity", func(t *testing.T) {
		db.TruncateAll(t)

		mock.SetVector("about cycling", unitVec(0))
		mock.SetVector("about databases", unitVec(1))
		mock.SetVector("about photography", unitVec(2))
		// Query leans heavily toward cycling, slightly toward databases.
		mock.SetVector("cycling question", blend(0, 0.9, 1, 0.2))

		docs := []string{"about cycling", "about databases", "about photography"}
		for i, content := range docs {
			require.NoError(t, store.Add(ctx, knowledge.Document{
				ID:       knowledge.ChunkID(i, 0),
				Content:  content,
				Metadata: map[string]string{"source": knowledge.SourceID(i)},
			}))
		}

		results, err := store.Search(ctx, "cycling question", knowledge.WithTopK(2))
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "about cycling", results[0].Document.Content)
		assert.Equal(t, "about databases", results[1].Document.Content)
		assert.Greater(t, results[0].Similarity, results[1].Similarity)
		assert.InDelta(t, 0.976, float64(results[0].Similarity), 0.01)
	})

	t.Run("search empty store returns no results", func(t *testing.T) {
		db.TruncateAll(t)

		results, err := store.Search(ctx, "anything")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("search with source filter", func(t *testing.T) {
		db.TruncateAll(t)

		for i := range 2 {
			for j := range 2 {
				require.NoError(t, store.Add(ctx, knowledge.Document{
					ID:       knowledge.ChunkID(i, j),
					Content:  knowledge.ChunkID(i, j) + " content",
					Metadata: map[string]string{"source": knowledge.SourceID(i)},
				}))
			}
		}

		results, err := store.Search(ctx, "anything",
			knowledge.WithTopK(10), knowledge.WithSource("doc_1"))
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Equal(t, "doc_1", r.Document.Metadata["source"])
		}
	})

	t.Run("metadata round-trips", func(t *testing.T) {
		db.TruncateAll(t)

		require.NoError(t, store.Add(ctx, knowledge.Document{
			ID:       "doc_5_chunk_1",
			Content:  "tagged content",
			Metadata: map[string]string{"source": "doc_5", "chunk_index": "1"},
		}))

		results, err := store.Search(ctx, "tagged content", knowledge.WithTopK(1))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, map[string]string{
			"source":      "doc_5",
			"chunk_index": "1",
		}, results[0].Document.Metadata)
	})

	t.Run("delete removes document", func(t *testing.T) {
		db.TruncateAll(t)

		require.NoError(t, store.Add(ctx, knowledge.Document{
			ID: "doc_0_chunk_0", Content: "to delete",
		}))
		require.NoError(t, store.Delete(ctx, "doc_0_chunk_0"))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
