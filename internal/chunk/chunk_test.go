package chunk_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chunk"
)

// wordTokenizer is a hermetic Tokenizer for tests: each whitespace-separated
// word is one token. Avoids the network-loaded BPE tables of the production
// tokenizer.
type wordTokenizer struct {
	words []string
	index map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{index: make(map[string]int)}
}

func (w *wordTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, 0, len(fields))
	for _, f := range fields {
		id, ok := w.index[f]
		if !ok {
			id = len(w.words)
			w.words = append(w.words, f)
			w.index[f] = id
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (w *wordTokenizer) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = w.words[tok]
	}
	return strings.Join(words, " ")
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNew_Validation(t *testing.T) {
	tok := newWordTokenizer()

	tests := []struct {
		name      string
		maxTokens int
		overlap   int
		wantErr   bool
	}{
		{"valid", 500, 50, false},
		{"zero overlap", 10, 0, false},
		{"overlap equals max", 10, 10, true},
		{"overlap exceeds max", 10, 20, true},
		{"negative overlap", 10, -1, true},
		{"zero max tokens", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := chunk.New(tok, tt.maxTokens, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.maxTokens, c.MaxTokens())
			assert.Equal(t, tt.overlap, c.Overlap())
		})
	}
}

func TestNew_NilTokenizer(t *testing.T) {
	_, err := chunk.New(nil, 500, 50)
	require.Error(t, err)
}

func TestNew_InvalidOverlapSentinel(t *testing.T) {
	_, err := chunk.New(newWordTokenizer(), 10, 10)
	require.ErrorIs(t, err, chunk.ErrInvalidOverlap)
}

func TestChunk_Empty(t *testing.T) {
	tok := newWordTokenizer()
	c, err := chunk.New(tok, 5, 2)
	require.NoError(t, err)

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  "))
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	tok := newWordTokenizer()
	c, err := chunk.New(tok, 10, 3)
	require.NoError(t, err)

	chunks := c.Chunk("one two three")
	require.Len(t, chunks, 1)
	assert.Equal(t, "one two three", chunks[0])
}

func TestChunk_SlidingWindow(t *testing.T) {
	tok := newWordTokenizer()
	c, err := chunk.New(tok, 5, 2)
	require.NoError(t, err)

	// 12 tokens, window 5, step 3: starts at 0, 3, 6, 9.
	chunks := c.Chunk(words(12))
	require.Len(t, chunks, 4)

	for i, chunkText := range chunks {
		n := len(strings.Fields(chunkText))
		if i < len(chunks)-1 {
			assert.Equal(t, 5, n, "chunk %d should fill the window", i)
		} else {
			assert.Equal(t, 3, n, "last chunk holds the remainder")
		}
	}

	// Adjacent chunks share exactly the overlap tokens.
	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i])
		next := strings.Fields(chunks[i+1])
		assert.Equal(t, cur[len(cur)-2:], next[:2],
			"chunk %d tail should equal chunk %d head", i, i+1)
	}
}

func TestChunk_CoversAllTokens(t *testing.T) {
	tok := newWordTokenizer()
	c, err := chunk.New(tok, 7, 3)
	require.NoError(t, err)

	text := words(23)
	chunks := c.Chunk(text)

	seen := make(map[string]bool)
	for _, chunkText := range chunks {
		for _, w := range strings.Fields(chunkText) {
			seen[w] = true
		}
	}
	for _, w := range strings.Fields(text) {
		assert.True(t, seen[w], "token %s missing from chunks", w)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	tok := newWordTokenizer()
	c, err := chunk.New(tok, 5, 2)
	require.NoError(t, err)

	text := words(17)
	assert.Equal(t, c.Chunk(text), c.Chunk(text))
}

func TestChunk_ExactWindowBoundary(t *testing.T) {
	tok := newWordTokenizer()
	c, err := chunk.New(tok, 5, 0)
	require.NoError(t, err)

	// Exactly two full windows, no remainder and no empty trailing chunk.
	chunks := c.Chunk(words(10))
	require.Len(t, chunks, 2)
	assert.Equal(t, 5, len(strings.Fields(chunks[0])))
	assert.Equal(t, 5, len(strings.Fields(chunks[1])))
}
