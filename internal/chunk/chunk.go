// Package chunk splits raw document text into overlapping token-bounded
// windows suitable for embedding.
//
// Chunking is deterministic: the same text and parameters always produce the
// same chunk sequence, so re-loading a document is idempotent at the vector
// store (chunk ids derived from position stay stable).
package chunk

import (
	"errors"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tokenizer encoding used for chunking.
// It must match the tokenizer of the embedding model so token budgets are
// accounted accurately.
const DefaultEncoding = "cl100k_base"

// ErrInvalidOverlap indicates the overlap is not smaller than the window
// size, which would prevent the sliding window from ever advancing.
var ErrInvalidOverlap = errors.New("chunk overlap must be smaller than max tokens")

// Tokenizer converts text to token ids and back.
// Defined by the consumer so tests can substitute a hermetic implementation;
// production uses the tiktoken adapter from NewTiktoken.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// tiktokenizer adapts a tiktoken encoding to the Tokenizer interface.
type tiktokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *tiktokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// NewTiktoken returns a Tokenizer backed by the named tiktoken encoding.
// Pass DefaultEncoding for the cl100k_base encoding used by the embedding
// models this system targets.
func NewTiktoken(encoding string) (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", encoding, err)
	}
	return &tiktokenizer{enc: enc}, nil
}

// Chunker produces sliding token windows over document text.
type Chunker struct {
	tok       Tokenizer
	maxTokens int
	overlap   int
}

// New creates a Chunker.
// Fails fast when maxTokens is not positive, overlap is negative, or
// overlap >= maxTokens (the window would never advance).
func New(tok Tokenizer, maxTokens, overlap int) (*Chunker, error) {
	if tok == nil {
		return nil, errors.New("tokenizer is required")
	}
	if maxTokens < 1 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, fmt.Errorf("%w: overlap %d, max tokens %d", ErrInvalidOverlap, overlap, maxTokens)
	}
	return &Chunker{tok: tok, maxTokens: maxTokens, overlap: overlap}, nil
}

// Chunk splits text into windows of at most maxTokens tokens, each window's
// start advanced by maxTokens-overlap from the previous one. The last window
// may be shorter; no window is empty. Empty input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.maxTokens - c.overlap
	chunks := make([]string, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := min(start+c.maxTokens, len(tokens))
		chunks = append(chunks, c.tok.Decode(tokens[start:end]))
	}
	return chunks
}

// MaxTokens returns the configured window size.
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Overlap returns the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }
