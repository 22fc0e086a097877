package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the provider-qualified name of the registered mock model.
const MockModelName = "mock/test-model"

// MockLLM provides deterministic model responses for testing.
// It matches prompt content against registered patterns and replays the
// corresponding scripted chunks.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	calls    []MockCall
}

type mockRule struct {
	pattern  string   // substring match in the prompt, lowercased
	chunks   []string // chunks streamed in order; joined for the final text
	err      error    // returned instead of a response (nil = success)
	errAfter int      // with err set, stream this many chunks first
}

// MockCall records a single call to the mock model.
type MockCall struct {
	Prompt   string
	Response string
}

// NewMockLLM creates a mock model with the given fallback response.
// The fallback is returned as a single chunk when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern with scripted chunks. When a prompt
// contains the pattern (case-insensitive), the chunks are streamed in
// order. Patterns are checked in registration order; first match wins.
func (m *MockLLM) AddResponse(pattern string, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern: strings.ToLower(pattern),
		chunks:  chunks,
	})
}

// AddError registers a pattern that fails immediately with err.
func (m *MockLLM) AddError(pattern string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern: strings.ToLower(pattern),
		err:     err,
	})
}

// AddMidStreamError registers a pattern that streams the given chunks and
// then fails with err, simulating a provider dropping the connection
// partway through a reply.
func (m *MockLLM) AddMidStreamError(pattern string, err error, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern:  strings.ToLower(pattern),
		chunks:   chunks,
		err:      err,
		errAfter: len(chunks),
	})
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears all recorded calls (keeps registered rules).
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// RegisterModel registers the mock as a Genkit model and returns a
// reference. The model is addressable as MockModelName.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}, m.generate)
}

// generate is the Genkit model function.
func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var promptText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			promptText = req.Messages[i].Text()
			break
		}
	}

	m.mu.Lock()
	var matched *mockRule
	lower := strings.ToLower(promptText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}
	m.mu.Unlock()

	if matched != nil && matched.err != nil && matched.errAfter == 0 {
		m.record(promptText, "")
		return nil, matched.err
	}

	chunks := []string{m.fallback}
	if matched != nil {
		chunks = matched.chunks
	}

	if cb != nil {
		for _, chunk := range chunks {
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(chunk)},
			}); err != nil {
				return nil, err
			}
		}
	}

	if matched != nil && matched.err != nil {
		m.record(promptText, "")
		return nil, matched.err
	}

	responseText := strings.Join(chunks, "")
	m.record(promptText, responseText)

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		},
		Usage: &ai.GenerationUsage{
			InputTokens:  len(strings.Fields(promptText)),
			OutputTokens: len(strings.Fields(responseText)),
			TotalTokens:  len(strings.Fields(promptText)) + len(strings.Fields(responseText)),
		},
	}, nil
}

func (m *MockLLM) record(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Prompt: prompt, Response: response})
}

// ErrMockFailure is a generic failure for tests that only care that an
// error happened.
var ErrMockFailure = errors.New("mock model failure")

// MockEmbedder provides deterministic embedding vectors for testing.
//
// By default it generates a deterministic vector from content using
// SHA-256. Explicit mappings can be added for precise cosine similarity
// control.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failErr error
	dim     int
	lastReq *ai.EmbedRequest
}

// NewMockEmbedder creates a mock embedder with the given vector dimensions.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a given content string.
// Use this to control exact cosine similarity between test inputs.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// FailWith makes all subsequent Embed calls return err. Pass nil to
// restore normal behavior.
func (e *MockEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failErr = err
}

// RegisterEmbedder registers the mock as a Genkit embedder.
// The embedder name will be "mock/test-embedder".
func (e *MockEmbedder) RegisterEmbedder(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "mock/test-embedder", &ai.EmbedderOptions{
		Label:      "Mock Test Embedder",
		Dimensions: e.dim,
	}, e.Embed)
}

// LastRequest returns the most recent request seen by Embed, or nil.
func (e *MockEmbedder) LastRequest() *ai.EmbedRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReq
}

// Embed is the Genkit embedder function. Exported so the mock also
// satisfies ai.Embedder-shaped interfaces directly in unit tests.
func (e *MockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	e.lastReq = req
	failErr := e.failErr
	e.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		text := documentText(doc)
		embeddings[i] = &ai.Embedding{
			Embedding: e.vectorFor(text),
		}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// Name implements ai.Embedder.
func (e *MockEmbedder) Name() string {
	return "mock/test-embedder"
}

// vectorFor returns the vector for a given content string.
// Uses explicit mapping if available, otherwise generates deterministically
// from a hash.
func (e *MockEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	if v, ok := e.vectors[content]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()

	return deterministicVector(content, e.dim)
}

// documentText extracts all text content from a Document's parts.
func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deterministicVector generates a normalized vector from content using
// SHA-256. The same content always produces the same vector.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec
}
