package prompt_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/conversation"
	"ragchat/internal/knowledge"
	"ragchat/internal/prompt"
	"ragchat/internal/testutil"
)

// fakeRetriever records the query it was called with and returns canned
// results.
type fakeRetriever struct {
	results   []knowledge.Result
	err       error
	lastQuery string
	lastOpts  int
}

func (f *fakeRetriever) Search(_ context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	f.lastQuery = query
	f.lastOpts = len(opts)
	return f.results, f.err
}

func result(content string) knowledge.Result {
	return knowledge.Result{Document: knowledge.Document{Content: content}}
}

func TestBuild_RendersTemplate(t *testing.T) {
	r := &fakeRetriever{results: []knowledge.Result{
		result("I live in Taipei."),
		result("I write Go."),
	}}
	b := prompt.New(r, 3, testutil.DiscardLogger())

	out, err := b.Build(context.Background(), "Where do you live?", nil)
	require.NoError(t, err)

	assert.Contains(t, out, "You are a chatbot that answers questions about me.")
	assert.Contains(t, out, "Question: Where do you live?")
	assert.Contains(t, out, "Context: I live in Taipei.\nI write Go.")
	assert.Contains(t, out, "Answer: reply to the question based on the context.")
}

func TestBuild_EmptyStore(t *testing.T) {
	r := &fakeRetriever{}
	b := prompt.New(r, 3, testutil.DiscardLogger())

	out, err := b.Build(context.Background(), "Anything?", nil)
	require.NoError(t, err)

	// No context is not an error; the template renders with an empty slot.
	assert.Contains(t, out, "Question: Anything?")
	assert.Contains(t, out, "Context: \n")
}

func TestBuild_HistoryAugmentsRetrievalQueryOnly(t *testing.T) {
	r := &fakeRetriever{results: []knowledge.Result{result("ctx")}}
	b := prompt.New(r, 3, testutil.DiscardLogger())

	history := []conversation.Turn{
		{Input: "What language do you use?", Output: "Mostly Go."},
		{Input: "Since when?", Output: "Eight years."},
	}

	out, err := b.Build(context.Background(), "What about databases?", history)
	require.NoError(t, err)

	// The retrieval query folds in prior exchanges plus the question.
	assert.Equal(t,
		"What language do you use?: Mostly Go.\nSince when?: Eight years.\nWhat about databases?",
		r.lastQuery)

	// The rendered prompt keeps the question verbatim, without history.
	assert.Contains(t, out, "Question: What about databases?")
	assert.NotContains(t, out, "Mostly Go.")
}

func TestBuild_SkipsUnfinishedTurns(t *testing.T) {
	r := &fakeRetriever{}
	b := prompt.New(r, 3, testutil.DiscardLogger())

	history := []conversation.Turn{
		{Input: "First?", Output: "Answered."},
		{Input: "Interrupted?", Output: ""},
	}

	_, err := b.Build(context.Background(), "Next?", history)
	require.NoError(t, err)

	assert.Equal(t, "First?: Answered.\nNext?", r.lastQuery)
}

func TestBuild_NoHistoryUsesBareQuestion(t *testing.T) {
	r := &fakeRetriever{}
	b := prompt.New(r, 3, testutil.DiscardLogger())

	_, err := b.Build(context.Background(), "Plain question", nil)
	require.NoError(t, err)
	assert.Equal(t, "Plain question", r.lastQuery)
}

func TestBuild_RetrieverErrorPropagates(t *testing.T) {
	r := &fakeRetriever{err: fmt.Errorf("wrapped: %w", knowledge.ErrEmbedding)}
	b := prompt.New(r, 3, testutil.DiscardLogger())

	_, err := b.Build(context.Background(), "q", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, knowledge.ErrEmbedding))
}

func TestBuild_TopKForwarded(t *testing.T) {
	r := &fakeRetriever{}

	b := prompt.New(r, 5, testutil.DiscardLogger())
	_, err := b.Build(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.lastOpts)

	// Non-positive topK defers to the retriever default.
	b = prompt.New(r, 0, testutil.DiscardLogger())
	_, err = b.Build(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.lastOpts)
}
