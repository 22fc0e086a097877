package conversation_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/conversation"
	"ragchat/internal/testutil"
)

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := conversation.New(db.Pool, testutil.DiscardLogger())

	t.Run("create and get", func(t *testing.T) {
		db.TruncateAll(t)

		conv, err := store.Create(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, conv.ID)
		assert.False(t, conv.CreatedAt.IsZero())

		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
	})

	t.Run("get missing conversation", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New())
		require.ErrorIs(t, err, conversation.ErrNotFound)
	})

	t.Run("append and list turns in order", func(t *testing.T) {
		db.TruncateAll(t)

		conv, err := store.Create(ctx)
		require.NoError(t, err)

		first, err := store.AppendTurn(ctx, conv.ID, "first question")
		require.NoError(t, err)
		assert.Equal(t, "first question", first.Input)
		assert.Empty(t, first.Output, "new turns start with empty output")

		_, err = store.AppendTurn(ctx, conv.ID, "second question")
		require.NoError(t, err)

		turns, err := store.ListTurns(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, "first question", turns[0].Input)
		assert.Equal(t, "second question", turns[1].Input)
	})

	t.Run("append to missing conversation", func(t *testing.T) {
		_, err := store.AppendTurn(ctx, uuid.New(), "hello")
		require.ErrorIs(t, err, conversation.ErrNotFound)
	})

	t.Run("append empty input", func(t *testing.T) {
		conv, err := store.Create(ctx)
		require.NoError(t, err)

		_, err = store.AppendTurn(ctx, conv.ID, "")
		require.ErrorIs(t, err, conversation.ErrEmptyInput)
	})

	t.Run("list turns of missing conversation", func(t *testing.T) {
		_, err := store.ListTurns(ctx, uuid.New())
		require.ErrorIs(t, err, conversation.ErrNotFound)
	})

	t.Run("list turns of empty conversation", func(t *testing.T) {
		conv, err := store.Create(ctx)
		require.NoError(t, err)

		turns, err := store.ListTurns(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("complete turn is write-once", func(t *testing.T) {
		db.TruncateAll(t)

		conv, err := store.Create(ctx)
		require.NoError(t, err)
		turn, err := store.AppendTurn(ctx, conv.ID, "question")
		require.NoError(t, err)

		require.NoError(t, store.CompleteTurn(ctx, turn.ID, "the answer"))

		turns, err := store.ListTurns(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, "the answer", turns[0].Output)

		// A second completion must not overwrite the first.
		err = store.CompleteTurn(ctx, turn.ID, "a different answer")
		require.ErrorIs(t, err, conversation.ErrTurnCompleted)

		turns, err = store.ListTurns(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "the answer", turns[0].Output)
	})

	t.Run("complete missing turn", func(t *testing.T) {
		err := store.CompleteTurn(ctx, uuid.New(), "output")
		require.ErrorIs(t, err, conversation.ErrNotFound)
	})

	t.Run("failed turn keeps empty output", func(t *testing.T) {
		db.TruncateAll(t)

		conv, err := store.Create(ctx)
		require.NoError(t, err)
		_, err = store.AppendTurn(ctx, conv.ID, "interrupted question")
		require.NoError(t, err)

		// No CompleteTurn call: the empty output is the designed trace of
		// a failed exchange.
		turns, err := store.ListTurns(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Empty(t, turns[0].Output)
	})

	t.Run("delete cascades to turns", func(t *testing.T) {
		db.TruncateAll(t)

		conv, err := store.Create(ctx)
		require.NoError(t, err)
		_, err = store.AppendTurn(ctx, conv.ID, "q")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, conv.ID))

		_, err = store.Get(ctx, conv.ID)
		require.ErrorIs(t, err, conversation.ErrNotFound)

		var count int
		err = db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM turns`).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("delete missing conversation", func(t *testing.T) {
		err := store.Delete(ctx, uuid.New())
		require.ErrorIs(t, err, conversation.ErrNotFound)
	})
}
