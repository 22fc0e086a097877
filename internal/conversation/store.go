// Package conversation persists chat sessions and their turns in PostgreSQL.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the referenced conversation or turn does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTurnCompleted indicates the turn's output was already written.
	// Outputs are write-once; a second completion is a logic error upstream.
	ErrTurnCompleted = errors.New("turn already completed")

	// ErrEmptyInput indicates an attempt to append a turn with no input text.
	ErrEmptyInput = errors.New("input is empty")
)

// Conversation is a chat session. It carries no title or owner; identity is
// the UUID handed to the client at creation time.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is one exchange within a conversation. Output is empty until the
// streamed reply completes, then written exactly once.
type Turn struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Input          string    `json:"input"`
	Output         string    `json:"output"`
	CreatedAt      time.Time `json:"created_at"`
}

// DB is the subset of pgxpool.Pool the store depends on.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages conversations and turns.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Create starts a new empty conversation.
func (s *Store) Create(ctx context.Context) (*Conversation, error) {
	conv := &Conversation{ID: uuid.New()}

	err := s.db.QueryRow(ctx, `
		INSERT INTO conversations (id)
		VALUES ($1)
		RETURNING created_at`,
		conv.ID).Scan(&conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "conversation_id", conv.ID)
	return conv, nil
}

// Get fetches a conversation by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	conv := &Conversation{ID: id}

	err := s.db.QueryRow(ctx, `
		SELECT created_at FROM conversations WHERE id = $1`,
		id).Scan(&conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching conversation %s: %w", id, err)
	}

	return conv, nil
}

// AppendTurn records the user's input as a new turn with an empty output.
// Returns ErrNotFound if the conversation does not exist.
func (s *Store) AppendTurn(ctx context.Context, conversationID uuid.UUID, input string) (*Turn, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	turn := &Turn{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Input:          input,
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO turns (id, conversation_id, input)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		turn.ID, conversationID, input).Scan(&turn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil, fmt.Errorf("appending turn: %w", err)
	}

	s.logger.Debug("appended turn",
		"conversation_id", conversationID,
		"turn_id", turn.ID,
		"input_length", len(input),
	)
	return turn, nil
}

// CompleteTurn writes the turn's output. Outputs are write-once: a turn
// whose output is already set returns ErrTurnCompleted, a missing turn
// returns ErrNotFound.
func (s *Store) CompleteTurn(ctx context.Context, turnID uuid.UUID, output string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE turns SET output = $2
		WHERE id = $1 AND output = ''`,
		turnID, output)
	if err != nil {
		return fmt.Errorf("completing turn %s: %w", turnID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM turns WHERE id = $1)`,
			turnID).Scan(&exists); err != nil {
			return fmt.Errorf("checking turn %s: %w", turnID, err)
		}
		if exists {
			return fmt.Errorf("turn %s: %w", turnID, ErrTurnCompleted)
		}
		return fmt.Errorf("turn %s: %w", turnID, ErrNotFound)
	}

	s.logger.Debug("completed turn", "turn_id", turnID, "output_length", len(output))
	return nil
}

// ListTurns returns all turns of a conversation in insertion order.
// Returns ErrNotFound if the conversation does not exist; an existing
// conversation with no turns returns an empty slice.
func (s *Store) ListTurns(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	// Existence check first so a missing conversation is distinguishable
	// from an empty one.
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, input, output, created_at
		FROM turns
		WHERE conversation_id = $1
		ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Input, &t.Output, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	return turns, nil
}

// Delete removes a conversation and, via cascade, all of its turns.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}
