package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akgaur12/converse/pkg/plugin"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a conversation does not exist or belongs
// to another user. Callers cannot tell the two apart.
var ErrNotFound = errors.New("conversation not found")

// ChatStore provides database operations for the chat module. All
// operations are scoped to a user ID.
type ChatStore struct {
	db *sql.DB
	ps plugin.Store
}

// NewChatStore creates a ChatStore backed by the shared store.
func NewChatStore(ps plugin.Store) *ChatStore {
	return &ChatStore{db: ps.DB(), ps: ps}
}

// CreateConversation inserts a new conversation owned by userID.
func (s *ChatStore) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	if title == "" {
		title = "New Chat"
	}
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_conversations (id, user_id, title, message_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a conversation by ID if userID owns it.
func (s *ChatStore) GetConversation(ctx context.Context, userID, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, message_count, created_at, updated_at
		FROM chat_conversations WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	return scanConversation(row)
}

// ListConversations returns the user's conversations, most recently
// active first.
func (s *ChatStore) ListConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message_count, created_at, updated_at
		FROM chat_conversations WHERE user_id = ?
		ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := []*Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// RenameConversation sets a conversation's title.
func (s *ChatStore) RenameConversation(ctx context.Context, userID, id, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_conversations SET title = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		title, time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation and, via the foreign key
// cascade, all of its turns.
func (s *ChatStore) DeleteConversation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_conversations WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTurn persists a completed turn. The sequence number comes from a
// single UPDATE ... RETURNING that bumps message_count, so concurrent
// appends to the same conversation get strictly increasing, gap-free
// sequence numbers. Both statements run in one transaction.
func (s *ChatStore) AppendTurn(ctx context.Context, userID string, turn *Turn) error {
	now := time.Now().UTC()

	return s.ps.Tx(ctx, func(tx *sql.Tx) error {
		var seq int
		err := tx.QueryRowContext(ctx, `
			UPDATE chat_conversations
			SET message_count = message_count + 1, updated_at = ?
			WHERE id = ? AND user_id = ?
			RETURNING message_count`,
			now, turn.ChatID, userID,
		).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("bump message count: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO chat_turns (chat_id, seq, user_text, assistant_text,
				input_tokens, output_tokens, response_time, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			turn.ChatID, seq, turn.UserText, turn.AssistantText,
			turn.InputTokens, turn.OutputTokens, turn.ResponseTime, now,
		)
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}

		turn.Seq = seq
		turn.CreatedAt = now
		if id, err := res.LastInsertId(); err == nil {
			turn.ID = id
		}
		return nil
	})
}

// RecentTurns returns the last limit turns in chronological order.
func (s *ChatStore) RecentTurns(ctx context.Context, userID, chatID string, limit int) ([]*Turn, error) {
	if _, err := s.GetConversation(ctx, userID, chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, seq, user_text, assistant_text,
			input_tokens, output_tokens, response_time, created_at
		FROM chat_turns WHERE chat_id = ?
		ORDER BY seq DESC LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := collectTurns(rows)
	if err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListTurns returns all turns of a conversation in order.
func (s *ChatStore) ListTurns(ctx context.Context, userID, chatID string) ([]*Turn, error) {
	if _, err := s.GetConversation(ctx, userID, chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, seq, user_text, assistant_text,
			input_tokens, output_tokens, response_time, created_at
		FROM chat_turns WHERE chat_id = ?
		ORDER BY seq ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	return collectTurns(rows)
}

// TurnCount returns the number of turns stored for a conversation.
func (s *ChatStore) TurnCount(ctx context.Context, chatID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_turns WHERE chat_id = ?`, chatID,
	).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

func collectTurns(rows *sql.Rows) ([]*Turn, error) {
	turns := []*Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ChatID, &t.Seq, &t.UserText, &t.AssistantText,
			&t.InputTokens, &t.OutputTokens, &t.ResponseTime, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
