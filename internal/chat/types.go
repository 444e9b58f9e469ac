package chat

import "time"

// Conversation is a user-owned chat thread.
type Conversation struct {
	ID           string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title" example:"Go Concurrency Basics"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Turn is one user query and its assistant reply within a conversation.
type Turn struct {
	ID            int64     `json:"id"`
	ChatID        string    `json:"chat_id"`
	Seq           int       `json:"seq"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	ResponseTime  float64   `json:"response_time"`
	CreatedAt     time.Time `json:"created_at"`
}
