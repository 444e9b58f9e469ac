package ws

import "time"

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageConversationCreated MessageType = "conversation.created"
	MessageTurnAppended        MessageType = "conversation.turn_appended"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Timestamp      time.Time   `json:"timestamp"`
	Data           any         `json:"data"`
}

// ConversationCreatedData is the payload for conversation.created messages.
type ConversationCreatedData struct {
	Title string `json:"title"`
}

// TurnAppendedData is the payload for conversation.turn_appended messages.
type TurnAppendedData struct {
	Seq     int    `json:"seq"`
	Service string `json:"service"`
}
